package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
)

// ShopRepository — интерфейс доступа к таблице shops.
type ShopRepository interface {
	// Upsert создаёт либо обновляет профиль магазина по id владельца.
	Upsert(ctx context.Context, shop *model.Shop) error
	// GetByID возвращает профиль магазина по id владельца.
	GetByID(ctx context.Context, id string) (*model.Shop, error)
	// List возвращает каталог магазинов в алфавитном порядке.
	List(ctx context.Context, limit, offset int) ([]*model.Shop, error)
}

// shopRepo — реализация ShopRepository.
type shopRepo struct {
	db DBTX
}

// NewShopRepository создаёт репозиторий магазинов.
func NewShopRepository(db DBTX) ShopRepository {
	return &shopRepo{db: db}
}

// Upsert — INSERT ... ON CONFLICT: профиль заполняется магазином
// однократно и далее редактируется тем же PUT.
func (r *shopRepo) Upsert(ctx context.Context, shop *model.Shop) error {
	query := `
		INSERT INTO shops (id, shop_name, address, contact, email,
			cost_single_side, cost_both_sides, shop_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET shop_name = EXCLUDED.shop_name,
			address = EXCLUDED.address,
			contact = EXCLUDED.contact,
			email = EXCLUDED.email,
			cost_single_side = EXCLUDED.cost_single_side,
			cost_both_sides = EXCLUDED.cost_both_sides,
			shop_image = EXCLUDED.shop_image,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		shop.ID, shop.ShopName, shop.Address, shop.Contact, shop.Email,
		shop.CostSingleSide, shop.CostBothSides, shop.ShopImage,
	).Scan(&shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения профиля магазина: %w", err)
	}
	return nil
}

func (r *shopRepo) GetByID(ctx context.Context, id string) (*model.Shop, error) {
	query := `
		SELECT id, shop_name, address, contact, email,
			cost_single_side, cost_both_sides, shop_image, created_at, updated_at
		FROM shops
		WHERE id = $1`

	shop := &model.Shop{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&shop.ID, &shop.ShopName, &shop.Address, &shop.Contact, &shop.Email,
		&shop.CostSingleSide, &shop.CostBothSides, &shop.ShopImage,
		&shop.CreatedAt, &shop.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля магазина: %w", err)
	}
	return shop, nil
}

func (r *shopRepo) List(ctx context.Context, limit, offset int) ([]*model.Shop, error) {
	query := `
		SELECT id, shop_name, address, contact, email,
			cost_single_side, cost_both_sides, shop_image, created_at, updated_at
		FROM shops
		ORDER BY shop_name
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога магазинов: %w", err)
	}
	defer rows.Close()

	var result []*model.Shop
	for rows.Next() {
		shop := &model.Shop{}
		if err := rows.Scan(
			&shop.ID, &shop.ShopName, &shop.Address, &shop.Contact, &shop.Email,
			&shop.CostSingleSide, &shop.CostBothSides, &shop.ShopImage,
			&shop.CreatedAt, &shop.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования магазина: %w", err)
		}
		result = append(result, shop)
	}
	return result, rows.Err()
}
