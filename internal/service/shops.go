// shops.go — сервис каталога печатных магазинов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/repository"
)

// ShopService — бизнес-логика каталога магазинов.
type ShopService struct {
	shops  repository.ShopRepository
	logger *slog.Logger
}

// NewShopService создаёт сервис каталога магазинов.
func NewShopService(shops repository.ShopRepository, logger *slog.Logger) *ShopService {
	return &ShopService{
		shops:  shops,
		logger: logger.With(slog.String("component", "shop_service")),
	}
}

// List возвращает каталог магазинов в алфавитном порядке.
func (s *ShopService) List(ctx context.Context, limit, offset int) ([]*model.Shop, error) {
	return s.shops.List(ctx, limit, offset)
}

// Get возвращает профиль магазина.
func (s *ShopService) Get(ctx context.Context, id string) (*model.Shop, error) {
	shop, err := s.shops.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return shop, nil
}

// UpsertProfile создаёт либо обновляет профиль магазина.
// actor становится владельцем профиля: id профиля равен sub из JWT,
// подменить чужой профиль невозможно.
func (s *ShopService) UpsertProfile(ctx context.Context, actor, email string, shop *model.Shop) (*model.Shop, error) {
	if shop.ShopName == "" {
		return nil, fmt.Errorf("%w: не указано название магазина", ErrValidation)
	}
	if shop.Address == "" {
		return nil, fmt.Errorf("%w: не указан адрес магазина", ErrValidation)
	}
	if shop.CostSingleSide != nil && *shop.CostSingleSide < 0 {
		return nil, fmt.Errorf("%w: стоимость не может быть отрицательной", ErrValidation)
	}
	if shop.CostBothSides != nil && *shop.CostBothSides < 0 {
		return nil, fmt.Errorf("%w: стоимость не может быть отрицательной", ErrValidation)
	}

	shop.ID = actor
	if shop.Email == "" {
		shop.Email = email
	}

	if err := s.shops.Upsert(ctx, shop); err != nil {
		return nil, err
	}

	s.logger.Info("Профиль магазина сохранён",
		slog.String("id", shop.ID),
		slog.String("shop_name", shop.ShopName),
	)
	return shop, nil
}
