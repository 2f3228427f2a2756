package model

import "time"

// Shop — профиль печатного магазина.
// ID совпадает с sub владельца (shopkeeper) из JWT.
type Shop struct {
	ID       string `json:"shopkeeper_id"`
	ShopName string `json:"shop_name"`
	Address  string `json:"address"`
	Contact  string `json:"contact,omitempty"`
	Email    string `json:"email,omitempty"`

	// Стоимость печати одной страницы (опционально, публикуется в каталоге).
	CostSingleSide *float64 `json:"cost_single_side,omitempty"`
	CostBothSides  *float64 `json:"cost_both_sides,omitempty"`

	// ShopImage — путь изображения магазина в хранилище (опционально).
	ShopImage *string `json:"shop_image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
