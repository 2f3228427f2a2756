// shops.go — HTTP handlers каталога печатных магазинов.
// Каталог и карточка магазина публичны, профиль редактирует владелец.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/CS-Kiran/print-seva/order-module/internal/api/errors"
	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/service"

	"github.com/go-chi/chi/v5"
)

// ShopsHandler — обработчик endpoints каталога магазинов.
type ShopsHandler struct {
	shops  *service.ShopService
	logger *slog.Logger
}

// NewShopsHandler создаёт обработчик каталога магазинов.
func NewShopsHandler(shops *service.ShopService, logger *slog.Logger) *ShopsHandler {
	return &ShopsHandler{
		shops:  shops,
		logger: logger.With(slog.String("component", "shops_handler")),
	}
}

// ListShops обрабатывает GET /api/v1/shops.
func (h *ShopsHandler) ListShops(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(r)
	if !ok {
		apierrors.ValidationError(w, "Параметры limit (1-1000) и offset (>= 0) некорректны")
		return
	}

	list, err := h.shops.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"shops": list, "count": len(list)})
}

// GetShop обрабатывает GET /api/v1/shops/{id}.
func (h *ShopsHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.shops.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

// shopProfileBody — тело PUT /api/v1/shops/profile.
type shopProfileBody struct {
	ShopName       string   `json:"shop_name"`
	Address        string   `json:"address"`
	Contact        string   `json:"contact"`
	Email          string   `json:"email"`
	CostSingleSide *float64 `json:"cost_single_side"`
	CostBothSides  *float64 `json:"cost_both_sides"`
	ShopImage      *string  `json:"shop_image"`
}

// UpsertProfile обрабатывает PUT /api/v1/shops/profile.
// Создаёт либо обновляет профиль магазина текущего shopkeeper.
func (h *ShopsHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	var body shopProfileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	shop := &model.Shop{
		ShopName:       body.ShopName,
		Address:        body.Address,
		Contact:        body.Contact,
		Email:          body.Email,
		CostSingleSide: body.CostSingleSide,
		CostBothSides:  body.CostBothSides,
		ShopImage:      body.ShopImage,
	}

	saved, err := h.shops.UpsertProfile(r.Context(), principal.Subject, principal.Email, shop)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}
