// handler.go — сборка маршрутов Order Module на chi.
package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/lifecycle"
)

// APIHandler — собирает доменные handlers и регистрирует маршруты.
type APIHandler struct {
	requests *RequestsHandler
	files    *FilesHandler
	shops    *ShopsHandler
	health   *HealthHandler
	auth     *middleware.JWTAuth
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	requests *RequestsHandler,
	files *FilesHandler,
	shops *ShopsHandler,
	health *HealthHandler,
	auth *middleware.JWTAuth,
) *APIHandler {
	return &APIHandler{
		requests: requests,
		files:    files,
		shops:    shops,
		health:   health,
		auth:     auth,
	}
}

// Routes регистрирует все маршруты на router.
//
// Публичные: health, metrics, каталог магазинов.
// Остальное — за JWT; роль проверяется на мутирующих операциях:
// заявки создаёт и редактирует customer, переходы выполняет shopkeeper.
func (h *APIHandler) Routes(router chi.Router) {
	// --- Публичные endpoints ---
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)
	router.Get("/metrics", h.health.GetMetrics)

	router.Get("/api/v1/shops", h.shops.ListShops)
	router.Get("/api/v1/shops/{id}", h.shops.GetShop)

	// --- Защищённые endpoints ---
	router.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware())

		// Профиль магазина
		r.With(middleware.RequireRole(middleware.RoleShopkeeper)).
			Put("/api/v1/shops/profile", h.shops.UpsertProfile)

		// Заявки
		r.Route("/api/v1/requests", func(r chi.Router) {
			r.Get("/", h.requests.ListRequests)
			r.With(middleware.RequireRole(middleware.RoleCustomer)).
				Post("/", h.requests.CreateRequest)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.requests.GetRequest)
				r.Get("/file", h.files.DownloadFile)

				customer := r.With(middleware.RequireRole(middleware.RoleCustomer))
				customer.Patch("/", h.requests.UpdateRequest)
				customer.Delete("/", h.requests.DeleteRequest)

				shop := r.With(middleware.RequireRole(middleware.RoleShopkeeper))
				shop.Post("/accept", h.requests.Transition(lifecycle.TransitionAccept))
				shop.Post("/decline", h.requests.Transition(lifecycle.TransitionDecline))
				shop.Post("/respond", h.requests.Transition(lifecycle.TransitionRespond))
				shop.Post("/printed", h.requests.Transition(lifecycle.TransitionPrinted))
			})
		})
	})
}
