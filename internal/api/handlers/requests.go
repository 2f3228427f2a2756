// requests.go — HTTP handlers заявок на печать.
// Создание (multipart), списки по ролям, детали, редактирование,
// удаление и переходы жизненного цикла.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/CS-Kiran/print-seva/order-module/internal/api/errors"
	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/lifecycle"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/service"
)

// RequestsHandler — обработчик endpoints заявок.
type RequestsHandler struct {
	requests *service.RequestService
	shops    *service.ShopService
	transfer *service.TransferService
	logger   *slog.Logger
}

// NewRequestsHandler создаёт обработчик заявок.
func NewRequestsHandler(
	requests *service.RequestService,
	shops *service.ShopService,
	transfer *service.TransferService,
	logger *slog.Logger,
) *RequestsHandler {
	return &RequestsHandler{
		requests: requests,
		shops:    shops,
		transfer: transfer,
		logger:   logger.With(slog.String("component", "requests_handler")),
	}
}

// parseSpecForm читает поля спецификации из multipart/PATCH формы.
func parseSpecForm(get func(string) string) (model.RequestSpec, error) {
	var spec model.RequestSpec

	totalPages, err := strconv.Atoi(get("total_pages"))
	if err != nil {
		return spec, fmt.Errorf("total_pages: ожидается целое число")
	}
	copies, err := strconv.Atoi(get("no_of_copies"))
	if err != nil {
		return spec, fmt.Errorf("no_of_copies: ожидается целое число")
	}

	spec = model.RequestSpec{
		TotalPages: totalPages,
		PrintType:  model.PrintType(get("print_type")),
		PrintSide:  model.PrintSide(get("print_side")),
		PageSize:   model.PageSize(get("page_size")),
		Copies:     copies,
		Comments:   get("comments"),
	}
	return spec, nil
}

// CreateRequest обрабатывает POST /api/v1/requests.
// Multipart form: file (обязательно), target (обязательно),
// total_pages, print_type, print_side, page_size, no_of_copies, comments.
func (h *RequestsHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	// 32 MB — буфер формы в памяти, остальное уходит на диск
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	spec, err := parseSpecForm(r.FormValue)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	target := r.FormValue("target")

	doc, err := h.transfer.Store(r.Context(), file, header.Filename, contentType)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	req, err := h.requests.Create(r.Context(), principal.Subject, principal.Email, target, spec, doc)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.ProjectForRequester(req, h.shopName(r, req.Target)))
}

// ListRequests обрабатывает GET /api/v1/requests.
// Клиент видит свои заявки, магазин — свою очередь (?pending=true
// оставляет только заявки без решения). Новые первыми.
func (h *RequestsHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	limit, offset, ok := parsePagination(r)
	if !ok {
		apierrors.ValidationError(w, "Параметры limit (1-1000) и offset (>= 0) некорректны")
		return
	}

	switch principal.Role {
	case middleware.RoleCustomer:
		list, err := h.requests.ListForRequester(r.Context(), principal.Subject, limit, offset)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		views := make([]*service.RequesterView, 0, len(list))
		for _, req := range list {
			views = append(views, service.ProjectForRequester(req, h.shopName(r, req.Target)))
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": views, "count": len(views)})

	case middleware.RoleShopkeeper:
		onlyPending := r.URL.Query().Get("pending") == "true"
		list, err := h.requests.ListForTarget(r.Context(), principal.Subject, onlyPending, limit, offset)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		views := make([]*service.TargetView, 0, len(list))
		for _, req := range list {
			views = append(views, service.ProjectForTarget(req))
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": views, "count": len(views)})

	default:
		apierrors.Forbidden(w, "Неизвестная роль пользователя")
	}
}

// GetRequest обрабатывает GET /api/v1/requests/{id}.
func (h *RequestsHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	req, err := h.requests.Get(r.Context(), principal.Subject, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if principal.Role == middleware.RoleShopkeeper {
		writeJSON(w, http.StatusOK, service.ProjectForTarget(req))
		return
	}
	writeJSON(w, http.StatusOK, service.ProjectForRequester(req, h.shopName(r, req.Target)))
}

// updateSpecBody — тело PATCH /api/v1/requests/{id}.
type updateSpecBody struct {
	TotalPages int    `json:"total_pages"`
	PrintType  string `json:"print_type"`
	PrintSide  string `json:"print_side"`
	PageSize   string `json:"page_size"`
	Copies     int    `json:"no_of_copies"`
	Comments   string `json:"comments"`
}

// UpdateRequest обрабатывает PATCH /api/v1/requests/{id}.
// Редактирование спецификации до решения магазина.
func (h *RequestsHandler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	var body updateSpecBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	spec := model.RequestSpec{
		TotalPages: body.TotalPages,
		PrintType:  model.PrintType(body.PrintType),
		PrintSide:  model.PrintSide(body.PrintSide),
		PageSize:   model.PageSize(body.PageSize),
		Copies:     body.Copies,
		Comments:   body.Comments,
	}

	req, err := h.requests.UpdateSpec(r.Context(), principal.Subject, id, spec)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, service.ProjectForRequester(req, h.shopName(r, req.Target)))
}

// DeleteRequest обрабатывает DELETE /api/v1/requests/{id}.
func (h *RequestsHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	if err := h.requests.Delete(r.Context(), principal.Subject, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Transition обрабатывает POST /api/v1/requests/{id}/{accept|decline|respond|printed}.
// Возвращает handler для конкретного перехода.
func (h *RequestsHandler) Transition(tr lifecycle.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.PrincipalFromContext(r.Context())
		id, ok := h.requestID(w, r)
		if !ok {
			return
		}

		req, err := h.requests.Transition(r.Context(), principal.Subject, id, tr)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}

		writeJSON(w, http.StatusOK, service.ProjectForTarget(req))
	}
}

// requestID извлекает и валидирует UUID заявки из пути.
func (h *RequestsHandler) requestID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный id заявки: ожидается UUID")
		return "", false
	}
	return id, true
}

// shopName возвращает имя магазина для проекции клиента.
// Отсутствие профиля — не ошибка, возвращается пустая строка.
func (h *RequestsHandler) shopName(r *http.Request, target string) string {
	shop, err := h.shops.Get(r.Context(), target)
	if err != nil {
		return ""
	}
	return shop.ShopName
}
