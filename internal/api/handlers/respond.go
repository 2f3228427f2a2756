// respond.go — общие помощники ответов и маппинг ошибок сервисного слоя.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/CS-Kiran/print-seva/order-module/internal/api/errors"
	"github.com/CS-Kiran/print-seva/order-module/internal/service"
)

// writeJSON сериализует body в JSON с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неопознанные ошибки логируются и отдаются как 500 без деталей.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Доступ к ресурсу запрещён")
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrTimeout):
		apierrors.Timeout(w, "Операция хранилища не уложилась в отведённое время")
	case errors.Is(err, service.ErrStorage):
		logger.Error("Сбой файлового хранилища", slog.String("error", err.Error()))
		apierrors.StorageError(w, "Сбой файлового хранилища")
	default:
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// parsePagination читает limit/offset из query string.
// limit по умолчанию 50, максимум 1000.
func parsePagination(r *http.Request) (limit, offset int, ok bool) {
	limit, offset = 50, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			return 0, 0, false
		}
		limit = parsed
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}
