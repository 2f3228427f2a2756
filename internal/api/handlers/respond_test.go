package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CS-Kiran/print-seva/order-module/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// errorResponse разбирает тело ошибки формата Print Seva.
func errorResponse(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("некорректный JSON в теле ошибки: %v", err)
	}
	return body.Error.Code, body.Error.Message
}

// TestWriteServiceError проверяет маппинг ошибок сервисного слоя в HTTP.
func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"валидация", service.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"не найдено", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"запрещено", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"недопустимый переход", service.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"конфликт", service.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"большой файл", service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"таймаут", service.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{"хранилище", service.ErrStorage, http.StatusInternalServerError, "STORAGE_ERROR"},
		{"неизвестная", fmt.Errorf("что-то пошло не так"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, testLogger(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			code, _ := errorResponse(t, rec)
			if code != tt.wantCode {
				t.Errorf("code = %q, ожидался %q", code, tt.wantCode)
			}
		})
	}
}

// TestWriteServiceError_NotFoundNeutral проверяет, что сообщение 404
// нейтрально: ErrNotFound приходит и от заявок, и от магазинов.
func TestWriteServiceError_NotFoundNeutral(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, testLogger(), fmt.Errorf("%w: магазин", service.ErrNotFound))

	_, message := errorResponse(t, rec)
	if message != "Ресурс не найден" {
		t.Errorf("message = %q, ожидалось нейтральное \"Ресурс не найден\"", message)
	}
}
