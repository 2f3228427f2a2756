// files.go — выдача документов заявок.
// GET /api/v1/requests/{id}/file — скачивание исходного документа.
// Скачивание не меняет состояние заявки.
package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/CS-Kiran/print-seva/order-module/internal/api/errors"
	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/service"
)

// FilesHandler — обработчик выдачи документов.
type FilesHandler struct {
	requests *service.RequestService
	transfer *service.TransferService
	logger   *slog.Logger
}

// NewFilesHandler создаёт обработчик выдачи документов.
func NewFilesHandler(requests *service.RequestService, transfer *service.TransferService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		requests: requests,
		transfer: transfer,
		logger:   logger.With(slog.String("component", "files_handler")),
	}
}

// DownloadFile обрабатывает GET /api/v1/requests/{id}/file.
// Документ отдаётся участникам заявки в любом её состоянии.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный id заявки: ожидается UUID")
		return
	}

	// Авторизацию по принадлежности выполняет сервис
	req, err := h.requests.Get(r.Context(), principal.Subject, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	f, err := h.transfer.Open(req, principal.Subject)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", req.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(req.FileSize, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", req.FileName))
	w.Header().Set("X-Checksum-SHA256", req.Checksum)

	if _, err := io.Copy(w, f); err != nil {
		// Заголовки уже ушли, остаётся только залогировать
		h.logger.Error("Ошибка отдачи документа",
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
	}
}
