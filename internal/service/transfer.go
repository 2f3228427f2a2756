// transfer.go — шлюз загрузки и выдачи документов заявок.
//
// Загрузка проверяет MIME-тип и лимит размера до записи на диск,
// запись выполняется с ограничением по времени (OM_STORAGE_OP_TIMEOUT).
// Выдача доступна только участникам заявки; скачивание никогда
// не меняет её состояние.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/storage/filestore"
)

// StoredDocument — метаданные сохранённого документа.
type StoredDocument struct {
	// Ref — относительный путь документа в хранилище.
	Ref string
	// OriginalName — имя файла, указанное клиентом.
	OriginalName string
	// Size — размер в байтах.
	Size int64
	// ContentType — MIME-тип.
	ContentType string
	// Checksum — SHA-256 содержимого.
	Checksum string
}

// TransferService — шлюз файловых операций.
type TransferService struct {
	store        *filestore.FileStore
	maxFileSize  int64
	allowedTypes []string
	opTimeout    time.Duration
	logger       *slog.Logger
}

// NewTransferService создаёт шлюз файловых операций.
func NewTransferService(
	store *filestore.FileStore,
	maxFileSize int64,
	allowedTypes []string,
	opTimeout time.Duration,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		store:        store,
		maxFileSize:  maxFileSize,
		allowedTypes: allowedTypes,
		opTimeout:    opTimeout,
		logger:       logger.With(slog.String("component", "transfer_service")),
	}
}

// saveOutcome — результат фоновой записи на диск.
type saveOutcome struct {
	result *filestore.SaveResult
	err    error
}

// ctxReader прерывает чтение после отмены контекста, чтобы фоновая
// запись не продолжалась бесконечно после таймаута.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Store сохраняет документ в хранилище.
// Проверяет MIME-тип по allowlist и размер по лимиту.
// Запись ограничена opTimeout: по истечении возвращается ErrTimeout,
// а незавершённая фоновая запись дорабатывает и убирает за собой файлы.
func (t *TransferService) Store(ctx context.Context, reader io.Reader, filename, contentType string) (*StoredDocument, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: не указано имя файла", ErrValidation)
	}
	if !t.contentTypeAllowed(contentType) {
		return nil, fmt.Errorf("%w: недопустимый тип документа %q, допустимые: %s",
			ErrValidation, contentType, strings.Join(t.allowedTypes, ", "))
	}

	// Лимит + 1 байт: превышение детектируем по факту записи
	limited := io.LimitReader(reader, t.maxFileSize+1)

	ctx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	done := make(chan saveOutcome, 1)
	go func() {
		result, err := t.store.SaveDocument(&ctxReader{ctx: ctx, r: limited}, filename)
		done <- saveOutcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		t.logger.Error("Запись документа не уложилась в таймаут",
			slog.String("filename", filename),
			slog.Duration("timeout", t.opTimeout),
		)
		// Фоновая запись после отмены контекста завершится ошибкой и
		// уберёт temp-файл; если она успела дописать документ — удаляем,
		// заявка на него уже не сошлётся.
		go func() {
			out := <-done
			if out.err == nil {
				t.store.Delete(out.result.StorageRef) //nolint:errcheck
			}
		}()
		return nil, fmt.Errorf("%w: запись документа", ErrTimeout)
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStorage, out.err.Error())
		}

		if out.result.Size > t.maxFileSize {
			t.store.Delete(out.result.StorageRef)
			return nil, fmt.Errorf("%w: лимит %d байт", ErrFileTooLarge, t.maxFileSize)
		}
		if out.result.Size == 0 {
			t.store.Delete(out.result.StorageRef)
			return nil, fmt.Errorf("%w: пустой документ", ErrValidation)
		}

		middleware.DocumentBytesTotal.Add(float64(out.result.Size))

		t.logger.Info("Документ сохранён",
			slog.String("ref", out.result.StorageRef),
			slog.Int64("size", out.result.Size),
			slog.String("content_type", contentType),
		)

		return &StoredDocument{
			Ref:          out.result.StorageRef,
			OriginalName: filename,
			Size:         out.result.Size,
			ContentType:  contentType,
			Checksum:     out.result.Checksum,
		}, nil
	}
}

// Open открывает документ заявки для чтения.
// Доступ имеют только requester и target. Вызывающий обязан закрыть файл.
func (t *TransferService) Open(req *model.PrintRequest, actor string) (*os.File, error) {
	if req.Requester != actor && req.Target != actor {
		return nil, ErrForbidden
	}

	f, err := t.store.Open(req.FileRef)
	if err != nil {
		if !t.store.Exists(req.FileRef) {
			// Запись о заявке есть, документа на диске нет
			t.logger.Error("Документ заявки отсутствует на диске",
				slog.String("id", req.ID),
				slog.String("ref", req.FileRef),
			)
			return nil, fmt.Errorf("%w: документ не найден в хранилище", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrStorage, err.Error())
	}
	return f, nil
}

// Remove удаляет документ из хранилища. Ошибка логируется и
// возвращается: по ней сервис решает, подтверждать ли вычистку.
func (t *TransferService) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := t.store.Delete(ref); err != nil {
		t.logger.Warn("Не удалось удалить документ",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// contentTypeAllowed проверяет MIME-тип по allowlist.
// Сравнение без параметров (text/plain; charset=... → text/plain).
func (t *TransferService) contentTypeAllowed(contentType string) bool {
	base := contentType
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	for _, allowed := range t.allowedTypes {
		if base == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
