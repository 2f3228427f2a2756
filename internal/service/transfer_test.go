package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/storage/filestore"
)

func newTestTransfer(t *testing.T, maxSize int64, timeout time.Duration) (*TransferService, *filestore.FileStore) {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	svc := NewTransferService(store, maxSize,
		[]string{"application/pdf", "image/png"}, timeout, testLogger())
	return svc, store
}

// TestStore проверяет штатную загрузку документа.
func TestStore(t *testing.T) {
	svc, store := newTestTransfer(t, 1<<20, 5*time.Second)

	content := []byte("%PDF-1.7 содержимое документа")
	doc, err := svc.Store(context.Background(), bytes.NewReader(content), "report.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Store() ошибка: %v", err)
	}

	if doc.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидалось %d", doc.Size, len(content))
	}
	if doc.OriginalName != "report.pdf" {
		t.Errorf("OriginalName = %q", doc.OriginalName)
	}
	if doc.Checksum == "" {
		t.Error("Checksum пустой")
	}
	if !store.Exists(doc.Ref) {
		t.Error("документ не найден в хранилище")
	}
}

// TestStore_ContentTypeAllowlist проверяет фильтр MIME-типов.
func TestStore_ContentTypeAllowlist(t *testing.T) {
	svc, _ := newTestTransfer(t, 1<<20, 5*time.Second)
	ctx := context.Background()

	tests := []struct {
		contentType string
		wantOK      bool
	}{
		{"application/pdf", true},
		{"application/pdf; charset=binary", true}, // Параметры отбрасываются
		{"APPLICATION/PDF", true},
		{"image/png", true},
		{"application/x-msdownload", false},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		_, err := svc.Store(ctx, strings.NewReader("data"), "f.bin", tt.contentType)
		if tt.wantOK && err != nil {
			t.Errorf("Store(%q) ошибка: %v", tt.contentType, err)
		}
		if !tt.wantOK && !errors.Is(err, ErrValidation) {
			t.Errorf("Store(%q) = %v, ожидался ErrValidation", tt.contentType, err)
		}
	}
}

// TestStore_FileTooLarge проверяет лимит размера.
func TestStore_FileTooLarge(t *testing.T) {
	svc, store := newTestTransfer(t, 100, 5*time.Second)

	big := bytes.Repeat([]byte("x"), 101)
	_, err := svc.Store(context.Background(), bytes.NewReader(big), "big.pdf", "application/pdf")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Store() = %v, ожидался ErrFileTooLarge", err)
	}

	// Документ точно в лимит — проходит
	exact := bytes.Repeat([]byte("x"), 100)
	doc, err := svc.Store(context.Background(), bytes.NewReader(exact), "ok.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Store() ошибка: %v", err)
	}
	if doc.Size != 100 {
		t.Errorf("Size = %d, ожидалось 100", doc.Size)
	}
	if !store.Exists(doc.Ref) {
		t.Error("документ не найден в хранилище")
	}
}

// TestStore_Empty проверяет отклонение пустого документа.
func TestStore_Empty(t *testing.T) {
	svc, _ := newTestTransfer(t, 1<<20, 5*time.Second)

	_, err := svc.Store(context.Background(), bytes.NewReader(nil), "empty.pdf", "application/pdf")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("пустой документ: %v, ожидался ErrValidation", err)
	}
}

// slowReader блокируется до отмены контекста.
type slowReader struct {
	ctx context.Context
}

func (r *slowReader) Read(_ []byte) (int, error) {
	<-r.ctx.Done()
	return 0, io.EOF
}

// TestStore_Timeout проверяет ограничение времени записи.
func TestStore_Timeout(t *testing.T) {
	svc, _ := newTestTransfer(t, 1<<20, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Store(ctx, &slowReader{ctx: ctx}, "slow.pdf", "application/pdf")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Store() = %v, ожидался ErrTimeout", err)
	}
}

// blockedReader отдаёт один фрагмент, затем блокируется до release.
type blockedReader struct {
	release chan struct{}
	sent    bool
}

func (r *blockedReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, []byte("%PDF-1.7 начало")), nil
	}
	<-r.release
	return 0, io.EOF
}

// countFiles считает обычные файлы (включая temp) в хранилище.
func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("обход хранилища: %v", err)
	}
	return n
}

// TestStore_TimeoutLeavesNoFiles проверяет, что после таймаута записи
// в хранилище не остаётся ни документа, ни temp-файла: фоновая запись
// прерывается отменой контекста и убирает за собой.
func TestStore_TimeoutLeavesNoFiles(t *testing.T) {
	svc, store := newTestTransfer(t, 1<<20, 50*time.Millisecond)

	reader := &blockedReader{release: make(chan struct{})}
	_, err := svc.Store(context.Background(), reader, "stuck.pdf", "application/pdf")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Store() = %v, ожидался ErrTimeout", err)
	}

	// Разблокируем фоновую запись и ждём вычистки
	close(reader.release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countFiles(t, store.DataDir()) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("в хранилище осталось %d файлов после таймаута", countFiles(t, store.DataDir()))
}

// TestOpen_Authorization проверяет доступ к документу только участникам.
func TestOpen_Authorization(t *testing.T) {
	svc, _ := newTestTransfer(t, 1<<20, 5*time.Second)

	doc, err := svc.Store(context.Background(), strings.NewReader("pdf data"), "doc.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Store() ошибка: %v", err)
	}

	req := &model.PrintRequest{
		ID:        "req-1",
		Requester: "cust-1",
		Target:    "shop-1",
		FileRef:   doc.Ref,
	}

	// Участники читают
	for _, actor := range []string{"cust-1", "shop-1"} {
		f, err := svc.Open(req, actor)
		if err != nil {
			t.Errorf("Open(%s) ошибка: %v", actor, err)
			continue
		}
		f.Close()
	}

	// Посторонний — нет
	if _, err := svc.Open(req, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Open(stranger) = %v, ожидался ErrForbidden", err)
	}
}

// TestOpen_LostDocument проверяет ErrNotFound при утерянном документе.
func TestOpen_LostDocument(t *testing.T) {
	svc, _ := newTestTransfer(t, 1<<20, 5*time.Second)

	req := &model.PrintRequest{
		ID:        "req-1",
		Requester: "cust-1",
		Target:    "shop-1",
		FileRef:   "aa/bb/gone.pdf",
	}

	if _, err := svc.Open(req, "cust-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() = %v, ожидался ErrNotFound", err)
	}
}

// TestProjections проверяет срезы заявки по ролям.
func TestProjections(t *testing.T) {
	req := storedRequest("req-1", model.StatusResponded, model.ActionAccepted)
	req.RequesterEmail = "cust-1@example.com"

	rv := ProjectForRequester(req, "Печать-сервис")
	if rv.ShopName != "Печать-сервис" || rv.Target != "shop-1" {
		t.Errorf("RequesterView: %+v", rv)
	}
	if rv.Status != model.StatusResponded || rv.Action != model.ActionAccepted {
		t.Errorf("RequesterView состояние: %s/%s", rv.Status, rv.Action)
	}

	tv := ProjectForTarget(req)
	if tv.Requester != "cust-1" || tv.RequesterEmail != "cust-1@example.com" {
		t.Errorf("TargetView: %+v", tv)
	}
	if tv.FileName != "doc.pdf" {
		t.Errorf("TargetView.FileName = %q", tv.FileName)
	}
}
