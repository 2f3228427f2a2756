package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/CS-Kiran/print-seva/order-module/internal/config"
	"github.com/CS-Kiran/print-seva/order-module/internal/database"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("printseva_test"),
		postgres.WithUsername("printseva"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("OM_DB_HOST", host)
	os.Setenv("OM_DB_PORT", port.Port())
	os.Setenv("OM_DB_NAME", "printseva_test")
	os.Setenv("OM_DB_USER", "printseva")
	os.Setenv("OM_DB_PASSWORD", "test-password")
	os.Setenv("OM_DB_SSL_MODE", "disable")
	os.Setenv("OM_JWT_JWKS_URL", "http://localhost:8080/realms/print-seva/protocol/openid-connect/certs")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newTestRequest возвращает заявку в начальном состоянии Pending/Pending.
func newTestRequest(requester, target string) *model.PrintRequest {
	return &model.PrintRequest{
		ID:             uuid.New().String(),
		Requester:      requester,
		RequesterEmail: requester + "@example.com",
		Target:         target,
		Spec: model.RequestSpec{
			TotalPages: 12,
			PrintType:  model.PrintTypeMonochrome,
			PrintSide:  model.PrintSideDouble,
			PageSize:   model.PageSizeA4,
			Copies:     2,
			Comments:   "скрепить степлером",
		},
		FileRef:     "ab/cd/" + uuid.New().String() + ".pdf",
		FileName:    "report.pdf",
		FileSize:    204800,
		ContentType: "application/pdf",
		Checksum:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Status:      model.StatusPending,
		Action:      model.ActionPending,
	}
}

// --- Тесты PrintRequestRepository ---

func TestPrintRequestCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPrintRequestRepository(pool, NewTxRunner(pool))

	req := newTestRequest("customer-1", "shop-1")

	// Create
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if req.RequestTime.IsZero() {
		t.Error("RequestTime не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Spec.TotalPages != 12 || got.Spec.Copies != 2 {
		t.Errorf("Spec = %+v, не совпадает с созданной", got.Spec)
	}
	if got.Status != model.StatusPending || got.Action != model.ActionPending {
		t.Errorf("начальное состояние: status=%s action=%s", got.Status, got.Action)
	}

	// GetByID несуществующей
	if _, err := repo.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(чужой id) = %v, ожидался ErrNotFound", err)
	}

	// UpdateSpec в Pending/Pending
	spec := got.Spec
	spec.Copies = 5
	if err := repo.UpdateSpec(ctx, req.ID, spec); err != nil {
		t.Fatalf("UpdateSpec() ошибка: %v", err)
	}
	got2, _ := repo.GetByID(ctx, req.ID)
	if got2.Spec.Copies != 5 {
		t.Errorf("Copies после UpdateSpec = %d, ожидалось 5", got2.Spec.Copies)
	}
	if !got2.UpdateTime.After(got.UpdateTime) {
		t.Error("UpdateTime не продвинулся после UpdateSpec")
	}

	// Delete в Pending
	if err := repo.Delete(ctx, req.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, req.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID после Delete = %v, ожидался ErrNotFound", err)
	}
}

// TestPrintRequestDeleteCleanupQueue проверяет, что Delete атомарно
// ставит документ заявки в очередь вычистки, а AckCleanup снимает его.
func TestPrintRequestDeleteCleanupQueue(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPrintRequestRepository(pool, NewTxRunner(pool))

	req := newTestRequest("customer-5", "shop-6")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if err := repo.Delete(ctx, req.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	refs, err := repo.ListCleanups(ctx, 100)
	if err != nil {
		t.Fatalf("ListCleanups() ошибка: %v", err)
	}
	found := false
	for _, ref := range refs {
		if ref == req.FileRef {
			found = true
		}
	}
	if !found {
		t.Fatalf("документ %s не попал в очередь вычистки", req.FileRef)
	}

	if err := repo.AckCleanup(ctx, req.FileRef); err != nil {
		t.Fatalf("AckCleanup() ошибка: %v", err)
	}
	refs, err = repo.ListCleanups(ctx, 100)
	if err != nil {
		t.Fatalf("ListCleanups() после ack ошибка: %v", err)
	}
	for _, ref := range refs {
		if ref == req.FileRef {
			t.Errorf("документ %s остался в очереди после AckCleanup", ref)
		}
	}

	// Повторное подтверждение — no-op
	if err := repo.AckCleanup(ctx, req.FileRef); err != nil {
		t.Errorf("повторный AckCleanup() = %v, ожидался nil", err)
	}
}

func TestPrintRequestLists(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPrintRequestRepository(pool, NewTxRunner(pool))

	// Три заявки одного клиента к одному магазину, одна — к другому
	first := newTestRequest("customer-2", "shop-2")
	second := newTestRequest("customer-2", "shop-2")
	third := newTestRequest("customer-2", "shop-3")
	for _, req := range []*model.PrintRequest{first, second, third} {
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	// Списки клиента — новые первыми
	list, err := repo.ListByRequester(ctx, "customer-2", 10, 0)
	if err != nil {
		t.Fatalf("ListByRequester() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListByRequester() вернул %d записей, хотели 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].RequestTime.After(list[i-1].RequestTime) {
			t.Error("ListByRequester: нарушен порядок новые-первыми")
		}
	}

	// Очередь магазина
	queue, err := repo.ListByTarget(ctx, "shop-2", false, 10, 0)
	if err != nil {
		t.Fatalf("ListByTarget() ошибка: %v", err)
	}
	if len(queue) != 2 {
		t.Errorf("ListByTarget(shop-2) вернул %d записей, хотели 2", len(queue))
	}

	// Принятая заявка уходит из фильтра onlyPending
	if err := repo.UpdateAction(ctx, first.ID, model.ActionPending, model.ActionAccepted); err != nil {
		t.Fatalf("UpdateAction() ошибка: %v", err)
	}
	pending, err := repo.ListByTarget(ctx, "shop-2", true, 10, 0)
	if err != nil {
		t.Fatalf("ListByTarget(onlyPending) ошибка: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("фильтр onlyPending вернул %d записей, хотели только %s", len(pending), second.ID)
	}
}

func TestPrintRequestConditionalUpdates(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPrintRequestRepository(pool, NewTxRunner(pool))

	req := newTestRequest("customer-3", "shop-4")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Принимаем заявку
	if err := repo.UpdateAction(ctx, req.ID, model.ActionPending, model.ActionAccepted); err != nil {
		t.Fatalf("UpdateAction(accept) ошибка: %v", err)
	}

	// Повторное решение не проходит: action уже не Pending
	err := repo.UpdateAction(ctx, req.ID, model.ActionPending, model.ActionDeclined)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повторный UpdateAction = %v, ожидался ErrConflict", err)
	}

	// Спецификация заморожена после решения
	if err := repo.UpdateSpec(ctx, req.ID, req.Spec); !errors.Is(err, ErrConflict) {
		t.Errorf("UpdateSpec после accept = %v, ожидался ErrConflict", err)
	}

	// Удаление заморожено после решения
	if err := repo.Delete(ctx, req.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Delete после accept = %v, ожидался ErrConflict", err)
	}

	// Responded требует action = Accepted — здесь условие выполнено
	if err := repo.UpdateStatus(ctx, req.ID, model.StatusPending, model.StatusResponded, model.ActionAccepted); err != nil {
		t.Fatalf("UpdateStatus(respond) ошибка: %v", err)
	}

	// Повторный переход в Responded не проходит: status уже не Pending
	err = repo.UpdateStatus(ctx, req.ID, model.StatusPending, model.StatusResponded, model.ActionAccepted)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повторный UpdateStatus = %v, ожидался ErrConflict", err)
	}

	// Printed из Responded
	if err := repo.UpdateStatus(ctx, req.ID, model.StatusResponded, model.StatusPrinted, model.ActionAccepted); err != nil {
		t.Fatalf("UpdateStatus(printed) ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusPrinted || got.Action != model.ActionAccepted {
		t.Errorf("конечное состояние: status=%s action=%s", got.Status, got.Action)
	}
}

func TestPrintRequestDeclinedFreeze(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPrintRequestRepository(pool, NewTxRunner(pool))

	req := newTestRequest("customer-4", "shop-5")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if err := repo.UpdateAction(ctx, req.ID, model.ActionPending, model.ActionDeclined); err != nil {
		t.Fatalf("UpdateAction(decline) ошибка: %v", err)
	}

	// Статус отклонённой заявки не продвигается: требуется action = Accepted
	err := repo.UpdateStatus(ctx, req.ID, model.StatusPending, model.StatusResponded, model.ActionAccepted)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("UpdateStatus после decline = %v, ожидался ErrConflict", err)
	}

	got, _ := repo.GetByID(ctx, req.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status отклонённой заявки = %s, должен остаться Pending", got.Status)
	}
}

// --- Тесты ShopRepository ---

func TestShopUpsertAndList(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewShopRepository(pool)

	single := 2.50
	both := 4.00
	shop := &model.Shop{
		ID:             "shop-owner-1",
		ShopName:       "Быстрая печать",
		Address:        "ул. Печатников, 5",
		Contact:        "+7 900 000-00-00",
		Email:          "print@example.com",
		CostSingleSide: &single,
		CostBothSides:  &both,
	}

	// Первая запись — INSERT
	if err := repo.Upsert(ctx, shop); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if shop.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// Повторная запись — UPDATE того же профиля
	shop.Address = "ул. Печатников, 7"
	if err := repo.Upsert(ctx, shop); err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, "shop-owner-1")
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Address != "ул. Печатников, 7" {
		t.Errorf("Address = %q после повторного Upsert", got.Address)
	}
	if got.CostSingleSide == nil || *got.CostSingleSide != 2.50 {
		t.Errorf("CostSingleSide = %v, хотели 2.50", got.CostSingleSide)
	}

	// Каталог
	list, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	// Несуществующий магазин
	if _, err := repo.GetByID(ctx, "no-such-shop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(no-such-shop) = %v, ожидался ErrNotFound", err)
	}
}
