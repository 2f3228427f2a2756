// requests.go — сервис заявок на печать: создание, чтение,
// редактирование и переходы жизненного цикла.
//
// Авторизация по принадлежности: клиент видит и мутирует только свои
// заявки, магазин — только адресованные ему. Допустимость переходов
// проверяет пакет lifecycle, атомарность обеспечивают условные UPDATE
// репозитория: ожидаемое состояние входит в WHERE, проигравшая гонку
// сторона получает конфликт.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/lifecycle"
	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
	"github.com/CS-Kiran/print-seva/order-module/internal/repository"
)

// RequestService — бизнес-логика заявок на печать.
type RequestService struct {
	requests repository.PrintRequestRepository
	shops    repository.ShopRepository
	cache    *CacheService
	transfer *TransferService
	logger   *slog.Logger
}

// NewRequestService создаёт сервис заявок.
func NewRequestService(
	requests repository.PrintRequestRepository,
	shops repository.ShopRepository,
	cache *CacheService,
	transfer *TransferService,
	logger *slog.Logger,
) *RequestService {
	return &RequestService{
		requests: requests,
		shops:    shops,
		cache:    cache,
		transfer: transfer,
		logger:   logger.With(slog.String("component", "request_service")),
	}
}

// Create создаёт заявку в начальном состоянии Pending/Pending.
// Документ должен быть уже сохранён в хранилище (doc).
// Заявка к незарегистрированному магазину отвергается.
func (s *RequestService) Create(
	ctx context.Context,
	requester, requesterEmail, target string,
	spec model.RequestSpec,
	doc *StoredDocument,
) (*model.PrintRequest, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if target == "" {
		return nil, fmt.Errorf("%w: не указан магазин", ErrValidation)
	}
	if requester == target {
		return nil, fmt.Errorf("%w: заявка самому себе недопустима", ErrValidation)
	}

	// Магазин должен существовать в каталоге
	if _, err := s.shops.GetByID(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: магазин %s не зарегистрирован", ErrValidation, target)
		}
		return nil, err
	}

	req := &model.PrintRequest{
		ID:             uuid.New().String(),
		Requester:      requester,
		RequesterEmail: requesterEmail,
		Target:         target,
		Spec:           spec,
		FileRef:        doc.Ref,
		FileName:       doc.OriginalName,
		FileSize:       doc.Size,
		ContentType:    doc.ContentType,
		Checksum:       doc.Checksum,
		Status:         model.StatusPending,
		Action:         model.ActionPending,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		// Осиротевший документ убираем сразу, не дожидаясь GC
		s.transfer.Remove(doc.Ref)
		return nil, err
	}

	middleware.RequestsCreatedTotal.Inc()
	s.logger.Info("Заявка создана",
		slog.String("id", req.ID),
		slog.String("requester", requester),
		slog.String("target", target),
	)

	return req, nil
}

// Get возвращает заявку, доступную пользователю.
// Доступ имеют только requester и target. Использует LRU-кэш.
func (s *RequestService) Get(ctx context.Context, actor, id string) (*model.PrintRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Requester != actor && req.Target != actor {
		return nil, ErrForbidden
	}
	return req, nil
}

// load читает заявку через кэш.
func (s *RequestService) load(ctx context.Context, id string) (*model.PrintRequest, error) {
	if req, ok := s.cache.Get(id); ok {
		return req, nil
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.cache.Set(id, req)
	return req, nil
}

// ListForRequester возвращает заявки клиента, новые первыми.
func (s *RequestService) ListForRequester(ctx context.Context, requester string, limit, offset int) ([]*model.PrintRequest, error) {
	return s.requests.ListByRequester(ctx, requester, limit, offset)
}

// ListForTarget возвращает очередь магазина, новые первыми.
// onlyPending — только заявки без решения.
func (s *RequestService) ListForTarget(ctx context.Context, target string, onlyPending bool, limit, offset int) ([]*model.PrintRequest, error) {
	return s.requests.ListByTarget(ctx, target, onlyPending, limit, offset)
}

// UpdateSpec редактирует спецификацию заявки.
// Допустимо только владельцу и только в состоянии Pending/Pending.
func (s *RequestService) UpdateSpec(ctx context.Context, actor, id string, spec model.RequestSpec) (*model.PrintRequest, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Requester != actor {
		return nil, ErrForbidden
	}
	if !lifecycle.CanEditSpec(lifecycle.State{Status: req.Status, Action: req.Action}) {
		return nil, fmt.Errorf("%w: спецификация неизменяема после решения магазина", ErrConflict)
	}

	if err := s.requests.UpdateSpec(ctx, id, spec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.conflictOrGone(ctx, id)
		}
		return nil, err
	}

	s.cache.Delete(id)
	return s.load(ctx, id)
}

// Delete удаляет заявку вместе с документом.
// Допустимо только владельцу и только до решения магазина.
func (s *RequestService) Delete(ctx context.Context, actor, id string) error {
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if req.Requester != actor {
		return ErrForbidden
	}
	if !lifecycle.CanDelete(lifecycle.State{Status: req.Status, Action: req.Action}) {
		return fmt.Errorf("%w: заявка уже рассмотрена магазином", ErrConflict)
	}

	if err := s.requests.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.conflictOrGone(ctx, id)
		}
		return err
	}

	s.cache.Delete(id)

	// Строка заявки удалена, документ стоит в очереди вычистки.
	// Убираем файл и подтверждаем; при неудаче вычистку доберёт
	// SweepCleanups при следующем старте.
	if err := s.transfer.Remove(req.FileRef); err == nil {
		if ackErr := s.requests.AckCleanup(ctx, req.FileRef); ackErr != nil {
			s.logger.Warn("Не удалось подтвердить вычистку документа",
				slog.String("ref", req.FileRef),
				slog.String("error", ackErr.Error()),
			)
		}
	}

	s.logger.Info("Заявка удалена",
		slog.String("id", id),
		slog.String("requester", actor),
	)
	return nil
}

// SweepCleanups добирает документы, оставшиеся в очереди вычистки
// после сбоя между коммитом удаления и удалением файла.
// Вызывается при старте модуля.
func (s *RequestService) SweepCleanups(ctx context.Context) error {
	refs, err := s.requests.ListCleanups(ctx, 100)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.transfer.Remove(ref); err != nil {
			continue
		}
		if err := s.requests.AckCleanup(ctx, ref); err != nil {
			s.logger.Warn("Не удалось подтвердить вычистку документа",
				slog.String("ref", ref),
				slog.String("error", err.Error()),
			)
		}
	}
	if len(refs) > 0 {
		s.logger.Info("Очередь вычистки документов обработана",
			slog.Int("count", len(refs)),
		)
	}
	return nil
}

// Transition выполняет переход жизненного цикла от имени магазина.
// actor должен совпадать с target заявки. Новое состояние вычисляет
// lifecycle, в базу уходит условный UPDATE с ожидаемым состоянием.
func (s *RequestService) Transition(ctx context.Context, actor, id string, tr lifecycle.Transition) (*model.PrintRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Target != actor {
		middleware.TransitionsTotal.WithLabelValues(string(tr), "forbidden").Inc()
		return nil, ErrForbidden
	}

	cur := lifecycle.State{Status: req.Status, Action: req.Action}
	next, err := lifecycle.Apply(cur, tr)
	if err != nil {
		middleware.TransitionsTotal.WithLabelValues(string(tr), "invalid").Inc()
		var te *lifecycle.TransitionError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, te.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	// Меняется ровно одна дорожка за переход
	switch {
	case next.Action != cur.Action:
		err = s.requests.UpdateAction(ctx, id, cur.Action, next.Action)
	case next.Status != cur.Status:
		err = s.requests.UpdateStatus(ctx, id, cur.Status, next.Status, next.Action)
	}
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			middleware.TransitionsTotal.WithLabelValues(string(tr), "conflict").Inc()
			s.cache.Delete(id)
			return nil, s.conflictOrGone(ctx, id)
		}
		middleware.TransitionsTotal.WithLabelValues(string(tr), "error").Inc()
		return nil, err
	}

	middleware.TransitionsTotal.WithLabelValues(string(tr), "ok").Inc()
	s.cache.Delete(id)

	s.logger.Info("Переход жизненного цикла выполнен",
		slog.String("id", id),
		slog.String("transition", string(tr)),
		slog.String("status", string(next.Status)),
		slog.String("action", string(next.Action)),
	)

	return s.load(ctx, id)
}

// conflictOrGone различает причины неудавшегося условного UPDATE:
// запись исчезла — ErrNotFound, изменилось состояние — ErrConflict.
func (s *RequestService) conflictOrGone(ctx context.Context, id string) error {
	if _, err := s.requests.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return ErrConflict
}
