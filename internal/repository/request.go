package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
)

// requestColumns — общий список столбцов print_requests для SELECT.
const requestColumns = `id, requester, requester_email, target,
		total_pages, print_type, print_side, page_size, no_of_copies, comments,
		file_ref, file_name, file_size, content_type, checksum,
		status, action, request_time, update_time`

// PrintRequestRepository — интерфейс доступа к таблице print_requests.
//
// Все мутации состояния — условные UPDATE: ожидаемое текущее состояние
// входит в WHERE, ноль затронутых строк означает гонку или отсутствие
// записи. Вызывающий различает эти случаи повторным чтением.
type PrintRequestRepository interface {
	// Create вставляет новую заявку.
	Create(ctx context.Context, req *model.PrintRequest) error
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.PrintRequest, error)
	// ListByRequester возвращает заявки клиента, новые первыми.
	ListByRequester(ctx context.Context, requester string, limit, offset int) ([]*model.PrintRequest, error)
	// ListByTarget возвращает заявки, адресованные магазину, новые первыми.
	// onlyPending оставляет только заявки без решения (action = Pending).
	ListByTarget(ctx context.Context, target string, onlyPending bool, limit, offset int) ([]*model.PrintRequest, error)
	// UpdateSpec обновляет спецификацию при условии status=Pending и action=Pending.
	UpdateSpec(ctx context.Context, id string, spec model.RequestSpec) error
	// UpdateAction переводит action из from в to.
	UpdateAction(ctx context.Context, id string, from, to model.Action) error
	// UpdateStatus переводит status из from в to при условии action = requiredAction.
	UpdateStatus(ctx context.Context, id string, from, to model.Status, requiredAction model.Action) error
	// Delete удаляет заявку при условии action = Pending и в той же
	// транзакции ставит её документ в очередь document_cleanup.
	Delete(ctx context.Context, id string) error
	// ListCleanups возвращает file_ref документов, ожидающих вычистки.
	ListCleanups(ctx context.Context, limit int) ([]string, error)
	// AckCleanup снимает документ с очереди после удаления файла.
	AckCleanup(ctx context.Context, fileRef string) error
}

// printRequestRepo — реализация PrintRequestRepository.
type printRequestRepo struct {
	db DBTX
	tx *TxRunner
}

// NewPrintRequestRepository создаёт репозиторий заявок на печать.
// TxRunner нужен для Delete: строка заявки и постановка документа
// на вычистку фиксируются одной транзакцией.
func NewPrintRequestRepository(db DBTX, tx *TxRunner) PrintRequestRepository {
	return &printRequestRepo{db: db, tx: tx}
}

func (r *printRequestRepo) Create(ctx context.Context, req *model.PrintRequest) error {
	query := `
		INSERT INTO print_requests (id, requester, requester_email, target,
			total_pages, print_type, print_side, page_size, no_of_copies, comments,
			file_ref, file_name, file_size, content_type, checksum,
			status, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING request_time, update_time`

	err := r.db.QueryRow(ctx, query,
		req.ID, req.Requester, req.RequesterEmail, req.Target,
		req.Spec.TotalPages, req.Spec.PrintType, req.Spec.PrintSide,
		req.Spec.PageSize, req.Spec.Copies, req.Spec.Comments,
		req.FileRef, req.FileName, req.FileSize, req.ContentType, req.Checksum,
		req.Status, req.Action,
	).Scan(&req.RequestTime, &req.UpdateTime)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заявка с таким id уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *printRequestRepo) GetByID(ctx context.Context, id string) (*model.PrintRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM print_requests WHERE id = $1`

	req := &model.PrintRequest{}
	err := scanRequest(r.db.QueryRow(ctx, query, id), req)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return req, nil
}

func (r *printRequestRepo) ListByRequester(ctx context.Context, requester string, limit, offset int) ([]*model.PrintRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM print_requests
		WHERE requester = $1
		ORDER BY request_time DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, requester, limit, offset)
}

func (r *printRequestRepo) ListByTarget(ctx context.Context, target string, onlyPending bool, limit, offset int) ([]*model.PrintRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM print_requests
		WHERE target = $1`
	if onlyPending {
		query += ` AND action = 'Pending'`
	}
	query += `
		ORDER BY request_time DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, target, limit, offset)
}

func (r *printRequestRepo) list(ctx context.Context, query string, args ...any) ([]*model.PrintRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.PrintRequest
	for rows.Next() {
		req := &model.PrintRequest{}
		if err := scanRequest(rows, req); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// UpdateSpec — условный UPDATE: спецификация меняется только до решения
// магазина. Ноль строк — ErrConflict (существование проверяет сервис).
func (r *printRequestRepo) UpdateSpec(ctx context.Context, id string, spec model.RequestSpec) error {
	query := `
		UPDATE print_requests
		SET total_pages = $2, print_type = $3, print_side = $4,
			page_size = $5, no_of_copies = $6, comments = $7,
			update_time = now()
		WHERE id = $1 AND status = 'Pending' AND action = 'Pending'`

	tag, err := r.db.Exec(ctx, query,
		id, spec.TotalPages, spec.PrintType, spec.PrintSide,
		spec.PageSize, spec.Copies, spec.Comments,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления спецификации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *printRequestRepo) UpdateAction(ctx context.Context, id string, from, to model.Action) error {
	query := `
		UPDATE print_requests
		SET action = $3, update_time = now()
		WHERE id = $1 AND action = $2`

	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("ошибка обновления action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *printRequestRepo) UpdateStatus(ctx context.Context, id string, from, to model.Status, requiredAction model.Action) error {
	query := `
		UPDATE print_requests
		SET status = $3, update_time = now()
		WHERE id = $1 AND status = $2 AND action = $4`

	tag, err := r.db.Exec(ctx, query, id, from, to, requiredAction)
	if err != nil {
		return fmt.Errorf("ошибка обновления status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Delete — транзакция: удаление строки заявки и постановка её документа
// в document_cleanup атомарны. Файл с диска убирает сервис после коммита
// и подтверждает AckCleanup; незавершённые вычистки добираются при старте.
func (r *printRequestRepo) Delete(ctx context.Context, id string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		var fileRef string
		err := tx.QueryRow(ctx,
			`DELETE FROM print_requests
			WHERE id = $1 AND action = 'Pending'
			RETURNING file_ref`, id,
		).Scan(&fileRef)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrConflict
			}
			return fmt.Errorf("ошибка удаления заявки: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO document_cleanup (file_ref) VALUES ($1)
			ON CONFLICT (file_ref) DO NOTHING`, fileRef,
		)
		if err != nil {
			return fmt.Errorf("ошибка постановки документа на вычистку: %w", err)
		}
		return nil
	})
}

func (r *printRequestRepo) ListCleanups(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT file_ref FROM document_cleanup ORDER BY enqueued_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди вычистки: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("ошибка сканирования очереди вычистки: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *printRequestRepo) AckCleanup(ctx context.Context, fileRef string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_cleanup WHERE file_ref = $1`, fileRef)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения вычистки: %w", err)
	}
	return nil
}

// scanRequest читает строку print_requests в model.PrintRequest.
// Порядок полей должен совпадать с requestColumns.
func scanRequest(row pgx.Row, req *model.PrintRequest) error {
	return row.Scan(
		&req.ID, &req.Requester, &req.RequesterEmail, &req.Target,
		&req.Spec.TotalPages, &req.Spec.PrintType, &req.Spec.PrintSide,
		&req.Spec.PageSize, &req.Spec.Copies, &req.Spec.Comments,
		&req.FileRef, &req.FileName, &req.FileSize, &req.ContentType, &req.Checksum,
		&req.Status, &req.Action, &req.RequestTime, &req.UpdateTime,
	)
}
