package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Treeflow/internal/domain"
)

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Plan   string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// limit возвращает Limit, ограниченный [1, 500]; 0 — 50.
func (f RunFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 50
	case f.Limit > 500:
		return 500
	default:
		return f.Limit
	}
}

// RunRepo — история runs в Postgres.
//
// Хранит записи выполнений для API и CLI. Состояние дерева узлов
// не сохраняется: прерванный run не возобновляется.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, plan, trigger, status, inputs, result, context,
	started_at, finished_at, error, idempotency_key, created_at`

// Create создаёт запись run.
// Повтор ключа идемпотентности для того же плана — ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputs, err := marshalJSON(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO runs (id, plan, trigger, status, inputs, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Plan,
		string(run.Trigger),
		string(run.Status),
		inputs,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("run %s: %w", run.IdempotencyKey, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает runs, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR plan = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Plan),
		nullString(string(filter.Status)),
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update сохраняет статус, результат и время выполнения run.
// Смена статуса завершённого run — ErrInvalidState.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	result, err := marshalJSON(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	snapshot, err := marshalJSON(run.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, result = $3, context = $4, started_at = $5, finished_at = $6, error = $7
		WHERE id = $1
		  AND (status NOT IN ('SUCCEEDED', 'FAILED', 'CANCELLED') OR status = $2)
	`
	tag, err := r.pool.Exec(ctx, query,
		run.ID,
		string(run.Status),
		result,
		snapshot,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Различаем отсутствующий и завершённый run
		if _, err := r.GetByID(ctx, run.ID); err != nil {
			return err
		}
		return fmt.Errorf("run %s: %w", run.ID, ErrInvalidState)
	}
	return nil
}

// scanRun сканирует строку (pgx.Row или pgx.Rows) в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run                  domain.Run
		trigger, status      string
		inputs, result, snap []byte
		runError, key        *string
	)

	err := row.Scan(
		&run.ID,
		&run.Plan,
		&trigger,
		&status,
		&inputs,
		&result,
		&snap,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&key,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Trigger = domain.Trigger(trigger)
	run.Status = domain.ParseRunStatus(status)

	if err := unmarshalJSON(inputs, &run.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := unmarshalJSON(result, &run.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if err := unmarshalJSON(snap, &run.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}

	if runError != nil {
		run.Error = *runError
	}
	if key != nil {
		run.IdempotencyKey = *key
	}

	return &run, nil
}

// marshalJSON возвращает nil для nil-значения (NULL в БД).
func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
