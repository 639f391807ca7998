package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/planner"
)

// Plan DTOs

// PlanResponse — ответ с описанием файла плана.
type PlanResponse struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanFromDomain конвертирует domain.Plan в PlanResponse.
func PlanFromDomain(p domain.Plan) PlanResponse {
	return PlanResponse{
		Name:      p.Name,
		Type:      p.Type,
		Path:      p.Path,
		UpdatedAt: p.UpdatedAt,
	}
}

// PlanDetailResponse — план вместе с деревом дескрипторов.
type PlanDetailResponse struct {
	Name string              `json:"name"`
	Plan *planner.Descriptor `json:"plan"`
}

// ValidateResponse — итог проверки плана.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// Run DTOs

// CreateRunRequest — запрос на запуск плана.
type CreateRunRequest struct {
	Inputs         map[string]any `json:"inputs,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`

	// Async ставит run в очередь worker вместо выполнения в запросе.
	Async bool `json:"async,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID      `json:"id"`
	Plan           string         `json:"plan"`
	Trigger        string         `json:"trigger,omitempty"`
	Status         string         `json:"status"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Result         any            `json:"result,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	DurationMs     int64          `json:"duration_ms,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Plan:           r.Plan,
		Trigger:        string(r.Trigger),
		Status:         string(r.Status),
		Inputs:         r.Inputs,
		Result:         r.Result,
		Context:        r.Context,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.Duration().Milliseconds(),
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// RunAcceptedResponse — ответ на асинхронный запуск.
type RunAcceptedResponse struct {
	RunID  uuid.UUID `json:"run_id"`
	Plan   string    `json:"plan"`
	Status string    `json:"status"`
}

// Schedule DTOs

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	Name        string         `json:"name"`
	Plan        string         `json:"plan"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Name:        s.Name,
		Plan:        s.Plan,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.IsEnabled(),
		Inputs:      s.Inputs,
		NextDueAt:   s.NextDueAt,
	}
}
