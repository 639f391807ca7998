package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trigger — источник запуска run.
type Trigger string

const (
	// TriggerManual — запуск через CLI или API.
	TriggerManual Trigger = "manual"

	// TriggerSchedule — запуск по расписанию.
	TriggerSchedule Trigger = "schedule"

	// TriggerQueue — запуск из сообщения RabbitMQ.
	TriggerQueue Trigger = "queue"
)

// Run — одно выполнение плана.
//
// Run создаётся когда:
// - Пользователь запускает план вручную (через API/CLI)
// - Scheduler запускает план по расписанию
// - Worker получает запрос на запуск из очереди
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Plan — имя выполняемого плана (имя файла без расширения).
	Plan string `json:"plan"`

	// Trigger — источник запуска.
	Trigger Trigger `json:"trigger,omitempty"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Inputs — начальные данные контекста run.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Result — результат корневого узла.
	Result any `json:"result,omitempty"`

	// Context — снимок контекста run после завершения.
	Context map[string]any `json:"context,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности.
	// Для запусков по расписанию: "{schedule}_{due_at}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(plan string, trigger Trigger, inputs map[string]any) *Run {
	return &Run{
		ID:        uuid.New(),
		Plan:      plan,
		Trigger:   trigger,
		Status:    RunStatusPending,
		Inputs:    inputs,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED с результатом.
func (r *Run) MarkSucceeded(result any) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.Result = result
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
