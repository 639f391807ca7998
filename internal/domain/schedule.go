package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска плана.
//
// Расписания читаются из YAML-файла (SCHEDULES_FILE):
//
//	# schedules.yaml
//	- name: nightly-sync
//	  plan: sync-users
//	  cron: "0 3 * * *"
//	  timezone: Europe/Moscow
//	  inputs:
//	    batch: 100
//
// Scheduler проверяет NextDueAt и запускает план, когда время подошло.
type Schedule struct {
	// Name — уникальное имя расписания.
	Name string `json:"name" yaml:"name"`

	// Plan — имя плана для запуска.
	Plan string `json:"plan" yaml:"plan"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/5 * * * *"   — каждые 5 минут
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty" yaml:"cron,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию: "UTC".
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// Enabled — флаг активности. Отсутствие в файле означает true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Inputs — начальные данные контекста для каждого run.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty" yaml:"-"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`

	// LastRunID — ID последнего созданного run.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty" yaml:"-"`
}

// IsEnabled возвращает true, если расписание активно.
func (s *Schedule) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.IsEnabled() {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return now.After(*s.NextDueAt) || now.Equal(*s.NextDueAt)
}

// IdempotencyKey возвращает ключ запуска для текущего NextDueAt.
func (s *Schedule) IdempotencyKey() string {
	if s.NextDueAt == nil {
		return s.Name
	}
	return s.Name + "_" + s.NextDueAt.UTC().Format(time.RFC3339)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(runID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
}
