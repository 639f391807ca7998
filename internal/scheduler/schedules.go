package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Treeflow/internal/domain"
)

// Ошибки расписаний.
var (
	// ErrInvalidSchedule — расписание не проходит проверку.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrDuplicateSchedule — два расписания с одним именем.
	ErrDuplicateSchedule = errors.New("duplicate schedule name")
)

// DefaultSchedulesFile — файл расписаний, если SCHEDULES_FILE не задан.
const DefaultSchedulesFile = "schedules.yaml"

// SchedulesFile возвращает путь к файлу расписаний из SCHEDULES_FILE.
func SchedulesFile() string {
	if v := os.Getenv("SCHEDULES_FILE"); v != "" {
		return v
	}
	return DefaultSchedulesFile
}

// LoadSchedules читает и проверяет файл расписаний.
func LoadSchedules(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	return ParseSchedules(data)
}

// ParseSchedules разбирает YAML-список расписаний.
// Пустой документ — пустой список.
func ParseSchedules(data []byte) ([]domain.Schedule, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var schedules []domain.Schedule
	if err := yaml.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}

	seen := make(map[string]bool, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		if err := ValidateSchedule(s); err != nil {
			return nil, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, s.Name)
		}
		seen[s.Name] = true
	}
	return schedules, nil
}

// ValidateSchedule проверяет одно расписание.
func ValidateSchedule(s *domain.Schedule) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	case s.Plan == "":
		return fmt.Errorf("%w: %s: plan is required", ErrInvalidSchedule, s.Name)
	case s.CronExpr == "" && s.IntervalSec <= 0:
		return fmt.Errorf("%w: %s: cron or a positive interval is required", ErrInvalidSchedule, s.Name)
	}

	if s.IsCron() {
		if err := ValidateCronExpr(s.CronExpr); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, s.Name, err)
		}
	}
	if _, err := location(s.Timezone); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return nil
}
