package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Treeflow/internal/domain"
)

// cronParser — парсер cron-выражений (5 полей и дескрипторы вида @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalculateNextDue вычисляет следующее время запуска после from.
//
// Cron-выражение вычисляется в часовом поясе расписания,
// интервал просто прибавляется к from. Результат в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := location(sched.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	switch {
	case sched.IsCron():
		s, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return s.Next(from.In(loc)).UTC(), nil

	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: schedule %q has neither cron nor interval", ErrInvalidSchedule, sched.Name)
}

// NextDueTimes возвращает n следующих времён запуска после from.
func NextDueTimes(sched *domain.Schedule, from time.Time, n int) ([]time.Time, error) {
	times := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		next, err := CalculateNextDue(sched, from)
		if err != nil {
			return nil, err
		}
		times = append(times, next)
		from = next
	}
	return times, nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// location загружает часовой пояс; пустая строка — UTC.
func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, tz)
	}
	return loc, nil
}
