package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/mq"
)

const defaultInterval = time.Second

// RunRequester отправляет запросы на run.
// Реализация: mq.Publisher.
type RunRequester interface {
	PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
}

// Leader — блокировка лидера. Тик выполняет только держатель.
// Реализация: repo.AdvisoryLock.
type Leader interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Scheduler — планировщик, запускающий планы по расписаниям.
//
// Расписания держатся в памяти: NextDueAt вычисляется при старте
// и после каждого запуска.
type Scheduler struct {
	mu        sync.Mutex
	schedules []domain.Schedule

	requester RunRequester
	leader    Leader
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []domain.Schedule
	Requester RunRequester
	Leader    Leader // опционально; без него экземпляр всегда лидер
	Logger    *slog.Logger
	Interval  time.Duration // период тика (default: 1s)
	Now       func() time.Time
}

// New создаёт Scheduler и вычисляет первое время запуска каждого расписания.
func New(cfg Config) (*Scheduler, error) {
	s := &Scheduler{
		requester: cfg.Requester,
		leader:    cfg.Leader,
		logger:    cfg.Logger,
		interval:  cfg.Interval,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}

	now := s.now()
	for _, sched := range cfg.Schedules {
		if err := ValidateSchedule(&sched); err != nil {
			return nil, err
		}
		next, err := CalculateNextDue(&sched, now)
		if err != nil {
			return nil, err
		}
		sched.NextDueAt = &next
		s.schedules = append(s.schedules, sched)
	}
	return s, nil
}

// Schedules возвращает копию расписаний с текущими NextDueAt.
func (s *Scheduler) Schedules() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Schedule(nil), s.schedules...)
}

// Run выполняет тики до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	var leading bool
	defer func() {
		if leading && s.leader != nil {
			if err := s.leader.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release leader lock", "error", err)
			}
		}
	}()

	s.logger.Info("scheduler started", "schedules", len(s.schedules), "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-tk.C:
			// пытаемся стать лидером (или подтвердить лидерство)
			if s.leader != nil {
				ok, err := s.leader.TryLock(ctx)
				if err != nil {
					s.logger.Warn("leader lock failed", "error", err)
					continue
				}
				if ok != leading {
					s.logger.Info("leadership changed", "leader", ok)
				}
				leading = ok
				if !leading {
					continue
				}
			}

			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick запускает все расписания, время которых подошло.
//
// Для каждого due расписания:
//  1. Публикует RunRequested с ключом идемпотентности "{name}_{due_at}"
//  2. Вычисляет следующее время запуска
//
// При ошибке публикации NextDueAt не сдвигается: следующий тик
// повторит запрос с тем же ключом. Ошибки одного расписания
// не блокируют остальные; возвращается последняя.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var fired int
	var lastErr error

	for i := range s.schedules {
		sched := &s.schedules[i]
		if !sched.IsDue(now) {
			continue
		}

		runID, err := s.fire(ctx, sched)
		if err != nil {
			s.logger.Error("failed to fire schedule",
				"schedule", sched.Name,
				"plan", sched.Plan,
				"error", err,
			)
			lastErr = err
			continue
		}

		next, err := CalculateNextDue(sched, now)
		if err != nil {
			// Расписание проверено в New, сюда не попадаем
			lastErr = err
			continue
		}
		sched.RecordRun(runID, next)
		fired++
	}

	if fired > 0 {
		s.logger.Info("scheduler tick completed", "fired", fired)
	}
	return fired, lastErr
}

func (s *Scheduler) fire(ctx context.Context, sched *domain.Schedule) (uuid.UUID, error) {
	payload := mq.RunRequestedPayload{
		RunID:          uuid.New(),
		Plan:           sched.Plan,
		Trigger:        domain.TriggerSchedule,
		Inputs:         sched.Inputs,
		IdempotencyKey: sched.IdempotencyKey(),
	}

	if s.requester == nil {
		return uuid.Nil, fmt.Errorf("schedule %s: no run requester", sched.Name)
	}
	if err := s.requester.PublishRunRequested(ctx, payload); err != nil {
		return uuid.Nil, fmt.Errorf("publish run.requested: %w", err)
	}

	s.logger.Info("requested run from schedule",
		"run_id", payload.RunID,
		"schedule", sched.Name,
		"plan", sched.Plan,
		"idempotency_key", payload.IdempotencyKey,
	)
	return payload.RunID, nil
}
