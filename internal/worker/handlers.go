package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/work"
)

// handleRunRequested обрабатывает сообщение из очереди runs.requested.
func (w *Worker) handleRunRequested(ctx context.Context, msg *mq.Message) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	// Парсим payload
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](msg)
	if err != nil {
		w.logger.Error("failed to parse run.requested payload", "error", err)
		return mq.Permanent(err)
	}

	w.logger.Debug("received run.requested event",
		"run_id", payload.RunID,
		"plan", payload.Plan,
	)

	run, err := w.ProcessRun(ctx, payload)
	if err != nil {
		// Повторная доставка уже выполненного run — не ошибка (ack)
		if errors.Is(err, ErrDuplicateRun) {
			w.logger.Info("run already processed", "run_id", payload.RunID, "plan", payload.Plan)
			return nil
		}
		w.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}

	w.publishCompleted(ctx, run)
	return nil
}

// ProcessRun выполняет план по запросу и возвращает запись run.
//
// Ошибка выполнения самого плана не возвращается: она записана в run.
// Возвращаются ошибки запроса и окружения:
//   - ErrInvalidRequest, ошибки загрузки и компиляции плана (обёрнуты в mq.ErrPermanent)
//   - ErrDuplicateRun, если run уже есть в хранилище
func (w *Worker) ProcessRun(ctx context.Context, req mq.RunRequestedPayload) (*domain.Run, error) {
	if req.RunID == uuid.Nil || req.Plan == "" {
		return nil, mq.Permanent(fmt.Errorf("%w: run_id and plan are required", ErrInvalidRequest))
	}

	// 1. Загружаем план
	plan, err := w.catalog.Load(req.Plan)
	if err != nil {
		return nil, mq.Permanent(err)
	}

	// 2. Собираем Work со встроенными сервисами
	opts := []work.Option{
		work.WithLogger(w.logger),
		work.WithServices(w.services),
	}
	if w.store != nil {
		opts = append(opts, work.WithStore(w.store))
	}
	if w.metrics != nil {
		opts = append(opts, work.WithMetrics(w.metrics))
	}

	wk, err := work.New(opts...)
	if err != nil {
		return nil, mq.Permanent(err)
	}
	if err := wk.SetPlan(req.Plan, plan); err != nil {
		return nil, mq.Permanent(err)
	}

	// 3. Запись run из запроса
	trigger := req.Trigger
	if trigger == "" {
		trigger = domain.TriggerQueue
	}
	run := domain.NewRun(req.Plan, trigger, req.Inputs)
	run.ID = req.RunID
	run.IdempotencyKey = req.IdempotencyKey

	// 4. Выполняем с таймаутом
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	err = wk.Execute(runCtx, run)
	switch {
	case errors.Is(err, repo.ErrAlreadyExists):
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		w.logger.Warn("run timed out", "run_id", run.ID, "timeout", w.runTimeout)
		run.Error = fmt.Errorf("%w after %s: %s", ErrExecutionTimeout, w.runTimeout, run.Error).Error()
		if w.store != nil {
			if err := w.store.Update(context.WithoutCancel(ctx), run); err != nil {
				w.logger.Error("failed to update run", "run_id", run.ID, "error", err)
			}
		}
	}

	return run, nil
}

// publishCompleted публикует итог run; ошибка публикации только логируется.
func (w *Worker) publishCompleted(ctx context.Context, run *domain.Run) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishRunCompleted(context.WithoutCancel(ctx), mq.CompletedPayload(run)); err != nil {
		w.logger.Error("failed to publish run.completed", "run_id", run.ID, "error", err)
	}
}
