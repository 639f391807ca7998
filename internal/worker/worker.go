package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/telemetry"
	"github.com/shaiso/Treeflow/internal/work"
)

// Default configuration values.
const (
	defaultConcurrency = 2
	defaultRunTimeout  = 30 * time.Minute
)

// CompletionPublisher публикует итоги runs.
// Реализация: mq.Publisher.
type CompletionPublisher interface {
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// Worker выполняет планы по запросам из очереди runs.requested.
//
// Worker — stateless компонент системы, который:
//   - Получает запросы на run из RabbitMQ
//   - Загружает план из каталога PLANS_DIR
//   - Компилирует и выполняет дерево узлов со встроенными сервисами
//   - Сохраняет запись run и публикует итог в runs.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	catalog   *planner.Catalog
	store     work.RunStore
	publisher CompletionPublisher
	conn      *mq.Connection
	services  map[string]any
	metrics   *telemetry.Metrics

	concurrency int
	runTimeout  time.Duration

	consumers []*mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Catalog — каталог планов.
	Catalog *planner.Catalog

	// Store — хранилище записей run (опционально).
	Store work.RunStore

	// MQ
	Publisher CompletionPublisher
	Conn      *mq.Connection

	// Services — сервисы для invoke (обычно services.Builtin).
	Services map[string]any

	// Metrics — Prometheus метрики узлов и runs (опционально).
	Metrics *telemetry.Metrics

	// Concurrency — сколько runs выполняется одновременно (default: 2).
	Concurrency int

	// RunTimeout — ограничение времени одного run (default: 30m).
	RunTimeout time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = planner.NewCatalog(planner.PlansDir())
	}

	return &Worker{
		catalog:     catalog,
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		conn:        cfg.Conn,
		services:    cfg.Services,
		metrics:     cfg.Metrics,
		concurrency: concurrency,
		runTimeout:  runTimeout,
		logger:      logger,
	}
}

// Start запускает Concurrency consumers очереди runs.requested.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"plans_dir", w.catalog.Dir(),
		"concurrency", w.concurrency,
		"run_timeout", w.runTimeout,
	)

	for i := 0; i < w.concurrency; i++ {
		consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.QueueRunsRequested,
			Handler:  w.handleRunRequested,
			Prefetch: w.concurrency,
		})
		w.consumers = append(w.consumers, consumer)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих runs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	for _, c := range w.consumers {
		c.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
