package work

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/node"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/telemetry"
)

// Ошибки Work.
var (
	// ErrNoPlan — Process/Run вызван до SetPlan.
	ErrNoPlan = errors.New("work has no plan")

	// ErrRunFinished — Execute получил уже завершённый run.
	ErrRunFinished = errors.New("run already finished")
)

// RunStore сохраняет записи run.
// Реализации: repo.RunRepo (Postgres) и repo.MemoryRunStore.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// Work — фасад над Planner: хранит план, скомпилированную модель и контекст run.
//
// Дерево узлов одноразовое: Process выполняет модель, скомпилированную
// последним SetPlan. Execute и Run компилируют план заново для каждого run.
type Work struct {
	mu sync.Mutex

	planner *planner.Planner
	name    string
	plan    *planner.Descriptor
	model   node.Node
	data    *planner.Context
	inputs  map[string]any

	logger    *slog.Logger
	observers node.Observers
	metrics   *telemetry.Metrics
	store     RunStore
	err       error
}

// Option — функциональная опция Work.
type Option func(*Work)

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Work) {
		w.logger = logger
	}
}

// WithObserver подписывает наблюдателя на каждое скомпилированное дерево и контекст run.
func WithObserver(o node.Observer) Option {
	return func(w *Work) {
		w.observers = append(w.observers, o)
	}
}

// WithMetrics подключает Prometheus метрики (они же наблюдатель узлов).
func WithMetrics(m *telemetry.Metrics) Option {
	return func(w *Work) {
		w.metrics = m
		w.observers = append(w.observers, m)
	}
}

// WithServices регистрирует сервисы по именам.
func WithServices(services map[string]any) Option {
	return func(w *Work) {
		for name, svc := range services {
			if err := w.planner.AddService(name, svc); err != nil && w.err == nil {
				w.err = err
			}
		}
	}
}

// WithContext задаёт начальные данные контекста run.
func WithContext(data map[string]any) Option {
	return func(w *Work) {
		w.inputs = maps.Clone(data)
	}
}

// WithStore задаёт хранилище записей run.
func WithStore(store RunStore) Option {
	return func(w *Work) {
		w.store = store
	}
}

// New создаёт Work.
// Ошибка возвращается, если одна из опций не смогла зарегистрировать сервис.
func New(opts ...Option) (*Work, error) {
	w := &Work{
		planner: planner.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.err != nil {
		return nil, fmt.Errorf("register services: %w", w.err)
	}
	return w, nil
}

// AddService добавляет сервис; name "" — сервис по умолчанию.
func (w *Work) AddService(name string, svc any) error {
	return w.planner.AddService(name, svc)
}

// Planner возвращает планировщик.
func (w *Work) Planner() *planner.Planner {
	return w.planner
}

// SetPlan сохраняет план и компилирует его со свежим контекстом.
// name используется в записях run и логах.
func (w *Work) SetPlan(name string, d *planner.Descriptor) error {
	model, data, err := w.compile(d, w.inputs)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.name = name
	w.plan = d
	w.model = model
	w.data = data
	return nil
}

// Model возвращает скомпилированную модель или nil.
func (w *Work) Model() node.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model
}

// Context возвращает контекст текущей модели или nil.
func (w *Work) Context() *planner.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Process выполняет текущую модель.
func (w *Work) Process(ctx context.Context, args ...any) (any, error) {
	model := w.Model()
	if model == nil {
		return nil, ErrNoPlan
	}
	return model.Process(ctx, args...)
}

// Run создаёт запись run с начальным контекстом из WithContext и выполняет её.
func (w *Work) Run(ctx context.Context, args ...any) (*domain.Run, error) {
	w.mu.Lock()
	name := w.name
	w.mu.Unlock()

	run := domain.NewRun(name, domain.TriggerManual, maps.Clone(w.inputs))
	return run, w.Execute(ctx, run, args...)
}

// Execute компилирует план заново с копией run.Inputs и выполняет его.
// run.Inputs не меняется; записи result видны в run.Context.
//
// Итог записывается в run: статус, результат, снимок контекста, ошибка.
// Ошибка выполнения плана возвращается и после записи в run.
func (w *Work) Execute(ctx context.Context, run *domain.Run, args ...any) error {
	w.mu.Lock()
	plan := w.plan
	w.mu.Unlock()
	if plan == nil {
		return ErrNoPlan
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrRunFinished, run.ID)
	}

	logger := telemetry.WithPlan(telemetry.WithRunID(w.logger, run.ID.String()), run.Plan)
	ctx = telemetry.WithLogger(ctx, logger)

	if w.store != nil {
		if err := w.store.Create(ctx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
	}

	// Дерево и контекст run свои: модель SetPlan остаётся для Process
	model, data, err := w.compile(plan, run.Inputs)
	if err != nil {
		run.MarkFailed(err.Error())
		w.finish(ctx, logger, run)
		return err
	}

	run.MarkRunning()
	w.save(ctx, logger, run)
	logger.Info("run started", "trigger", string(run.Trigger))

	result, err := model.Process(ctx, args...)
	run.Context = data.Snapshot()

	switch {
	case err != nil && ctx.Err() != nil:
		run.MarkCancelled()
		run.Error = err.Error()
	case err != nil:
		run.MarkFailed(err.Error())
	default:
		run.MarkSucceeded(result)
	}

	w.finish(ctx, logger, run)
	return err
}

func (w *Work) compile(d *planner.Descriptor, inputs map[string]any) (node.Node, *planner.Context, error) {
	data := planner.NewContext(inputs)
	if len(w.observers) > 0 {
		data.Observe(w.observers)
	}

	model, err := w.planner.Compile(d, data)
	if err != nil {
		return nil, nil, err
	}
	if len(w.observers) > 0 {
		model.Common().Observe(w.observers)
	}
	return model, data, nil
}

func (w *Work) finish(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	if w.metrics != nil {
		w.metrics.ObserveRun(run.Status)
	}

	if run.Status == domain.RunStatusSucceeded {
		logger.Info("run succeeded", "duration", run.Duration())
	} else {
		logger.Warn("run finished", "status", run.Status.String(), "error", run.Error)
	}

	w.save(context.WithoutCancel(ctx), logger, run)
}

// save обновляет запись run; ошибка хранилища только логируется.
func (w *Work) save(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	if w.store == nil {
		return
	}
	if err := w.store.Update(ctx, run); err != nil {
		logger.Error("failed to update run", "error", err)
	}
}
