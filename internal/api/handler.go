package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/telemetry"
)

// RunStore — хранилище записей run.
// Реализации: repo.RunRepo и repo.MemoryRunStore.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// RunRequester ставит run в очередь worker.
// Реализация: mq.Publisher.
type RunRequester interface {
	PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	catalog       *planner.Catalog
	runs          RunStore
	requester     RunRequester
	services      map[string]any
	metrics       *telemetry.Metrics
	httpMetrics   *HTTPMetrics
	schedulesFile string
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Catalog *planner.Catalog
	Runs    RunStore

	// Requester — очередь для асинхронных runs (опционально).
	Requester RunRequester

	// Services — сервисы для синхронных runs (обычно services.Builtin).
	Services map[string]any

	Metrics     *telemetry.Metrics
	HTTPMetrics *HTTPMetrics

	// SchedulesFile — файл расписаний для GET /schedules (опционально).
	SchedulesFile string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runs := cfg.Runs
	if runs == nil {
		runs = repo.NewMemoryRunStore()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = planner.NewCatalog(planner.PlansDir())
	}

	return &Handler{
		catalog:       catalog,
		runs:          runs,
		requester:     cfg.Requester,
		services:      cfg.Services,
		metrics:       cfg.Metrics,
		httpMetrics:   cfg.HTTPMetrics,
		schedulesFile: cfg.SchedulesFile,
		logger:        logger,
	}
}
