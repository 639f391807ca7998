// Treeflow API — HTTP API каталога планов и runs.
//
// Синхронные runs выполняются в процессе API, асинхронные
// публикуются в RabbitMQ для treeflow-worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Treeflow/internal/api"
	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/scheduler"
	"github.com/shaiso/Treeflow/internal/services"
	"github.com/shaiso/Treeflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting treeflow-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилища: Postgres при заданном DB_URL, иначе память
	var runs api.RunStore = repo.NewMemoryRunStore()
	var cache services.CacheStore
	var pool *pgxpool.Pool
	if repo.Configured() {
		var err error
		pool, err = repo.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("connected to database")

		runs = repo.NewRunRepo(pool)
		cache = repo.NewCacheRepo(pool)
	}

	// RabbitMQ: без него доступны только синхронные runs
	var requester api.RunRequester
	var events services.EventPublisher
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, async runs disabled", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher := mq.NewPublisher(mqConn, logger)
		requester = publisher
		events = publisher
	}

	reg := prometheus.DefaultRegisterer
	handler := api.NewHandler(api.Config{
		Catalog:   planner.NewCatalog(planner.PlansDir()),
		Runs:      runs,
		Requester: requester,
		Services: services.Builtin(services.Config{
			Cache:     cache,
			Publisher: events,
		}),
		Metrics:       telemetry.NewMetrics(reg),
		HTTPMetrics:   api.NewHTTPMetrics(reg),
		SchedulesFile: schedulesFile(logger),
		Logger:        logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if pool != nil {
			if err := pool.Ping(context.Background()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// schedulesFile возвращает SCHEDULES_FILE, если файл существует.
func schedulesFile(logger *slog.Logger) string {
	path := scheduler.SchedulesFile()
	if _, err := os.Stat(path); err != nil {
		logger.Info("no schedules file, /schedules is empty", "path", path)
		return ""
	}
	return path
}
