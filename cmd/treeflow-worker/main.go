// Treeflow Worker — выполняет runs из очереди.
//
// Worker:
//   - Получает RunRequested из RabbitMQ
//   - Загружает план из каталога (PLANS_DIR) и выполняет его
//   - Сохраняет запись run и публикует RunCompleted
//
// Workers масштабируются горизонтально; повторные запросы
// отсекаются ключом идемпотентности run.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/services"
	"github.com/shaiso/Treeflow/internal/telemetry"
	"github.com/shaiso/Treeflow/internal/work"
	"github.com/shaiso/Treeflow/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting treeflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилища
	var store work.RunStore = repo.NewMemoryRunStore()
	var cache services.CacheStore
	if repo.Configured() {
		pool, err := repo.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")

		store = repo.NewRunRepo(pool)
		cacheRepo := repo.NewCacheRepo(pool)
		cache = cacheRepo
		go purgeCache(ctx, cacheRepo, logger)
	}

	// RabbitMQ обязателен: это единственный источник runs
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	concurrency := 0
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MAX_CONCURRENCY, using default", "value", v)
		} else {
			concurrency = n
		}
	}

	w := worker.New(worker.Config{
		Catalog:   planner.NewCatalog(planner.PlansDir()),
		Store:     store,
		Publisher: publisher,
		Conn:      mqConn,
		Services: services.Builtin(services.Config{
			Cache:     cache,
			Publisher: publisher,
		}),
		Metrics:     telemetry.NewMetrics(nil),
		Concurrency: concurrency,
		Logger:      logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("treeflow-worker stopped")
}

const cachePurgeInterval = 10 * time.Minute

// purgeCache периодически удаляет просроченные записи сервиса cache.
func purgeCache(ctx context.Context, cache *repo.CacheRepo, logger *slog.Logger) {
	tk := time.NewTicker(cachePurgeInterval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			n, err := cache.Purge(ctx)
			if err != nil {
				logger.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("cache purged", "entries", n)
			}
		}
	}
}
