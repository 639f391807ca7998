// Treeflow Scheduler — запускает планы по расписаниям.
//
// Расписания читаются из SCHEDULES_FILE; due runs публикуются
// в RabbitMQ для treeflow-worker. При заданном DB_URL тик выполняет
// только держатель advisory lock.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/scheduler"
	"github.com/shaiso/Treeflow/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting treeflow-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	schedules, err := scheduler.LoadSchedules(scheduler.SchedulesFile())
	if err != nil {
		logger.Error("failed to load schedules", "error", err)
		os.Exit(1)
	}

	cfg := scheduler.Config{
		Schedules: schedules,
		Logger:    logger,
	}

	// DB нужна только для выбора лидера
	if repo.Configured() {
		pool, err := repo.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("db connected")
		cfg.Leader = repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
	}

	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	cfg.Requester = mq.NewPublisher(mqConn, logger)

	sched, err := scheduler.New(cfg)
	if err != nil {
		logger.Error("invalid schedules", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sched.Run(ctx)
	logger.Info("treeflow-scheduler stopped")
}
