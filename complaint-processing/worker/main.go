package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-complaint-tasks/complaint-processing/activities"
	"go-complaint-tasks/complaint-processing/config"
	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/queue/connect"
	"go-complaint-tasks/complaint-processing/store"
)

func main() {
	cfg, err := config.Load(getEnv("ENV_FILE", ".env"))
	if err != nil {
		log.Fatalln("Unable to load configuration", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalln("Worker failed", err)
	}
}

func run(cfg *config.Config) error {
	logg := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
		TimeFormat: time.DateTime,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, logg)

	m := metrics.New()
	executor := activities.NewExecutor(
		store.New(cfg.API.BaseURL, cfg.API.Timeout),
		activities.RetryPolicy{MaxRetries: cfg.Tasks.MaxRetries, RetryDelay: cfg.Tasks.RetryDelay},
		m,
	)
	registry := activities.RegisterTasks(activities.Deps{
		Ops:         executor,
		Concurrency: cfg.Tasks.Concurrency,
		NotifyDelay: cfg.Notify.Delay,
		Metrics:     m,
	})
	if err := registry.Validate(); err != nil {
		return err
	}

	backend, err := connect.Open(ctx, cfg, registry, false, logg)
	if err != nil {
		return err
	}
	defer backend.Close()

	scheduler, err := scheduleReports(cfg.Report.Schedule, backend.Broker, logg)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	srv := serveMetrics(cfg.Metrics.Addr, m, logg)

	logg.Info("Worker starting",
		"broker", cfg.Tasks.BrokerURL,
		"concurrency", cfg.Tasks.Concurrency,
		"tasks", len(registry.Names()),
	)
	err = backend.Serve(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	logg.Info("Worker stopped")
	return err
}

// serveMetrics exposes /metrics on addr; an empty addr disables it
func serveMetrics(addr string, m *metrics.Metrics, logg logger.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	return srv
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
