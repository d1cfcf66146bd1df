package main

import (
	"context"
	"strings"
	"time"

	"github.com/fatih/color"

	"go-complaint-tasks/complaint-processing/activities"
	"go-complaint-tasks/complaint-processing/config"
	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/queue/connect"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/tools"
)

// app holds what a single CLI invocation needs
type app struct {
	cfg    *config.Config
	log    logger.Logger
	broker queue.Broker
	tools  *tools.Tools
}

func newApp(ctx context.Context, envFile string, wait time.Duration, verbose bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if wait > 0 {
		cfg.Caller.WaitTimeout = wait
	}
	level := logger.WarnLevel
	if verbose {
		level = logger.DebugLevel
	}
	logg := logger.NewLogger(&logger.Config{
		Level:      level,
		Output:     color.Error,
		JSON:       cfg.Log.JSON,
		TimeFormat: time.TimeOnly,
	})

	direct := store.New(cfg.API.BaseURL, cfg.API.Timeout)

	// The memory broker has no separate worker, so tasks run in this process
	var runner queue.Runner
	if isMemory(cfg.Tasks.BrokerURL) {
		executor := activities.NewExecutor(direct, activities.RetryPolicy{
			MaxRetries: cfg.Tasks.MaxRetries,
			RetryDelay: cfg.Tasks.RetryDelay,
		}, nil)
		runner = activities.RegisterTasks(activities.Deps{
			Ops:         executor,
			Concurrency: cfg.Tasks.Concurrency,
			NotifyDelay: cfg.Notify.Delay,
		})
	}

	var broker queue.Broker
	backend, err := connect.Open(ctx, cfg, runner, true, logg)
	if err != nil {
		logg.Warn("Task queue unavailable, using the backend directly", "broker", cfg.Tasks.BrokerURL, "error", err)
		broker = queue.Unavailable(err)
	} else {
		broker = backend.Broker
	}

	return &app{
		cfg:    cfg,
		log:    logg,
		broker: broker,
		tools:  tools.New(broker, direct, cfg.Caller.WaitTimeout, nil, logg),
	}, nil
}

func (a *app) Close() error {
	return a.broker.Close()
}

func isMemory(brokerURL string) bool {
	return strings.HasPrefix(brokerURL, connect.SchemeMemory+"://")
}
