// Package connect opens the broker named by tasks.broker_url and, given a
// runner, the matching worker.
package connect

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"go-complaint-tasks/complaint-processing/config"
	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/queue/local"
	"go-complaint-tasks/complaint-processing/queue/redisq"
	"go-complaint-tasks/complaint-processing/queue/temporalq"
)

const (
	SchemeMemory   = "memory"
	SchemeRedis    = "redis"
	SchemeRedisTLS = "rediss"
	SchemeTemporal = "temporal"
)

// Backend is an open broker plus, in worker mode, the loop consuming it
type Backend struct {
	Broker queue.Broker
	serve  func(ctx context.Context) error
}

// Serve consumes tasks until ctx is done. Without a runner it just waits.
func (b *Backend) Serve(ctx context.Context) error {
	if b.serve == nil {
		<-ctx.Done()
		return nil
	}
	return b.serve(ctx)
}

func (b *Backend) Close() error {
	return b.Broker.Close()
}

// Open connects to the configured broker. A nil runner opens a submit-only
// backend, which the memory broker does not support.
//
// With lazy set, Temporal connections are deferred to the first call so an
// unreachable server surfaces per submission instead of at startup.
func Open(ctx context.Context, cfg *config.Config, runner queue.Runner, lazy bool, log logger.Logger) (*Backend, error) {
	u, err := url.Parse(cfg.Tasks.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case SchemeMemory:
		return openMemory(cfg, runner, log)
	case SchemeRedis, SchemeRedisTLS:
		return openRedis(ctx, cfg, runner, log)
	case SchemeTemporal:
		return openTemporal(ctx, cfg, u.Host, runner, lazy, log)
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func openMemory(cfg *config.Config, runner queue.Runner, log logger.Logger) (*Backend, error) {
	if runner == nil {
		return nil, errors.New("memory broker needs an in-process runner")
	}
	b := local.New(runner, local.Options{
		Concurrency: cfg.Tasks.Concurrency,
		TimeLimit:   cfg.Tasks.TimeLimit,
	}, log)
	return &Backend{Broker: b}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, runner queue.Runner, log logger.Logger) (*Backend, error) {
	queueClient, err := redisq.Dial(ctx, cfg.Tasks.BrokerURL)
	if err != nil {
		return nil, err
	}
	resultClient := queueClient
	if cfg.Tasks.ResultBackendURL() != cfg.Tasks.BrokerURL {
		resultClient, err = redisq.Dial(ctx, cfg.Tasks.ResultBackendURL())
		if err != nil {
			_ = queueClient.Close()
			return nil, fmt.Errorf("result backend: %w", err)
		}
	}

	backend := &Backend{Broker: redisq.NewBroker(queueClient, resultClient, cfg.Tasks.QueueName, log)}
	if runner != nil {
		w := redisq.NewWorker(queueClient, resultClient, runner, redisq.WorkerOptions{
			Queue:       cfg.Tasks.QueueName,
			Concurrency: cfg.Tasks.Concurrency,
			TimeLimit:   cfg.Tasks.TimeLimit,
			AcksLate:    cfg.Tasks.AcksLate,
			ResultTTL:   cfg.Tasks.ResultTTL,
		}, log)
		backend.serve = w.Run
	}
	return backend, nil
}

func openTemporal(
	ctx context.Context,
	cfg *config.Config,
	hostPort string,
	runner queue.Runner,
	lazy bool,
	log logger.Logger,
) (*Backend, error) {
	opts := temporalq.Options(hostPort, cfg.Temporal.Namespace, log)
	var (
		c   client.Client
		err error
	)
	if lazy {
		c, err = client.NewLazyClient(opts)
	} else {
		c, err = client.DialContext(ctx, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	backend := &Backend{Broker: temporalq.NewBroker(c, cfg.Temporal.TaskQueue, cfg.Tasks.TimeLimit, log)}
	if runner != nil {
		w := temporalq.NewWorker(c, runner, temporalq.WorkerOptions{
			TaskQueue:   cfg.Temporal.TaskQueue,
			Concurrency: cfg.Tasks.Concurrency,
		}, log)
		backend.serve = func(ctx context.Context) error {
			return runTemporal(ctx, w)
		}
	}
	return backend, nil
}

func runTemporal(ctx context.Context, w worker.Worker) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}
