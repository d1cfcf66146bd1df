package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
)

type WorkerOptions struct {
	Queue       string
	Concurrency int
	TimeLimit   time.Duration
	// AcksLate keeps a message on the processing list until its result is
	// stored, so a crashed worker's tasks are requeued on the next start
	AcksLate  bool
	ResultTTL time.Duration
	// PollInterval bounds each blocking pop so shutdown is noticed
	PollInterval time.Duration
}

type Worker struct {
	queue   *redis.Client
	results *redis.Client
	runner  queue.Runner
	opts    WorkerOptions
	keys    keys
	log     logger.Logger
}

func NewWorker(queueClient, resultClient *redis.Client, runner queue.Runner, opts WorkerOptions, log logger.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval < time.Second {
		opts.PollInterval = time.Second
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Worker{
		queue:   queueClient,
		results: resultClient,
		runner:  runner,
		opts:    opts,
		keys:    keys{queue: opts.Queue},
		log:     log.With("queue", opts.Queue),
	}
}

// Run consumes tasks with Concurrency loops until ctx is done. Tasks already
// running are allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.AcksLate {
		n, err := w.Recover(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.Warn("Requeued unacknowledged tasks", "count", n)
		}
	}
	w.log.Info("Worker started", "concurrency", w.opts.Concurrency, "acksLate", w.opts.AcksLate)

	g := new(errgroup.Group)
	for i := range w.opts.Concurrency {
		g.Go(func() error {
			w.loop(ctx, i)
			return nil
		})
	}
	err := g.Wait()
	w.log.Info("Worker stopped")
	return err
}

// Recover moves messages left on the processing list back onto the queue.
// It assumes no other worker is consuming the same queue at the time.
func (w *Worker) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := w.queue.RPopLPush(ctx, w.keys.processing(), w.keys.queue).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue unacknowledged tasks: %w", err)
		}
		n++
	}
}

func (w *Worker) loop(ctx context.Context, slot int) {
	log := w.log.With("slot", slot)
	for ctx.Err() == nil {
		raw, err := w.next(ctx)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Failed to fetch task", "error", err)
			sleep(ctx, w.opts.PollInterval)
			continue
		}
		w.process(raw)
	}
}

func (w *Worker) next(ctx context.Context) (string, error) {
	if w.opts.AcksLate {
		return w.queue.BRPopLPush(ctx, w.keys.queue, w.keys.processing(), w.opts.PollInterval).Result()
	}
	res, err := w.queue.BRPop(ctx, w.opts.PollInterval, w.keys.queue).Result()
	if err != nil {
		return "", err
	}
	return res[1], nil
}

// process runs on a background context so shutdown never abandons a task
// halfway or loses its result
func (w *Worker) process(raw string) {
	ctx := context.Background()
	var env queue.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		w.log.Error("Dropping malformed task message", "error", err)
		w.ack(ctx, raw)
		return
	}
	log := w.log.With("task", env.Task, "taskID", env.ID)
	ctx = logger.ContextWithLogger(ctx, log)

	exec := queue.Start(ctx, w.runner, env, w.opts.TimeLimit)
	// The consumer loop takes no new message while a handler that outlived its limit is still running
	defer func() { <-exec.Finished() }()

	value, err := exec.Result()
	if err != nil {
		log.Error("Task failed", "error", err)
	}
	if err := w.store(ctx, queue.NewResult(env, value, err)); err != nil {
		// Without a stored result the message stays unacknowledged
		log.Error("Failed to store task result", "error", err)
		return
	}
	w.ack(ctx, raw)
}

func (w *Worker) store(ctx context.Context, r queue.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.results.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, w.keys.result(r.ID), data, w.opts.ResultTTL)
		p.RPush(ctx, w.keys.done(r.ID), string(r.Status))
		p.Expire(ctx, w.keys.done(r.ID), w.opts.ResultTTL)
		return nil
	})
	return err
}

func (w *Worker) ack(ctx context.Context, raw string) {
	if !w.opts.AcksLate {
		return
	}
	if err := w.queue.LRem(ctx, w.keys.processing(), 1, raw).Err(); err != nil {
		w.log.Error("Failed to acknowledge task", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
