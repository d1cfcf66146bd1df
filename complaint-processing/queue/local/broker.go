// Package local runs tasks in-process on a bounded pool of goroutines.
// Results live in memory on the task handle.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/types"
)

type Options struct {
	// Concurrency bounds the number of tasks running at once; at least 1
	Concurrency int
	// TimeLimit is the hard limit of a single task; zero disables it
	TimeLimit time.Duration
}

type Broker struct {
	runner    queue.Runner
	sem       *semaphore.Weighted
	timeLimit time.Duration
	log       logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ queue.Broker = (*Broker)(nil)

func New(runner queue.Runner, opts Options, log logger.Logger) *Broker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Broker{
		runner:    runner,
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
		timeLimit: opts.TimeLimit,
		log:       log,
	}
}

// Submit queues the task and returns at once. Tasks start in no particular order.
func (b *Broker) Submit(_ context.Context, name types.TaskName, payload any) (queue.Handle, error) {
	env, err := queue.NewEnvelope(uuid.NewString(), name, payload)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, queue.ErrClosed
	}

	h := &handle{id: env.ID, task: env.Task, done: make(chan struct{})}
	b.wg.Add(1)
	go b.execute(env, h)
	b.log.Debug("Task submitted", "task", name, "taskID", env.ID)
	return h, nil
}

// Close rejects new submissions and waits for queued and running tasks
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

func (b *Broker) execute(env queue.Envelope, h *handle) {
	defer b.wg.Done()

	// Tasks run detached from the submitter; abandoning Wait never cancels them
	ctx := logger.ContextWithLogger(context.Background(), b.log.With("taskID", env.ID))
	_ = b.sem.Acquire(ctx, 1)
	defer b.sem.Release(1)

	exec := queue.Start(ctx, b.runner, env, b.timeLimit)
	value, err := exec.Result()
	if err != nil {
		b.log.Error("Task failed", "task", env.Task, "taskID", env.ID, "error", err)
	}
	h.finish(queue.NewResult(env, value, err))
	// The slot stays taken while a handler that outlived its limit is still running
	<-exec.Finished()
}

type handle struct {
	id     string
	task   types.TaskName
	done   chan struct{}
	result queue.Result
}

func (h *handle) ID() string { return h.id }

func (h *handle) Task() types.TaskName { return h.task }

func (h *handle) finish(r queue.Result) {
	h.result = r
	close(h.done)
}

func (h *handle) Wait(ctx context.Context, timeout time.Duration, out any) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return h.result.Decode(out)
	case <-t.C:
		return queue.ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
