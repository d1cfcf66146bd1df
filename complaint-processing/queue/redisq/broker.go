package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/types"
)

type Broker struct {
	queue   *redis.Client
	results *redis.Client
	keys    keys
	log     logger.Logger
}

var _ queue.Broker = (*Broker)(nil)

// NewBroker submits onto queueName through queueClient and reads results
// from resultClient. Both may be the same client.
func NewBroker(queueClient, resultClient *redis.Client, queueName string, log logger.Logger) *Broker {
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Broker{queue: queueClient, results: resultClient, keys: keys{queue: queueName}, log: log}
}

func (b *Broker) Submit(ctx context.Context, name types.TaskName, payload any) (queue.Handle, error) {
	env, err := queue.NewEnvelope(uuid.NewString(), name, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.queue.LPush(ctx, b.keys.queue, data).Err(); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", name, err)
	}
	b.log.Debug("Task submitted", "task", name, "taskID", env.ID)
	return b.Handle(env.ID, name), nil
}

// Handle reattaches to a task submitted earlier
func (b *Broker) Handle(id string, name types.TaskName) queue.Handle {
	return &handle{id: id, task: name, results: b.results, keys: b.keys}
}

func (b *Broker) Close() error {
	err := b.queue.Close()
	if b.results != b.queue {
		err = errors.Join(err, b.results.Close())
	}
	return err
}

type handle struct {
	id      string
	task    types.TaskName
	results *redis.Client
	keys    keys
}

func (h *handle) ID() string { return h.id }

func (h *handle) Task() types.TaskName { return h.task }

// Wait checks the result store, then blocks on the done list. Redis blocking
// pops have whole-second resolution, so timeouts under a second round up.
func (h *handle) Wait(ctx context.Context, timeout time.Duration, out any) error {
	if r, ok, err := h.fetch(ctx); err != nil || ok {
		if err != nil {
			return err
		}
		return r.Decode(out)
	}
	if timeout <= 0 {
		return queue.ErrWaitTimeout
	}

	err := h.results.BLPop(ctx, timeout, h.keys.done(h.id)).Err()
	switch {
	case errors.Is(err, redis.Nil):
		// Another waiter on the same task may have taken the done marker
		r, ok, err := h.fetch(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return queue.ErrWaitTimeout
		}
		return r.Decode(out)
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wait for %s: %w", h.id, err)
	}

	r, ok, err := h.fetch(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("result of %s expired", h.id)
	}
	return r.Decode(out)
}

func (h *handle) fetch(ctx context.Context) (queue.Result, bool, error) {
	raw, err := h.results.Get(ctx, h.keys.result(h.id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return queue.Result{}, false, nil
	}
	if err != nil {
		return queue.Result{}, false, fmt.Errorf("read result of %s: %w", h.id, err)
	}
	var r queue.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return queue.Result{}, false, fmt.Errorf("decode result of %s: %w", h.id, err)
	}
	return r, true, nil
}
