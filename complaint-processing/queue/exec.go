package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Execution is one task running on a Runner
type Execution struct {
	ctx      context.Context
	limit    time.Duration
	result   chan execResult
	finished chan struct{}
}

type execResult struct {
	value []byte
	err   error
}

// Start runs env on r in its own goroutine, turning a panic into an error.
// With a positive limit the context passed to the handler expires once the
// limit passes.
func Start(ctx context.Context, r Runner, env Envelope, limit time.Duration) *Execution {
	cancel := context.CancelFunc(func() {})
	if limit > 0 {
		ctx, cancel = context.WithTimeout(ctx, limit)
	}
	e := &Execution{
		ctx:      ctx,
		limit:    limit,
		result:   make(chan execResult, 1),
		finished: make(chan struct{}),
	}
	go func() {
		defer close(e.finished)
		defer cancel()
		value, err := safeRun(ctx, r, env)
		e.result <- execResult{value, err}
	}()
	return e
}

// Result blocks until the handler returned or the limit passed, whichever
// comes first. Past the limit the task is failed whether or not the handler
// honours its context.
func (e *Execution) Result() ([]byte, error) {
	if e.limit <= 0 {
		o := <-e.result
		return o.value, o.err
	}
	select {
	case o := <-e.result:
		if o.err != nil && errors.Is(e.ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("time limit of %s exceeded: %w", e.limit, o.err)
		}
		return o.value, o.err
	case <-e.ctx.Done():
		return nil, fmt.Errorf("time limit of %s exceeded", e.limit)
	}
}

// Finished is closed once the handler returned. For a handler that ignores
// an expired limit this is later than Result.
func (e *Execution) Finished() <-chan struct{} {
	return e.finished
}

// Execute runs env and returns its result, see Start and Result
func Execute(ctx context.Context, r Runner, env Envelope, limit time.Duration) ([]byte, error) {
	return Start(ctx, r, env, limit).Result()
}

func safeRun(ctx context.Context, r Runner, env Envelope) (value []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return r.Run(ctx, env.Task, env.Payload)
}
