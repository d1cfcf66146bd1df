package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/types"
)

// Handler runs one task on a JSON payload and returns its JSON result
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps task names to handlers. Brokers run tasks through it and
// never see the typed payloads.
type Registry struct {
	handlers map[types.TaskName]Handler
	metrics  *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{handlers: map[types.TaskName]Handler{}, metrics: m}
}

// Register binds a typed handler to name. The payload is decoded into P and
// the returned R is encoded as the task result. A later registration of the
// same name replaces the earlier one.
func Register[P, R any](r *Registry, name types.TaskName, fn func(context.Context, P) (R, error)) {
	r.handlers[name] = func(ctx context.Context, payload []byte) ([]byte, error) {
		var args P
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &args); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	}
}

// Names returns the registered task names in lexical order
func (r *Registry) Names() []types.TaskName {
	names := make([]types.TaskName, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Validate fails when a known task has no handler
func (r *Registry) Validate() error {
	var errs []error
	for _, name := range types.AllTasks() {
		if _, ok := r.handlers[name]; !ok {
			errs = append(errs, fmt.Errorf("task %s has no handler", name))
		}
	}
	return errors.Join(errs...)
}

// Run executes the named task and records its duration and final status
func (r *Registry) Run(ctx context.Context, name types.TaskName, payload []byte) ([]byte, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownTask, name)
	}
	log := logger.FromContext(ctx).With("task", name)
	ctx = logger.ContextWithLogger(ctx, log)

	start := time.Now()
	log.Debug("Task started")
	out, err := h(ctx, payload)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.TaskFinished(string(name), "failure", elapsed)
		log.Error("Task failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	r.metrics.TaskFinished(string(name), "success", elapsed)
	log.Info("Task finished", "elapsed", elapsed)
	return out, nil
}
