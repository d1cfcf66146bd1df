package temporalq

import (
	"context"
	"encoding/json"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
)

// Activities adapts a queue.Runner to a Temporal activity
type Activities struct {
	runner queue.Runner
	log    logger.Logger
}

func NewActivities(runner queue.Runner, log logger.Logger) *Activities {
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Activities{runner: runner, log: log}
}

// RunTask runs the named task. Failures are non-retryable; the task
// handlers have already spent their own retries.
func (a *Activities) RunTask(ctx context.Context, input TaskInput) (json.RawMessage, error) {
	info := activity.GetInfo(ctx)
	log := a.log.With("task", input.Task, "taskID", input.ID, "attempt", info.Attempt)
	ctx = logger.ContextWithLogger(ctx, log)

	env := queue.Envelope{ID: input.ID, Task: input.Task, Payload: input.Payload}
	value, err := queue.Execute(ctx, a.runner, env, input.TimeLimit)
	if err != nil {
		log.Error("Task failed", "error", err)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "TaskFailed", err)
	}
	return value, nil
}
