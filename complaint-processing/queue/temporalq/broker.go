package temporalq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/types"
)

// Options configures the Temporal client of a broker or worker
func Options(hostPort, namespace string, log logger.Logger) client.Options {
	opts := client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	}
	if log != nil {
		opts.Logger = log
	}
	return opts
}

type Broker struct {
	client    client.Client
	taskQueue string
	timeLimit time.Duration
	log       logger.Logger
}

var _ queue.Broker = (*Broker)(nil)

func NewBroker(c client.Client, taskQueue string, timeLimit time.Duration, log logger.Logger) *Broker {
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Broker{client: c, taskQueue: taskQueue, timeLimit: timeLimit, log: log}
}

func (b *Broker) Submit(ctx context.Context, name types.TaskName, payload any) (queue.Handle, error) {
	env, err := queue.NewEnvelope(uuid.NewString(), name, payload)
	if err != nil {
		return nil, err
	}
	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("task-%s-%s", name, env.ID),
		TaskQueue: b.taskQueue,
	}
	input := TaskInput{ID: env.ID, Task: name, Payload: env.Payload, TimeLimit: b.timeLimit}
	run, err := b.client.ExecuteWorkflow(ctx, workflowOptions, workflowFor(name), input)
	if err != nil {
		return nil, fmt.Errorf("start %s workflow: %w", name, err)
	}
	b.log.Debug("Task submitted", "task", name, "taskID", env.ID, "workflowID", workflowOptions.ID)
	return &handle{id: env.ID, task: name, run: run}, nil
}

func (b *Broker) Close() error {
	b.client.Close()
	return nil
}

type handle struct {
	id   string
	task types.TaskName
	run  client.WorkflowRun
}

func (h *handle) ID() string { return h.id }

func (h *handle) Task() types.TaskName { return h.task }

func (h *handle) Wait(ctx context.Context, timeout time.Duration, out any) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw json.RawMessage
	err := h.run.Get(wctx, &raw)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wctx.Err() != nil {
			return queue.ErrWaitTimeout
		}
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) {
			return &queue.TaskError{TaskID: h.id, Task: h.task, Message: appErr.Message()}
		}
		var timeoutErr *temporal.TimeoutError
		if errors.As(err, &timeoutErr) {
			return &queue.TaskError{TaskID: h.id, Task: h.task, Message: "time limit exceeded"}
		}
		return fmt.Errorf("wait for %s: %w", h.id, err)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", h.task, err)
	}
	return nil
}
