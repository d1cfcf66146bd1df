package temporalq

import (
	"os"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
)

type WorkerOptions struct {
	TaskQueue   string
	Concurrency int
}

// NewWorker creates a worker that runs at most Concurrency tasks at once
func NewWorker(c client.Client, runner queue.Runner, opts WorkerOptions, log logger.Logger) worker.Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	w := worker.New(c, opts.TaskQueue, worker.Options{
		Identity:                               "complaint-worker-" + hostname(),
		MaxConcurrentActivityExecutionSize:     opts.Concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: opts.Concurrency,
	})
	Register(w, runner, log)
	return w
}

// Register adds the task workflows and the RunTask activity to r under their fixed names
func Register(r worker.Registry, runner queue.Runner, log logger.Logger) {
	r.RegisterWorkflowWithOptions(RunTaskWorkflow, workflow.RegisterOptions{Name: RunTaskWorkflowName})
	r.RegisterWorkflowWithOptions(ProcessComplaintWorkflow, workflow.RegisterOptions{Name: ComplaintWorkflowName})
	activities := NewActivities(runner, log)
	r.RegisterActivityWithOptions(activities.RunTask, activity.RegisterOptions{Name: RunTaskActivityName})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
