// Package temporalq runs tasks on a Temporal task queue. Every task is one
// RunTaskWorkflow execution wrapping a single RunTask activity attempt,
// except process_complaint_workflow, which runs as ProcessComplaintWorkflow
// with one activity per backend call. The backend retry policy lives in the
// task handlers, not in Temporal.
package temporalq

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/workflow"

	"go-complaint-tasks/complaint-processing/types"
)

const (
	RunTaskWorkflowName = "RunTaskWorkflow"
	RunTaskActivityName = "RunTask"

	defaultTimeLimit = 10 * time.Minute
)

// TaskInput is the input to RunTaskWorkflow and RunTask
type TaskInput struct {
	ID        string
	Task      types.TaskName
	Payload   json.RawMessage
	TimeLimit time.Duration
}

// RunTaskWorkflow executes one task as a single activity attempt bounded by
// the task's hard time limit
func RunTaskWorkflow(ctx workflow.Context, input TaskInput) (json.RawMessage, error) {
	ctx = workflow.WithActivityOptions(ctx, taskActivityOptions(input.TimeLimit))

	logger := workflow.GetLogger(ctx)
	logger.Info("RunTask workflow started", "task", input.Task, "taskID", input.ID)

	var out json.RawMessage
	err := workflow.ExecuteActivity(ctx, RunTaskActivityName, input).Get(ctx, &out)
	if err != nil {
		logger.Error("Task failed", "task", input.Task, "taskID", input.ID, "error", err)
		// Returned unwrapped so callers can reach the activity's ApplicationError
		return nil, err
	}

	logger.Info("RunTask workflow completed", "task", input.Task, "taskID", input.ID)
	return out, nil
}
