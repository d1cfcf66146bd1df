package temporalq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
	"go-complaint-tasks/complaint-processing/workflows"
)

const ComplaintWorkflowName = "ProcessComplaintWorkflow"

// workflowFor returns the Temporal workflow that runs task
func workflowFor(task types.TaskName) string {
	if task == types.TaskProcessComplaintWorkflow {
		return ComplaintWorkflowName
	}
	return RunTaskWorkflowName
}

// ProcessComplaintWorkflow runs process_complaint_workflow natively: every
// backend call of the complaint steps is its own RunTask activity, so the
// step history is visible in Temporal.
func ProcessComplaintWorkflow(ctx workflow.Context, input TaskInput) (json.RawMessage, error) {
	var req types.ComplaintRequest
	if len(input.Payload) > 0 {
		if err := json.Unmarshal(input.Payload, &req); err != nil {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("decode %s payload: %v", input.Task, err), "TaskFailed", err)
		}
	}
	if req.ComplaintID == "" {
		encoded := workflow.SideEffect(ctx, func(workflow.Context) any {
			return uuid.NewString()
		})
		if err := encoded.Get(&req.ComplaintID); err != nil {
			return nil, err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, taskActivityOptions(input.TimeLimit))
	wlog := workflow.GetLogger(ctx)
	wlog.Info("Complaint workflow started", "taskID", input.ID, "orderID", req.OrderID)

	ops := &activityOps{ctx: ctx, taskID: input.ID, limit: input.TimeLimit}
	runCtx := logger.ContextWithLogger(context.Background(), workflowLogger{wlog})
	result := workflows.NewComplaintWorkflow(ops).Run(runCtx, req)

	wlog.Info("Complaint workflow finished", "taskID", input.ID, "completed", result.Completed)
	return json.Marshal(result)
}

func taskActivityOptions(limit time.Duration) workflow.ActivityOptions {
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: limit,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}

// activityOps carries out backend operations as RunTask activities of the
// running workflow. The context.Context arguments are ignored; the workflow
// context drives every call.
type activityOps struct {
	ctx    workflow.Context
	taskID string
	limit  time.Duration
}

var _ store.Operations = (*activityOps)(nil)

func (o *activityOps) GetOrder(_ context.Context, orderID string) (types.Outcome, error) {
	return o.call(types.TaskGetOrderStatus, types.OrderArgs{OrderID: orderID})
}

func (o *activityOps) GetComplaint(_ context.Context, complaintID string) (types.Outcome, error) {
	return o.call(types.TaskGetComplaintDetails, types.ComplaintArgs{ComplaintID: complaintID})
}

func (o *activityOps) CreateComplaint(_ context.Context, complaintID, orderID, issue string) (types.Outcome, error) {
	return o.call(types.TaskCreateComplaint, types.CreateComplaintArgs{ComplaintID: complaintID, OrderID: orderID, Issue: issue})
}

func (o *activityOps) CheckComplaintByID(_ context.Context, complaintID string) (types.Outcome, error) {
	return o.call(types.TaskCheckComplaintByID, types.ComplaintArgs{ComplaintID: complaintID})
}

func (o *activityOps) CheckComplaintByOrder(_ context.Context, orderID string) (types.Outcome, error) {
	return o.call(types.TaskCheckComplaintByOrder, types.OrderArgs{OrderID: orderID})
}

func (o *activityOps) EscalateComplaint(_ context.Context, complaintID string) (types.Outcome, error) {
	return o.call(types.TaskEscalateComplaint, types.ComplaintArgs{ComplaintID: complaintID})
}

func (o *activityOps) call(task types.TaskName, args any) (types.Outcome, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return types.Outcome{}, err
	}
	input := TaskInput{ID: o.taskID, Task: task, Payload: payload, TimeLimit: o.limit}

	var raw json.RawMessage
	if err := workflow.ExecuteActivity(o.ctx, RunTaskActivityName, input).Get(o.ctx, &raw); err != nil {
		// Only the message survives the activity boundary
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) {
			return types.Outcome{}, errors.New(appErr.Message())
		}
		return types.Outcome{}, err
	}
	var out types.Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.Outcome{}, fmt.Errorf("decode %s result: %w", task, err)
	}
	return out, nil
}

// workflowLogger exposes Temporal's replay-safe workflow logger as a logger.Logger
type workflowLogger struct {
	log.Logger
}

func (l workflowLogger) With(keyvals ...any) logger.Logger {
	return workflowLogger{log.With(l.Logger, keyvals...)}
}
