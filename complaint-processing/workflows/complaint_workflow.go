package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
)

// AlreadyStored is the create_complaint message when an earlier run stored the complaint
const AlreadyStored = "Complaint already stored"

// CriticalKeywords trigger an automatic escalation when found in an issue
var CriticalKeywords = []string{"damaged", "lost", "wrong item", "missing", "urgent", "critical"}

// IsCritical reports whether issue contains a critical keyword, ignoring case
func IsCritical(issue string) bool {
	lower := strings.ToLower(issue)
	for _, kw := range CriticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ComplaintWorkflow runs the complaint lifecycle as one unit of work:
//   - check_order: the order must exist
//   - create_complaint: store the complaint under a caller-supplied or fresh id;
//     a duplicate of this run's own id counts as stored
//   - auto_escalate: escalate critical issues, skip the rest
//
// Steps run strictly in order and the first failed step ends the run. Steps
// already done are never rolled back. Run never returns an error; failures
// are recorded in the step trail and Completed stays false.
type ComplaintWorkflow struct {
	ops   store.Operations
	newID func() string
}

func NewComplaintWorkflow(ops store.Operations) *ComplaintWorkflow {
	return &ComplaintWorkflow{ops: ops, newID: uuid.NewString}
}

func (w *ComplaintWorkflow) Run(ctx context.Context, req types.ComplaintRequest) types.WorkflowResult {
	if req.ComplaintID == "" {
		req.ComplaintID = w.newID()
	}
	log := logger.FromContext(ctx).With("orderID", req.OrderID, "complaintID", req.ComplaintID)
	result := types.WorkflowResult{
		OrderID:     req.OrderID,
		ComplaintID: req.ComplaintID,
		Steps:       []types.StepRecord{},
	}

	// Step 1: Check order
	log.Info("Checking order")
	order, err := w.ops.GetOrder(ctx, req.OrderID)
	if rec, ok := failedStep(types.StepCheckOrder, order, err); !ok {
		log.Warn("Order check failed", "error", rec.Error)
		result.Steps = append(result.Steps, rec)
		return result
	}
	result.Steps = append(result.Steps, types.StepRecord{
		Step:   types.StepCheckOrder,
		Status: types.StepSuccess,
		Detail: order.Data,
	})

	// Step 2: Create complaint
	log.Info("Creating complaint")
	created, err := w.ops.CreateComplaint(ctx, req.ComplaintID, req.OrderID, req.Issue)
	var existing types.ComplaintCheck
	if err == nil && created.Kind == types.OutcomeAlreadyExists {
		// An earlier run of this request may already have stored it under the same id
		if check, ok := w.ownComplaint(ctx, req.ComplaintID); ok {
			log.Info("Complaint already stored by an earlier attempt")
			existing = check
			created = types.Outcome{Kind: types.OutcomeOK, StatusCode: created.StatusCode, Data: map[string]any{
				"complaint_id": check.ComplaintID,
				"message":      AlreadyStored,
			}}
		}
	}
	if rec, ok := failedStep(types.StepCreateComplaint, created, err); !ok {
		log.Warn("Complaint creation failed", "error", rec.Error)
		result.Steps = append(result.Steps, rec)
		return result
	}
	result.Steps = append(result.Steps, types.StepRecord{
		Step:   types.StepCreateComplaint,
		Status: types.StepSuccess,
		Detail: created.Data,
	})

	// Step 3: Auto-escalate critical issues
	switch {
	case !IsCritical(req.Issue):
		result.Steps = append(result.Steps, types.StepRecord{
			Step:   types.StepAutoEscalate,
			Status: types.StepSkipped,
			Reason: "not critical",
		})
	case existing.EscalationStatus == types.Escalated:
		result.Steps = append(result.Steps, types.StepRecord{
			Step:   types.StepAutoEscalate,
			Status: types.StepSkipped,
			Reason: "already escalated",
		})
	default:
		log.Info("Auto-escalating critical complaint")
		escalation, err := w.ops.EscalateComplaint(ctx, req.ComplaintID)
		if rec, ok := failedStep(types.StepAutoEscalate, escalation, err); !ok {
			// The complaint stays committed; only the escalation is reported as failed
			log.Warn("Auto-escalation failed", "error", rec.Error)
			result.Steps = append(result.Steps, rec)
		} else {
			result.Steps = append(result.Steps, types.StepRecord{
				Step:   types.StepAutoEscalate,
				Status: types.StepSuccess,
				Detail: escalation.Data,
			})
		}
	}

	result.Completed = true
	log.Info("Workflow completed")
	return result
}

// ownComplaint reports whether complaintID is already stored
func (w *ComplaintWorkflow) ownComplaint(ctx context.Context, complaintID string) (types.ComplaintCheck, bool) {
	out, err := w.ops.CheckComplaintByID(ctx, complaintID)
	if err != nil || !out.OK() {
		return types.ComplaintCheck{}, false
	}
	var check types.ComplaintCheck
	if err := out.Decode(&check); err != nil || !check.Exists {
		return types.ComplaintCheck{}, false
	}
	if check.ComplaintID == "" {
		check.ComplaintID = complaintID
	}
	return check, true
}

// failedStep returns a failed record and false unless the call produced an ok outcome
func failedStep(step string, out types.Outcome, err error) (types.StepRecord, bool) {
	if err != nil {
		return types.StepRecord{Step: step, Status: types.StepFailed, Error: err.Error()}, false
	}
	if out.OK() {
		return types.StepRecord{}, true
	}
	return types.StepRecord{Step: step, Status: types.StepFailed, Error: outcomeError(step, out)}, false
}

func outcomeError(step string, out types.Outcome) string {
	switch {
	case out.Kind == types.OutcomeAlreadyExists:
		return "Complaint already exists"
	case out.Kind == types.OutcomeNotFound && step == types.StepAutoEscalate:
		return "Complaint not found"
	case out.Kind == types.OutcomeNotFound:
		return "Order not found"
	}
	return fmt.Sprintf("unexpected outcome %s", out.Kind)
}
