package activities

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
	"go-complaint-tasks/complaint-processing/workflows"
)

// Tally counts complaints created and escalated by this worker since the
// last daily report
type Tally struct {
	created   atomic.Int64
	escalated atomic.Int64
}

func (t *Tally) ComplaintCreated() {
	if t != nil {
		t.created.Add(1)
	}
}

func (t *Tally) ComplaintEscalated() {
	if t != nil {
		t.escalated.Add(1)
	}
}

// Snapshot returns the counters and resets them
func (t *Tally) Snapshot() types.ReportSummary {
	if t == nil {
		return types.ReportSummary{}
	}
	created := t.created.Swap(0)
	escalated := t.escalated.Swap(0)
	return types.ReportSummary{
		TotalComplaints:     created,
		EscalatedComplaints: escalated,
		PendingComplaints:   created - min(created, escalated),
	}
}

// ComplaintActivities contains complaint-related tasks
type ComplaintActivities struct {
	ops   store.Operations
	tally *Tally
	newID func() string
}

func NewComplaintActivities(ops store.Operations, tally *Tally) *ComplaintActivities {
	return &ComplaintActivities{ops: ops, tally: tally, newID: uuid.NewString}
}

// CheckComplaintByID reports whether a complaint exists. A missing complaint
// is an ok outcome with exists=false.
func (a *ComplaintActivities) CheckComplaintByID(ctx context.Context, args types.ComplaintArgs) (types.Outcome, error) {
	logger.FromContext(ctx).Info("Checking complaint", "complaintID", args.ComplaintID)
	return a.ops.CheckComplaintByID(ctx, args.ComplaintID)
}

// CheckComplaintByOrder reports whether the order already has a complaint
func (a *ComplaintActivities) CheckComplaintByOrder(ctx context.Context, args types.OrderArgs) (types.Outcome, error) {
	logger.FromContext(ctx).Info("Checking complaint for order", "orderID", args.OrderID)
	return a.ops.CheckComplaintByOrder(ctx, args.OrderID)
}

// CreateComplaint stores a complaint, generating its id when none is given
func (a *ComplaintActivities) CreateComplaint(ctx context.Context, args types.CreateComplaintArgs) (types.Outcome, error) {
	if args.ComplaintID == "" {
		args.ComplaintID = a.newID()
	}
	log := logger.FromContext(ctx)
	log.Info("Creating complaint", "complaintID", args.ComplaintID, "orderID", args.OrderID)

	out, err := a.ops.CreateComplaint(ctx, args.ComplaintID, args.OrderID, args.Issue)
	if err != nil {
		return types.Outcome{}, err
	}
	if out.OK() {
		a.tally.ComplaintCreated()
		log.Info("Complaint created", "complaintID", args.ComplaintID)
	}
	return out, nil
}

// GetComplaintDetails fetches a complaint by id
func (a *ComplaintActivities) GetComplaintDetails(ctx context.Context, args types.ComplaintArgs) (types.Outcome, error) {
	logger.FromContext(ctx).Info("Fetching complaint details", "complaintID", args.ComplaintID)
	return a.ops.GetComplaint(ctx, args.ComplaintID)
}

// EscalationActivities contains escalation-related tasks
type EscalationActivities struct {
	ops   store.Operations
	tally *Tally
}

func NewEscalationActivities(ops store.Operations, tally *Tally) *EscalationActivities {
	return &EscalationActivities{ops: ops, tally: tally}
}

// EscalateComplaint opens an escalation for an existing complaint
func (a *EscalationActivities) EscalateComplaint(ctx context.Context, args types.ComplaintArgs) (types.Outcome, error) {
	log := logger.FromContext(ctx)
	log.Info("Escalating complaint", "complaintID", args.ComplaintID)

	out, err := a.ops.EscalateComplaint(ctx, args.ComplaintID)
	if err != nil {
		return types.Outcome{}, err
	}
	if out.OK() {
		a.tally.ComplaintEscalated()
		log.Info("Complaint escalated", "complaintID", args.ComplaintID, "escalationID", out.Data["escalation_id"])
	}
	return out, nil
}

// OrderActivities contains order-related tasks
type OrderActivities struct {
	ops         store.Operations
	concurrency int
}

func NewOrderActivities(ops store.Operations, concurrency int) *OrderActivities {
	if concurrency < 1 {
		concurrency = 1
	}
	return &OrderActivities{ops: ops, concurrency: concurrency}
}

// GetOrderStatus fetches an order. Calling it twice yields the same outcome.
func (a *OrderActivities) GetOrderStatus(ctx context.Context, args types.OrderArgs) (types.Outcome, error) {
	logger.FromContext(ctx).Info("Fetching order status", "orderID", args.OrderID)
	return a.ops.GetOrder(ctx, args.OrderID)
}

// BatchCheckOrders looks up every order, at most concurrency at a time.
// Results keep the input order; a failed lookup fails only its own entry.
func (a *OrderActivities) BatchCheckOrders(ctx context.Context, args types.BatchArgs) (types.BatchResult, error) {
	log := logger.FromContext(ctx)
	log.Info("Checking orders in batch", "count", len(args.OrderIDs))

	results := make([]types.BatchItem, len(args.OrderIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, orderID := range args.OrderIDs {
		g.Go(func() error {
			results[i] = a.checkOne(gctx, orderID)
			return nil
		})
	}
	// Per-order failures are recorded in results, never returned
	_ = g.Wait()

	log.Info("Batch processed", "count", len(args.OrderIDs))
	return types.BatchResult{Total: len(args.OrderIDs), Results: results}, nil
}

func (a *OrderActivities) checkOne(ctx context.Context, orderID string) types.BatchItem {
	out, err := a.ops.GetOrder(ctx, orderID)
	switch {
	case err != nil:
		return types.BatchItem{OrderID: orderID, Status: types.StepFailed, Error: err.Error()}
	case out.Kind == types.OutcomeNotFound:
		return types.BatchItem{OrderID: orderID, Status: types.StepFailed, Error: "Order not found"}
	default:
		return types.BatchItem{OrderID: orderID, Status: types.StepSuccess, Data: out.Data}
	}
}

// WorkflowActivities runs the complaint workflow as a single task
type WorkflowActivities struct {
	workflow *workflows.ComplaintWorkflow
	tally    *Tally
}

func NewWorkflowActivities(ops store.Operations, tally *Tally) *WorkflowActivities {
	return &WorkflowActivities{workflow: workflows.NewComplaintWorkflow(ops), tally: tally}
}

// ProcessComplaintWorkflow checks the order, files the complaint and
// escalates it when critical. Partial failures come back in the step trail.
func (a *WorkflowActivities) ProcessComplaintWorkflow(ctx context.Context, req types.ComplaintRequest) (types.WorkflowResult, error) {
	result := a.workflow.Run(ctx, req)
	if s, ok := result.Step(types.StepCreateComplaint); ok && s.Status == types.StepSuccess && s.Detail["message"] != workflows.AlreadyStored {
		a.tally.ComplaintCreated()
	}
	if s, ok := result.Step(types.StepAutoEscalate); ok && s.Status == types.StepSuccess {
		a.tally.ComplaintEscalated()
	}
	return result, nil
}
