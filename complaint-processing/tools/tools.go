// Package tools is the synchronous face of the task layer used by the
// assistant. Each call submits a task, waits a bounded time for it and, when
// the queue cannot answer, calls the backend directly once.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
	"go-complaint-tasks/complaint-processing/workflows"
)

const unavailableMsg = "Sorry, the customer service system is unavailable right now. Please try again later."

type Tools struct {
	broker  queue.Broker
	direct  store.Operations
	wait    time.Duration
	metrics *metrics.Metrics
	log     logger.Logger
	newID   func() string
}

// New builds the adapter. direct is used as is for fallbacks and should not
// retry; a nil broker sends every call down the direct path.
func New(broker queue.Broker, direct store.Operations, wait time.Duration, m *metrics.Metrics, log logger.Logger) *Tools {
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	return &Tools{broker: broker, direct: direct, wait: wait, metrics: m, log: log, newID: uuid.NewString}
}

// dispatch runs name through the queue, falling back to direct on any
// submit or wait error. The decision is made per call.
func dispatch[R any](
	ctx context.Context,
	t *Tools,
	name types.TaskName,
	payload any,
	direct func(context.Context) (R, error),
) (R, error) {
	var out R
	err := queue.ErrClosed
	if t.broker != nil {
		var h queue.Handle
		h, err = t.broker.Submit(ctx, name, payload)
		if err == nil {
			err = h.Wait(ctx, t.wait, &out)
		}
		if err == nil {
			return out, nil
		}
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	t.log.Warn("Task queue unavailable, calling backend directly", "task", name, "error", err)
	t.metrics.Fallback(string(name))
	return direct(ctx)
}

// TrackOrder reports the status and delivery estimate of an order
func (t *Tools) TrackOrder(ctx context.Context, orderID string) string {
	out, err := dispatch(ctx, t, types.TaskGetOrderStatus, types.OrderArgs{OrderID: orderID},
		func(ctx context.Context) (types.Outcome, error) { return t.direct.GetOrder(ctx, orderID) })
	if msg, done := t.failure(err, out, "Order "+orderID); done {
		return msg
	}
	var order types.Order
	if err := out.Decode(&order); err != nil {
		return t.malformed(types.TaskGetOrderStatus, err)
	}
	return fmt.Sprintf("Order %s is %s. Estimated delivery: %s.", order.OrderID, order.Status, order.EstimatedDelivery)
}

// FileComplaint files a complaint unless the order already has one
func (t *Tools) FileComplaint(ctx context.Context, orderID, issue string) string {
	check, err := t.checkByOrder(ctx, orderID)
	if err != nil {
		return t.unavailable(types.TaskCheckComplaintByOrder, err)
	}
	if check.Exists {
		return fmt.Sprintf("A complaint for order %s already exists (ID: %s, status: %s).",
			orderID, check.ComplaintID, check.EscalationStatus)
	}

	// One id for both paths, so a task finishing after the fallback is rejected as a duplicate
	args := types.CreateComplaintArgs{ComplaintID: t.newID(), OrderID: orderID, Issue: issue}
	out, err := dispatch(ctx, t, types.TaskCreateComplaint, args,
		func(ctx context.Context) (types.Outcome, error) {
			return t.direct.CreateComplaint(ctx, args.ComplaintID, args.OrderID, args.Issue)
		})
	if err != nil {
		return t.unavailable(types.TaskCreateComplaint, err)
	}
	switch out.Kind {
	case types.OutcomeAlreadyExists:
		if t.stored(ctx, args.ComplaintID) {
			return fmt.Sprintf("Your complaint about order %s has been submitted. Complaint ID: %s.", orderID, args.ComplaintID)
		}
		return fmt.Sprintf("A complaint for order %s already exists.", orderID)
	case types.OutcomeNotFound:
		return fmt.Sprintf("Order %s was not found, so no complaint was filed.", orderID)
	}
	return fmt.Sprintf("Your complaint about order %s has been submitted. Complaint ID: %s.", orderID, args.ComplaintID)
}

// CheckComplaintByOrder reports the complaint filed for an order, if any
func (t *Tools) CheckComplaintByOrder(ctx context.Context, orderID string) string {
	check, err := t.checkByOrder(ctx, orderID)
	if err != nil {
		return t.unavailable(types.TaskCheckComplaintByOrder, err)
	}
	if !check.Exists {
		return fmt.Sprintf("No complaint found for order %s.", orderID)
	}
	return describeCheck(check)
}

// CheckComplaint reports whether a complaint id exists
func (t *Tools) CheckComplaint(ctx context.Context, complaintID string) string {
	out, err := dispatch(ctx, t, types.TaskCheckComplaintByID, types.ComplaintArgs{ComplaintID: complaintID},
		func(ctx context.Context) (types.Outcome, error) { return t.direct.CheckComplaintByID(ctx, complaintID) })
	if msg, done := t.failure(err, out, "Complaint "+complaintID); done {
		return msg
	}
	var check types.ComplaintCheck
	if err := out.Decode(&check); err != nil {
		return t.malformed(types.TaskCheckComplaintByID, err)
	}
	if !check.Exists {
		return fmt.Sprintf("No complaint found with ID %s.", complaintID)
	}
	if check.ComplaintID == "" {
		check.ComplaintID = complaintID
	}
	return describeCheck(check)
}

// ComplaintDetails returns the full record of a complaint
func (t *Tools) ComplaintDetails(ctx context.Context, complaintID string) string {
	out, err := dispatch(ctx, t, types.TaskGetComplaintDetails, types.ComplaintArgs{ComplaintID: complaintID},
		func(ctx context.Context) (types.Outcome, error) { return t.direct.GetComplaint(ctx, complaintID) })
	if msg, done := t.failure(err, out, "Complaint "+complaintID); done {
		return msg
	}
	var c types.Complaint
	if err := out.Decode(&c); err != nil {
		return t.malformed(types.TaskGetComplaintDetails, err)
	}
	return fmt.Sprintf("Complaint %s for order %s: %q. Escalation status: %s.", c.ID, c.OrderID, c.Issue, c.EscalationStatus)
}

// Escalate sends a complaint to senior review
func (t *Tools) Escalate(ctx context.Context, complaintID string) string {
	out, err := dispatch(ctx, t, types.TaskEscalateComplaint, types.ComplaintArgs{ComplaintID: complaintID},
		func(ctx context.Context) (types.Outcome, error) { return t.direct.EscalateComplaint(ctx, complaintID) })
	if msg, done := t.failure(err, out, "Complaint "+complaintID); done {
		return msg
	}
	var created types.EscalationCreated
	if err := out.Decode(&created); err != nil {
		return t.malformed(types.TaskEscalateComplaint, err)
	}
	return fmt.Sprintf("Complaint %s has been escalated. Escalation ID: %s.", complaintID, created.EscalationID)
}

// ProcessComplaint runs the complaint workflow and summarises its steps
func (t *Tools) ProcessComplaint(ctx context.Context, orderID, issue string) string {
	result, err := t.RunWorkflow(ctx, orderID, issue)
	if err != nil {
		return t.unavailable(types.TaskProcessComplaintWorkflow, err)
	}
	return DescribeWorkflow(result)
}

// RunWorkflow runs the complaint workflow, falling back to running it in
// process against the backend
func (t *Tools) RunWorkflow(ctx context.Context, orderID, issue string) (types.WorkflowResult, error) {
	req := types.ComplaintRequest{OrderID: orderID, Issue: issue, ComplaintID: t.newID()}
	return dispatch(ctx, t, types.TaskProcessComplaintWorkflow, req,
		func(ctx context.Context) (types.WorkflowResult, error) {
			return workflows.NewComplaintWorkflow(t.direct).Run(ctx, req), nil
		})
}

// DescribeWorkflow renders a workflow result as one line per step
func DescribeWorkflow(r types.WorkflowResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Complaint workflow for order %s (complaint %s):", r.OrderID, r.ComplaintID)
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n- %s: %s", s.Step, s.Status)
		switch {
		case s.Error != "":
			fmt.Fprintf(&b, " (%s)", s.Error)
		case s.Reason != "":
			fmt.Fprintf(&b, " (%s)", s.Reason)
		}
	}
	if r.Completed {
		b.WriteString("\nCompleted.")
	} else {
		b.WriteString("\nStopped early.")
	}
	return b.String()
}

// stored reports whether complaintID exists, meaning a task that outlived its
// wait already filed it
func (t *Tools) stored(ctx context.Context, complaintID string) bool {
	out, err := t.direct.CheckComplaintByID(ctx, complaintID)
	if err != nil || !out.OK() {
		return false
	}
	var check types.ComplaintCheck
	return out.Decode(&check) == nil && check.Exists
}

func (t *Tools) checkByOrder(ctx context.Context, orderID string) (types.ComplaintCheck, error) {
	out, err := dispatch(ctx, t, types.TaskCheckComplaintByOrder, types.OrderArgs{OrderID: orderID},
		func(ctx context.Context) (types.Outcome, error) { return t.direct.CheckComplaintByOrder(ctx, orderID) })
	if err != nil {
		return types.ComplaintCheck{}, err
	}
	var check types.ComplaintCheck
	if out.Kind == types.OutcomeNotFound {
		return check, nil
	}
	if err := out.Decode(&check); err != nil {
		return types.ComplaintCheck{}, err
	}
	return check, nil
}

// failure renders errors and not-found outcomes; done is false for an ok outcome
func (t *Tools) failure(err error, out types.Outcome, subject string) (string, bool) {
	if err != nil {
		t.log.Error("Backend call failed", "subject", subject, "error", err)
		return unavailableMsg, true
	}
	if out.Kind == types.OutcomeNotFound {
		return subject + " was not found.", true
	}
	if !out.OK() {
		return fmt.Sprintf("%s could not be processed: %s.", subject, out.Message), true
	}
	return "", false
}

func (t *Tools) unavailable(task types.TaskName, err error) string {
	t.log.Error("Backend call failed", "task", task, "error", err)
	return unavailableMsg
}

func (t *Tools) malformed(task types.TaskName, err error) string {
	t.log.Error("Unexpected backend response", "task", task, "error", err)
	return unavailableMsg
}

func describeCheck(c types.ComplaintCheck) string {
	return fmt.Sprintf("Complaint %s: %q. Escalation status: %s.", c.ComplaintID, c.Issue, c.EscalationStatus)
}
