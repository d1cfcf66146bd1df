package activities

import (
	"time"

	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
)

// Deps are the collaborators shared by the task handlers
type Deps struct {
	Ops         store.Operations
	Concurrency int
	NotifyDelay time.Duration
	Tally       *Tally
	Metrics     *metrics.Metrics
}

// RegisterTasks builds a registry with a handler for every known task
func RegisterTasks(d Deps) *Registry {
	if d.Tally == nil {
		d.Tally = &Tally{}
	}
	r := NewRegistry(d.Metrics)

	complaints := NewComplaintActivities(d.Ops, d.Tally)
	Register(r, types.TaskCheckComplaintByID, complaints.CheckComplaintByID)
	Register(r, types.TaskCheckComplaintByOrder, complaints.CheckComplaintByOrder)
	Register(r, types.TaskCreateComplaint, complaints.CreateComplaint)
	Register(r, types.TaskGetComplaintDetails, complaints.GetComplaintDetails)

	orders := NewOrderActivities(d.Ops, d.Concurrency)
	Register(r, types.TaskGetOrderStatus, orders.GetOrderStatus)
	Register(r, types.TaskBatchCheckOrders, orders.BatchCheckOrders)

	escalations := NewEscalationActivities(d.Ops, d.Tally)
	Register(r, types.TaskEscalateComplaint, escalations.EscalateComplaint)

	wf := NewWorkflowActivities(d.Ops, d.Tally)
	Register(r, types.TaskProcessComplaintWorkflow, wf.ProcessComplaintWorkflow)

	notifications := NewNotificationActivities(d.NotifyDelay, d.Tally)
	Register(r, types.TaskSendNotification, notifications.SendNotification)
	Register(r, types.TaskGenerateDailyReport, notifications.GenerateDailyReport)

	return r
}
