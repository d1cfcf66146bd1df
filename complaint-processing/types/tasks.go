package types

// TaskName identifies a unit of work that can be submitted to the task queue
type TaskName string

const (
	TaskCheckComplaintByID       TaskName = "check_complaint_by_id"
	TaskCheckComplaintByOrder    TaskName = "check_complaint_by_order"
	TaskCreateComplaint          TaskName = "create_complaint"
	TaskGetComplaintDetails      TaskName = "get_complaint_details"
	TaskGetOrderStatus           TaskName = "get_order_status"
	TaskEscalateComplaint        TaskName = "escalate_complaint"
	TaskProcessComplaintWorkflow TaskName = "process_complaint_workflow"
	TaskSendNotification         TaskName = "send_notification"
	TaskGenerateDailyReport      TaskName = "generate_daily_report"
	TaskBatchCheckOrders         TaskName = "batch_check_orders"
)

// AllTasks lists every task a worker must be able to run
func AllTasks() []TaskName {
	return []TaskName{
		TaskCheckComplaintByID,
		TaskCheckComplaintByOrder,
		TaskCreateComplaint,
		TaskGetComplaintDetails,
		TaskGetOrderStatus,
		TaskEscalateComplaint,
		TaskProcessComplaintWorkflow,
		TaskSendNotification,
		TaskGenerateDailyReport,
		TaskBatchCheckOrders,
	}
}

// Valid reports whether n is a known task
func (n TaskName) Valid() bool {
	for _, t := range AllTasks() {
		if t == n {
			return true
		}
	}
	return false
}

// OrderArgs is the payload of get_order_status and check_complaint_by_order
type OrderArgs struct {
	OrderID string `json:"order_id"`
}

// ComplaintArgs is the payload of tasks keyed by complaint id
type ComplaintArgs struct {
	ComplaintID string `json:"complaint_id"`
}

// CreateComplaintArgs is the payload of create_complaint
type CreateComplaintArgs struct {
	ComplaintID string `json:"complaint_id"`
	OrderID     string `json:"order_id"`
	Issue       string `json:"issue"`
}

// ComplaintRequest is the payload of process_complaint_workflow.
// An empty ComplaintID is replaced by a fresh UUID.
type ComplaintRequest struct {
	OrderID     string `json:"order_id"`
	Issue       string `json:"issue"`
	ComplaintID string `json:"complaint_id,omitempty"`
}

// NotificationArgs is the payload of send_notification
type NotificationArgs struct {
	Recipient   string         `json:"recipient"`
	MessageType string         `json:"message_type"`
	Data        map[string]any `json:"data,omitempty"`
}

// ReportArgs is the payload of generate_daily_report
type ReportArgs struct{}

// BatchArgs is the payload of batch_check_orders
type BatchArgs struct {
	OrderIDs []string `json:"order_ids"`
}
