package types

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Order is a store order as returned by the backend
type Order struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

// EscalationStatus tracks whether a complaint has been escalated
type EscalationStatus string

const (
	NotEscalated EscalationStatus = "Not Escalated"
	Escalated    EscalationStatus = "Escalated"
)

// Complaint is a customer complaint about exactly one order
type Complaint struct {
	ID               string           `json:"id"`
	OrderID          string           `json:"order_id"`
	Issue            string           `json:"issue"`
	EscalationStatus EscalationStatus `json:"escalation_status"`
}

// EscalationPending is the initial status of an escalation
const EscalationPending = "Pending"

// Escalation is a request for senior review of a complaint.
// A complaint may accumulate several.
type Escalation struct {
	ID          string `json:"id"`
	ComplaintID string `json:"complaint_id"`
	Status      string `json:"status"`
}

// ComplaintCheck is the body of the check_by_id / check_by_order endpoints
type ComplaintCheck struct {
	Exists           bool             `json:"exists"`
	ComplaintID      string           `json:"complaint_id"`
	Issue            string           `json:"issue"`
	EscalationStatus EscalationStatus `json:"escalation_status"`
}

// ComplaintCreated is the body returned when a complaint is stored
type ComplaintCreated struct {
	Message     string `json:"message"`
	ComplaintID string `json:"complaint_id"`
}

// EscalationCreated is the body returned when an escalation is opened
type EscalationCreated struct {
	Message      string `json:"message"`
	EscalationID string `json:"escalation_id"`
}

// OutcomeKind discriminates the business result of a backend call
type OutcomeKind string

const (
	OutcomeOK            OutcomeKind = "ok"
	OutcomeNotFound      OutcomeKind = "not_found"
	OutcomeAlreadyExists OutcomeKind = "already_exists"
)

// Outcome is the single result shape of every backend operation.
// Transport and unexpected-status failures are never an Outcome; they are
// returned as *TransientError.
type Outcome struct {
	Kind       OutcomeKind    `json:"kind"`
	StatusCode int            `json:"status_code"`
	Data       map[string]any `json:"data,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// OK reports whether the call succeeded
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Decode maps the response body onto out using its json tags
func (o Outcome) Decode(out any) error {
	if o.Kind != OutcomeOK {
		return fmt.Errorf("cannot decode %s outcome", o.Kind)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(o.Data)
}

// StepStatus is the state of one workflow step
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Workflow step names
const (
	StepCheckOrder      = "check_order"
	StepCreateComplaint = "create_complaint"
	StepAutoEscalate    = "auto_escalate"
)

// StepRecord is one entry of the workflow audit trail
type StepRecord struct {
	Step   string         `json:"step"`
	Status StepStatus     `json:"status"`
	Detail map[string]any `json:"detail,omitempty"`
	Error  string         `json:"error,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// WorkflowResult is the outcome of a complaint workflow run
type WorkflowResult struct {
	OrderID     string       `json:"order_id"`
	ComplaintID string       `json:"complaint_id"`
	Steps       []StepRecord `json:"steps"`
	Completed   bool         `json:"completed,omitempty"`
}

// Step returns the record for the named step, if it was attempted
func (r WorkflowResult) Step(name string) (StepRecord, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepRecord{}, false
}

// Notification is the result of a send_notification task
type Notification struct {
	Recipient   string         `json:"recipient"`
	MessageType string         `json:"message_type"`
	Data        map[string]any `json:"data,omitempty"`
	SentAt      string         `json:"sent_at"`
	Status      string         `json:"status"`
	Message     string         `json:"message"`
}

// ReportSummary holds the complaint counters of a daily report
type ReportSummary struct {
	TotalComplaints     int64 `json:"total_complaints"`
	EscalatedComplaints int64 `json:"escalated_complaints"`
	ResolvedComplaints  int64 `json:"resolved_complaints"`
	PendingComplaints   int64 `json:"pending_complaints"`
}

// DailyReport is the result of a generate_daily_report task
type DailyReport struct {
	Date        string        `json:"date"`
	GeneratedAt string        `json:"generated_at"`
	Summary     ReportSummary `json:"summary"`
	Status      string        `json:"status"`
}

// BatchItem is the per-order entry of a batch check
type BatchItem struct {
	OrderID string         `json:"order_id"`
	Status  StepStatus     `json:"status"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// BatchResult is the result of a batch_check_orders task
type BatchResult struct {
	Total   int         `json:"total"`
	Results []BatchItem `json:"results"`
}
