// Package store is the HTTP client of the customer-service backend.
package store

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"go-complaint-tasks/complaint-processing/types"
)

// Operations is the set of backend calls the task layer performs.
// Implemented by *Client and by the retrying executor that wraps it.
type Operations interface {
	GetOrder(ctx context.Context, orderID string) (types.Outcome, error)
	GetComplaint(ctx context.Context, complaintID string) (types.Outcome, error)
	CreateComplaint(ctx context.Context, complaintID, orderID, issue string) (types.Outcome, error)
	CheckComplaintByID(ctx context.Context, complaintID string) (types.Outcome, error)
	CheckComplaintByOrder(ctx context.Context, orderID string) (types.Outcome, error)
	EscalateComplaint(ctx context.Context, complaintID string) (types.Outcome, error)
}

// Operation names, used in errors, logs and metrics
const (
	OpGetOrder              = "get_order"
	OpGetComplaint          = "get_complaint"
	OpCreateComplaint       = "create_complaint"
	OpCheckComplaintByID    = "check_complaint_by_id"
	OpCheckComplaintByOrder = "check_complaint_by_order"
	OpEscalateComplaint     = "escalate_complaint"
)

// Client performs a single HTTP attempt per call and maps the status code to
// a types.Outcome. It never retries.
type Client struct {
	http *resty.Client
}

var _ Operations = (*Client)(nil)

// New creates a client for baseURL with a fixed per-attempt timeout
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// statusMapping says which non-2xx codes are business outcomes for a call
type statusMapping map[int]types.OutcomeKind

var (
	readMapping   = statusMapping{http.StatusNotFound: types.OutcomeNotFound}
	createMapping = statusMapping{
		http.StatusNotFound:   types.OutcomeNotFound,
		http.StatusBadRequest: types.OutcomeAlreadyExists,
	}
)

func (c *Client) GetOrder(ctx context.Context, orderID string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetPathParam("id", orderID)
	return c.do(OpGetOrder, req, http.MethodGet, "/orders/{id}", readMapping)
}

func (c *Client) GetComplaint(ctx context.Context, complaintID string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetPathParam("id", complaintID)
	return c.do(OpGetComplaint, req, http.MethodGet, "/complaints/{id}", readMapping)
}

func (c *Client) CreateComplaint(ctx context.Context, complaintID, orderID, issue string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{
		"id":       complaintID,
		"order_id": orderID,
		"issue":    issue,
	})
	return c.do(OpCreateComplaint, req, http.MethodPost, "/complaints", createMapping)
}

func (c *Client) CheckComplaintByID(ctx context.Context, complaintID string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetPathParam("id", complaintID)
	return c.do(OpCheckComplaintByID, req, http.MethodGet, "/complaints/check_by_id/{id}", readMapping)
}

func (c *Client) CheckComplaintByOrder(ctx context.Context, orderID string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetPathParam("id", orderID)
	return c.do(OpCheckComplaintByOrder, req, http.MethodGet, "/complaints/check_by_order/{id}", readMapping)
}

func (c *Client) EscalateComplaint(ctx context.Context, complaintID string) (types.Outcome, error) {
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"complaint_id": complaintID})
	return c.do(OpEscalateComplaint, req, http.MethodPost, "/escalations", readMapping)
}

func (c *Client) do(
	op string,
	req *resty.Request,
	method, path string,
	mapping statusMapping,
) (types.Outcome, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return types.Outcome{}, &types.TransientError{Op: op, Err: err}
	}
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		data := map[string]any{}
		if body := resp.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &data); err != nil {
				return types.Outcome{}, &types.TransientError{Op: op, StatusCode: code, Err: err}
			}
		}
		return types.Outcome{Kind: types.OutcomeOK, StatusCode: code, Data: data}, nil
	}
	if kind, ok := mapping[code]; ok {
		return types.Outcome{Kind: kind, StatusCode: code, Message: detail(resp.Body(), kind)}, nil
	}
	return types.Outcome{}, &types.TransientError{Op: op, StatusCode: code}
}

// detail extracts FastAPI's {"detail": "..."} message, falling back to a generic one
func detail(body []byte, kind types.OutcomeKind) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	switch kind {
	case types.OutcomeNotFound:
		return "not found"
	case types.OutcomeAlreadyExists:
		return "already exists"
	}
	return string(kind)
}
