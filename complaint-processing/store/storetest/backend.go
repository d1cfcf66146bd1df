// Package storetest runs an in-memory customer-service backend for tests.
package storetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"go-complaint-tasks/complaint-processing/types"
)

// Routes, as registered on the mux. Used to inject faults and count calls.
const (
	RouteGetOrder              = "GET /orders/{id}"
	RouteCreateComplaint       = "POST /complaints"
	RouteGetComplaint          = "GET /complaints/{id}"
	RouteCheckComplaintByID    = "GET /complaints/check_by_id/{id}"
	RouteCheckComplaintByOrder = "GET /complaints/check_by_order/{id}"
	RouteEscalate              = "POST /escalations"
)

// SeedOrders are the orders every backend starts with
func SeedOrders() []types.Order {
	return []types.Order{
		{OrderID: "ORD123", Status: "Shipped", EstimatedDelivery: "2025-07-20"},
		{OrderID: "ORD456", Status: "Processing", EstimatedDelivery: "2025-07-25"},
		{OrderID: "ORD141", Status: "Delivered", EstimatedDelivery: "2025-07-15"},
	}
}

type Backend struct {
	mu          sync.Mutex
	orders      map[string]types.Order
	complaints  map[string]types.Complaint
	escalations []types.Escalation
	calls       map[string]int
	faults      map[string]int
	srv         *httptest.Server
}

// New starts a backend seeded with SeedOrders; it is closed with the test
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		orders:     make(map[string]types.Order),
		complaints: make(map[string]types.Complaint),
		calls:      make(map[string]int),
		faults:     make(map[string]int),
	}
	for _, o := range SeedOrders() {
		b.orders[o.OrderID] = o
	}
	mux := http.NewServeMux()
	b.handle(mux, RouteGetOrder, b.getOrder)
	b.handle(mux, RouteCreateComplaint, b.createComplaint)
	b.handle(mux, RouteGetComplaint, b.getComplaint)
	b.handle(mux, RouteCheckComplaintByID, b.checkByID)
	b.handle(mux, RouteCheckComplaintByOrder, b.checkByOrder)
	b.handle(mux, RouteEscalate, b.escalate)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *Backend) URL() string {
	return b.srv.URL
}

// Close stops the server so every later call fails at the transport level
func (b *Backend) Close() {
	b.srv.Close()
}

// Fail makes the next n calls on route answer 500
func (b *Backend) Fail(route string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[route] = n
}

// Calls returns how many requests reached route, faults included
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// AddComplaint stores c directly, bypassing the API
func (b *Backend) AddComplaint(c types.Complaint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.EscalationStatus == "" {
		c.EscalationStatus = types.NotEscalated
	}
	b.complaints[c.ID] = c
}

func (b *Backend) Complaints() []types.Complaint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Complaint, 0, len(b.complaints))
	for _, c := range b.complaints {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) Escalations() []types.Escalation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Escalation(nil), b.escalations...)
}

func (b *Backend) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[route]++
		fail := b.faults[route] > 0
		if fail {
			b.faults[route]--
		}
		b.mu.Unlock()
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "injected failure"})
			return
		}
		h(w, r)
	})
}

func (b *Backend) getOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	o, ok := b.orders[r.PathValue("id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (b *Backend) createComplaint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Issue   string `json:"issue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.complaints[req.ID]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Complaint already exists"})
		return
	}
	for _, c := range b.complaints {
		if c.OrderID == req.OrderID {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Complaint already exists"})
			return
		}
	}
	if _, ok := b.orders[req.OrderID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	b.complaints[req.ID] = types.Complaint{
		ID:               req.ID,
		OrderID:          req.OrderID,
		Issue:            req.Issue,
		EscalationStatus: types.NotEscalated,
	}
	writeJSON(w, http.StatusOK, types.ComplaintCreated{
		Message:     "Complaint created successfully",
		ComplaintID: req.ID,
	})
}

func (b *Backend) getComplaint(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	c, ok := b.complaints[r.PathValue("id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Complaint not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) checkByID(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	c, ok := b.complaints[r.PathValue("id")]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, check(c, ok))
}

func (b *Backend) checkByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	b.mu.Lock()
	var found types.Complaint
	ok := false
	for _, c := range b.complaints {
		if c.OrderID == orderID {
			found, ok = c, true
			break
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, check(found, ok))
}

func (b *Backend) escalate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ComplaintID string `json:"complaint_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.complaints[req.ComplaintID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Complaint not found"})
		return
	}
	esc := types.Escalation{ID: uuid.NewString(), ComplaintID: c.ID, Status: types.EscalationPending}
	b.escalations = append(b.escalations, esc)
	c.EscalationStatus = types.Escalated
	b.complaints[c.ID] = c
	writeJSON(w, http.StatusOK, types.EscalationCreated{
		Message:      "Complaint escalated successfully",
		EscalationID: esc.ID,
	})
}

func check(c types.Complaint, ok bool) map[string]any {
	if !ok {
		return map[string]any{"exists": false}
	}
	return map[string]any{
		"exists":            true,
		"complaint_id":      c.ID,
		"issue":             c.Issue,
		"escalation_status": c.EscalationStatus,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
