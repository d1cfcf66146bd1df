package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-complaint-tasks/complaint-processing/activities"
	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/queue/local"
	"go-complaint-tasks/complaint-processing/queue/redisq"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/store/storetest"
	"go-complaint-tasks/complaint-processing/types"
)

type fixture struct {
	backend *storetest.Backend
	direct  *store.Client
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	backend := storetest.New(t)
	return &fixture{
		backend: backend,
		direct:  store.New(backend.URL(), time.Second),
		metrics: metrics.New(),
	}
}

// localBroker runs the real task handlers in process
func (f *fixture) localBroker(t *testing.T) queue.Broker {
	exec := activities.NewExecutor(f.direct, activities.RetryPolicy{MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	registry := activities.RegisterTasks(activities.Deps{Ops: exec, Concurrency: 2})
	b := local.New(registry, local.Options{Concurrency: 2}, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func (f *fixture) tools(broker queue.Broker, wait time.Duration) *Tools {
	return New(broker, f.direct, wait, f.metrics, nil)
}

func (f *fixture) fallbacks(t *testing.T, task types.TaskName) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "complaint_tasks_caller_fallbacks_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "task" && l.GetValue() == string(task) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// flakyBroker fails the first n submissions
type flakyBroker struct {
	queue.Broker
	failures atomic.Int32
}

func (b *flakyBroker) Submit(ctx context.Context, name types.TaskName, payload any) (queue.Handle, error) {
	if b.failures.Add(-1) >= 0 {
		return nil, errors.New("broker connection reset")
	}
	return b.Broker.Submit(ctx, name, payload)
}

// lateBroker lets every task finish and then reports that the wait timed out
type lateBroker struct {
	queue.Broker
}

func (b lateBroker) Submit(ctx context.Context, name types.TaskName, payload any) (queue.Handle, error) {
	h, err := b.Broker.Submit(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return lateHandle{h}, nil
}

type lateHandle struct {
	queue.Handle
}

func (h lateHandle) Wait(ctx context.Context, timeout time.Duration, _ any) error {
	_ = h.Handle.Wait(ctx, 5*time.Second, nil)
	return queue.ErrWaitTimeout
}

func TestTools_ThroughQueue(t *testing.T) {
	t.Run("Should track an order through the task queue", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		msg := tools.TrackOrder(t.Context(), "ORD123")

		assert.Equal(t, "Order ORD123 is Shipped. Estimated delivery: 2025-07-20.", msg)
		assert.Zero(t, f.fallbacks(t, types.TaskGetOrderStatus))
	})

	t.Run("Should report an unknown order", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		assert.Equal(t, "Order ORD999 was not found.", tools.TrackOrder(t.Context(), "ORD999"))
	})

	t.Run("Should file a complaint once per order", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		first := tools.FileComplaint(t.Context(), "ORD456", "Still processing after two weeks")
		second := tools.FileComplaint(t.Context(), "ORD456", "Still processing after two weeks")

		assert.Contains(t, first, "has been submitted. Complaint ID:")
		assert.Contains(t, second, "A complaint for order ORD456 already exists")
		assert.Len(t, f.backend.Complaints(), 1)
	})

	t.Run("Should refuse a complaint for an unknown order", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		msg := tools.FileComplaint(t.Context(), "ORD999", "never arrived")

		assert.Equal(t, "Order ORD999 was not found, so no complaint was filed.", msg)
		assert.Empty(t, f.backend.Complaints())
	})

	t.Run("Should look up, detail and escalate a complaint", func(t *testing.T) {
		f := newFixture(t)
		f.backend.AddComplaint(types.Complaint{ID: "C-7", OrderID: "ORD141", Issue: "box crushed", EscalationStatus: types.NotEscalated})
		tools := f.tools(f.localBroker(t), 5*time.Second)

		assert.Equal(t, `Complaint C-7: "box crushed". Escalation status: Not Escalated.`,
			tools.CheckComplaintByOrder(t.Context(), "ORD141"))
		assert.Equal(t, `Complaint C-7: "box crushed". Escalation status: Not Escalated.`,
			tools.CheckComplaint(t.Context(), "C-7"))
		assert.Contains(t, tools.Escalate(t.Context(), "C-7"), "Complaint C-7 has been escalated. Escalation ID:")
		assert.Equal(t, `Complaint C-7 for order ORD141: "box crushed". Escalation status: Escalated.`,
			tools.ComplaintDetails(t.Context(), "C-7"))
	})

	t.Run("Should report missing complaints", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		assert.Equal(t, "No complaint found for order ORD123.", tools.CheckComplaintByOrder(t.Context(), "ORD123"))
		assert.Equal(t, "No complaint found with ID C-0.", tools.CheckComplaint(t.Context(), "C-0"))
		assert.Equal(t, "Complaint C-0 was not found.", tools.ComplaintDetails(t.Context(), "C-0"))
		assert.Equal(t, "Complaint C-0 was not found.", tools.Escalate(t.Context(), "C-0"))
	})

	t.Run("Should run the workflow for a lost package", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(f.localBroker(t), 5*time.Second)

		result, err := tools.RunWorkflow(t.Context(), "ORD123", "Package is lost")

		require.NoError(t, err)
		assert.True(t, result.Completed)
		require.Len(t, result.Steps, 3)
		assert.Equal(t, types.StepSuccess, result.Steps[2].Status)
		assert.Equal(t, types.Escalated, f.backend.Complaints()[0].EscalationStatus)
	})
}

func TestTools_Fallback(t *testing.T) {
	t.Run("Should call the backend directly when the broker is unreachable", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(queue.Unavailable(errors.New("dial tcp: connection refused")), time.Second)

		msg := tools.TrackOrder(t.Context(), "ORD123")

		assert.Equal(t, "Order ORD123 is Shipped. Estimated delivery: 2025-07-20.", msg)
		assert.Equal(t, 1.0, f.fallbacks(t, types.TaskGetOrderStatus))
	})

	t.Run("Should call the backend directly without a broker", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(nil, time.Second)

		assert.Contains(t, tools.FileComplaint(t.Context(), "ORD123", "wrong colour"), "has been submitted")
		assert.Equal(t, 1.0, f.fallbacks(t, types.TaskCreateComplaint))
	})

	t.Run("Should fall back when Redis goes away", func(t *testing.T) {
		f := newFixture(t)
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		broker := redisq.NewBroker(client, client, "tools-test", nil)
		t.Cleanup(func() { _ = broker.Close() })
		mr.Close()
		tools := f.tools(broker, time.Second)

		assert.Equal(t, "Order ORD456 is Processing. Estimated delivery: 2025-07-25.", tools.TrackOrder(t.Context(), "ORD456"))
	})

	t.Run("Should fall back when no worker answers in time", func(t *testing.T) {
		f := newFixture(t)
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		broker := redisq.NewBroker(client, client, "tools-test", nil)
		t.Cleanup(func() { _ = broker.Close() })
		tools := f.tools(broker, time.Second)

		msg := tools.Escalate(t.Context(), "C-0")

		assert.Equal(t, "Complaint C-0 was not found.", msg)
		assert.Equal(t, 1.0, f.fallbacks(t, types.TaskEscalateComplaint))
	})

	t.Run("Should decide per call", func(t *testing.T) {
		f := newFixture(t)
		broker := &flakyBroker{Broker: f.localBroker(t)}
		broker.failures.Store(1)
		tools := f.tools(broker, 5*time.Second)

		first := tools.TrackOrder(t.Context(), "ORD141")
		second := tools.TrackOrder(t.Context(), "ORD141")

		assert.Equal(t, first, second)
		assert.Equal(t, 1.0, f.fallbacks(t, types.TaskGetOrderStatus))
		assert.Equal(t, 2, f.backend.Calls(storetest.RouteGetOrder))
	})

	t.Run("Should run the workflow in process on fallback", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(queue.Unavailable(errors.New("down")), time.Second)

		msg := tools.ProcessComplaint(t.Context(), "ORD123", "Package is lost")

		assert.Contains(t, msg, "- check_order: success")
		assert.Contains(t, msg, "- create_complaint: success")
		assert.Contains(t, msg, "- auto_escalate: success")
		assert.Contains(t, msg, "Completed.")
	})

	t.Run("Should describe a stopped workflow", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(queue.Unavailable(errors.New("down")), time.Second)

		msg := tools.ProcessComplaint(t.Context(), "ORD999", "Package is lost")

		assert.Contains(t, msg, "- check_order: failed (Order not found)")
		assert.NotContains(t, msg, "create_complaint")
		assert.Contains(t, msg, "Stopped early.")
	})

	t.Run("Should explain a backend outage instead of failing", func(t *testing.T) {
		f := newFixture(t)
		f.backend.Close()
		tools := f.tools(queue.Unavailable(errors.New("down")), time.Second)

		assert.Equal(t, unavailableMsg, tools.TrackOrder(t.Context(), "ORD123"))
		assert.Equal(t, unavailableMsg, tools.FileComplaint(t.Context(), "ORD123", "lost"))
		assert.Equal(t, unavailableMsg, tools.Escalate(t.Context(), "C-1"))
	})
}

func TestTools_LateTask(t *testing.T) {
	t.Run("Should report a complaint filed by a task that outlived the wait", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(lateBroker{f.localBroker(t)}, 50*time.Millisecond)

		msg := tools.FileComplaint(t.Context(), "ORD456", "Still processing after two weeks")

		require.Len(t, f.backend.Complaints(), 1)
		assert.Equal(t, "Your complaint about order ORD456 has been submitted. Complaint ID: "+
			f.backend.Complaints()[0].ID+".", msg)
	})

	t.Run("Should only treat its own complaint id as stored", func(t *testing.T) {
		f := newFixture(t)
		f.backend.AddComplaint(types.Complaint{ID: "C-9", OrderID: "ORD456", Issue: "late", EscalationStatus: types.NotEscalated})
		tools := f.tools(nil, time.Second)

		assert.True(t, tools.stored(t.Context(), "C-9"))
		assert.False(t, tools.stored(t.Context(), "C-10"))
	})

	t.Run("Should complete the workflow run by a task that outlived the wait", func(t *testing.T) {
		f := newFixture(t)
		tools := f.tools(lateBroker{f.localBroker(t)}, 50*time.Millisecond)

		result, err := tools.RunWorkflow(t.Context(), "ORD123", "Package is lost")

		require.NoError(t, err)
		assert.True(t, result.Completed)
		step, _ := result.Step(types.StepCreateComplaint)
		assert.Equal(t, types.StepSuccess, step.Status)
		step, _ = result.Step(types.StepAutoEscalate)
		assert.Equal(t, "already escalated", step.Reason)
		assert.Len(t, f.backend.Complaints(), 1)
		assert.Len(t, f.backend.Escalations(), 1)
		assert.Equal(t, float64(1), f.fallbacks(t, types.TaskProcessComplaintWorkflow))
	})
}

func TestDescribeWorkflow(t *testing.T) {
	t.Run("Should list skipped steps with their reason", func(t *testing.T) {
		msg := DescribeWorkflow(types.WorkflowResult{
			OrderID:     "ORD123",
			ComplaintID: "C-1",
			Steps: []types.StepRecord{
				{Step: types.StepCheckOrder, Status: types.StepSuccess},
				{Step: types.StepCreateComplaint, Status: types.StepSuccess},
				{Step: types.StepAutoEscalate, Status: types.StepSkipped, Reason: "not critical"},
			},
			Completed: true,
		})

		assert.Equal(t, "Complaint workflow for order ORD123 (complaint C-1):\n"+
			"- check_order: success\n"+
			"- create_complaint: success\n"+
			"- auto_escalate: skipped (not critical)\n"+
			"Completed.", msg)
	})
}
