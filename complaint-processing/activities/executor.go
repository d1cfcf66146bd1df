package activities

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/metrics"
	"go-complaint-tasks/complaint-processing/store"
	"go-complaint-tasks/complaint-processing/types"
)

// RetryPolicy is a bounded, fixed-delay retry policy
type RetryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRetryPolicy makes 3 attempts, 5s apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, RetryDelay: 5 * time.Second}
}

// Executor runs backend operations under a RetryPolicy.
//
// Business outcomes (ok, not found, already exists) return after one attempt.
// Transient failures are retried until MaxRetries attempts were made and then
// surface as *types.TerminalError. Retries reuse the same identifiers, so a
// create retried after a lost response comes back as already exists.
type Executor struct {
	ops     store.Operations
	policy  RetryPolicy
	metrics *metrics.Metrics
}

var _ store.Operations = (*Executor)(nil)

func NewExecutor(ops store.Operations, policy RetryPolicy, m *metrics.Metrics) *Executor {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	// go-retry rejects a non-positive constant backoff
	if policy.RetryDelay <= 0 {
		policy.RetryDelay = time.Nanosecond
	}
	return &Executor{ops: ops, policy: policy, metrics: m}
}

func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

func (e *Executor) GetOrder(ctx context.Context, orderID string) (types.Outcome, error) {
	return e.run(ctx, store.OpGetOrder, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.GetOrder(ctx, orderID)
	}, "orderID", orderID)
}

func (e *Executor) GetComplaint(ctx context.Context, complaintID string) (types.Outcome, error) {
	return e.run(ctx, store.OpGetComplaint, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.GetComplaint(ctx, complaintID)
	}, "complaintID", complaintID)
}

func (e *Executor) CreateComplaint(ctx context.Context, complaintID, orderID, issue string) (types.Outcome, error) {
	return e.run(ctx, store.OpCreateComplaint, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.CreateComplaint(ctx, complaintID, orderID, issue)
	}, "complaintID", complaintID, "orderID", orderID)
}

func (e *Executor) CheckComplaintByID(ctx context.Context, complaintID string) (types.Outcome, error) {
	return e.run(ctx, store.OpCheckComplaintByID, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.CheckComplaintByID(ctx, complaintID)
	}, "complaintID", complaintID)
}

func (e *Executor) CheckComplaintByOrder(ctx context.Context, orderID string) (types.Outcome, error) {
	return e.run(ctx, store.OpCheckComplaintByOrder, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.CheckComplaintByOrder(ctx, orderID)
	}, "orderID", orderID)
}

func (e *Executor) EscalateComplaint(ctx context.Context, complaintID string) (types.Outcome, error) {
	return e.run(ctx, store.OpEscalateComplaint, func(ctx context.Context) (types.Outcome, error) {
		return e.ops.EscalateComplaint(ctx, complaintID)
	}, "complaintID", complaintID)
}

func (e *Executor) run(
	ctx context.Context,
	op string,
	call func(context.Context) (types.Outcome, error),
	keyvals ...any,
) (types.Outcome, error) {
	log := logger.FromContext(ctx).With(append([]any{"op", op}, keyvals...)...)
	backoff := retry.WithMaxRetries(uint64(e.policy.MaxRetries-1), retry.NewConstant(e.policy.RetryDelay))

	var (
		out      types.Outcome
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := call(ctx)
		if err == nil {
			e.metrics.Attempt(op, string(res.Kind))
			out = res
			return nil
		}
		if !types.IsTransient(err) {
			e.metrics.Attempt(op, "error")
			log.Warn("Attempt failed", "attempt", attempts, "error", err)
			return err
		}
		e.metrics.Attempt(op, "transient")
		log.Warn("Attempt failed", "attempt", attempts, "maxRetries", e.policy.MaxRetries, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		if !types.IsTransient(err) && ctx.Err() == nil {
			return types.Outcome{}, err
		}
		log.Error("All attempts failed", "attempts", attempts)
		return types.Outcome{}, &types.TerminalError{Op: op, Attempts: attempts, Err: err}
	}

	switch out.Kind {
	case types.OutcomeNotFound:
		log.Warn("Resource not found", "status", out.StatusCode)
	case types.OutcomeAlreadyExists:
		log.Warn("Resource already exists", "status", out.StatusCode)
	default:
		log.Info("Backend call succeeded", "attempts", attempts)
	}
	return out, nil
}
