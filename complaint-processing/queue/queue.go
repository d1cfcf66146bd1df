// Package queue defines the task broker contract shared by the in-process,
// Redis and Temporal backends.
//
// A task is a name plus a JSON payload. Submit never blocks on execution and
// returns a Handle whose Wait blocks up to a timeout for the result. A wait
// timeout does not cancel the task; it may still complete later.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-complaint-tasks/complaint-processing/types"
)

var (
	// ErrWaitTimeout means the result was not ready in time. It is distinct
	// from a task failure.
	ErrWaitTimeout = errors.New("timed out waiting for task result")
	// ErrClosed is returned by Submit after Close
	ErrClosed = errors.New("broker closed")
)

// TaskError is a terminal task failure reported through the result store
type TaskError struct {
	TaskID  string
	Task    types.TaskName
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %s", e.Task, e.TaskID, e.Message)
}

// Broker submits tasks for asynchronous execution
type Broker interface {
	Submit(ctx context.Context, name types.TaskName, payload any) (Handle, error)
	Close() error
}

// Handle is the caller's view of one submitted task
type Handle interface {
	ID() string
	Task() types.TaskName
	// Wait blocks until the task finished or timeout elapsed and decodes a
	// successful result into out. out may be nil.
	Wait(ctx context.Context, timeout time.Duration, out any) error
}

// Runner executes a task on a worker
type Runner interface {
	Run(ctx context.Context, name types.TaskName, payload []byte) ([]byte, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, name types.TaskName, payload []byte) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, name types.TaskName, payload []byte) ([]byte, error) {
	return f(ctx, name, payload)
}

// Envelope is a task message as it travels through a broker
type Envelope struct {
	ID          string          `json:"id"`
	Task        types.TaskName  `json:"task"`
	Payload     json.RawMessage `json:"payload"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Status is the final state of a task
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is a stored task outcome
type Result struct {
	ID         string          `json:"id"`
	Task       types.TaskName  `json:"task"`
	Status     Status          `json:"status"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// NewResult builds the result of running env, capturing err as a failure
func NewResult(env Envelope, value []byte, err error) Result {
	r := Result{ID: env.ID, Task: env.Task, FinishedAt: time.Now().UTC()}
	if err != nil {
		r.Status = StatusFailure
		r.Error = err.Error()
		return r
	}
	r.Status = StatusSuccess
	r.Value = value
	return r
}

// Decode returns the task failure as *TaskError or unmarshals the value into out
func (r Result) Decode(out any) error {
	if r.Status != StatusSuccess {
		return &TaskError{TaskID: r.ID, Task: r.Task, Message: r.Error}
	}
	if out == nil || len(r.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Value, out); err != nil {
		return fmt.Errorf("decode %s result: %w", r.Task, err)
	}
	return nil
}

// NewEnvelope validates name and encodes payload into a fresh envelope
func NewEnvelope(id string, name types.TaskName, payload any) (Envelope, error) {
	if !name.Valid() {
		return Envelope{}, fmt.Errorf("%w: %s", types.ErrUnknownTask, name)
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Envelope{ID: id, Task: name, Payload: raw, SubmittedAt: time.Now().UTC()}, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}

// Unavailable is a broker that rejects every submission with err. It stands
// in when the real broker cannot be reached at startup.
func Unavailable(err error) Broker {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Submit(context.Context, types.TaskName, any) (Handle, error) {
	return nil, u.err
}

func (u unavailable) Close() error { return nil }
