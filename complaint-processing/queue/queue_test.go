package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-complaint-tasks/complaint-processing/types"
)

func TestNewEnvelope(t *testing.T) {
	t.Run("Should encode typed payloads", func(t *testing.T) {
		env, err := NewEnvelope("id-1", types.TaskGetOrderStatus, types.OrderArgs{OrderID: "ORD123"})

		require.NoError(t, err)
		assert.JSONEq(t, `{"order_id":"ORD123"}`, string(env.Payload))
		assert.False(t, env.SubmittedAt.IsZero())
	})

	t.Run("Should accept raw JSON and a nil payload", func(t *testing.T) {
		raw, err := NewEnvelope("id-2", types.TaskGenerateDailyReport, []byte(`{"a":1}`))
		require.NoError(t, err)
		empty, err := NewEnvelope("id-3", types.TaskGenerateDailyReport, nil)
		require.NoError(t, err)

		assert.JSONEq(t, `{"a":1}`, string(raw.Payload))
		assert.JSONEq(t, `{}`, string(empty.Payload))
	})

	t.Run("Should reject invalid input", func(t *testing.T) {
		_, err := NewEnvelope("id-4", types.TaskName("bogus"), nil)
		assert.ErrorIs(t, err, types.ErrUnknownTask)

		_, err = NewEnvelope("id-5", types.TaskGetOrderStatus, []byte(`{`))
		assert.Error(t, err)
	})
}

func TestResult_Decode(t *testing.T) {
	env := Envelope{ID: "id-1", Task: types.TaskGetOrderStatus}

	t.Run("Should decode a successful value", func(t *testing.T) {
		value, _ := json.Marshal(map[string]string{"status": "Shipped"})
		r := NewResult(env, value, nil)

		var out map[string]string
		require.NoError(t, r.Decode(&out))
		assert.Equal(t, "Shipped", out["status"])
		assert.NoError(t, r.Decode(nil))
	})

	t.Run("Should surface a failure as TaskError", func(t *testing.T) {
		r := NewResult(env, nil, errors.New("gateway timeout"))

		err := r.Decode(nil)
		var taskErr *TaskError
		require.ErrorAs(t, err, &taskErr)
		assert.Equal(t, "id-1", taskErr.TaskID)
		assert.Equal(t, "gateway timeout", taskErr.Message)
		assert.Contains(t, err.Error(), "get_order_status")
	})
}

func TestUnavailable(t *testing.T) {
	t.Run("Should reject every submission", func(t *testing.T) {
		down := errors.New("redis: connection refused")
		b := Unavailable(down)

		_, err := b.Submit(context.Background(), types.TaskGetOrderStatus, nil)

		assert.ErrorIs(t, err, down)
		assert.NoError(t, b.Close())
	})
}
