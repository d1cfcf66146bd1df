package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-complaint-tasks/complaint-processing/store/storetest"
	"go-complaint-tasks/complaint-processing/types"
)

// execute runs the CLI against an in-memory broker and a fake backend
func execute(t *testing.T, backend *storetest.Backend, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Setenv("API_BASE_URL", backend.URL())
	t.Setenv("TASKS_BROKER_URL", "memory://")
	t.Setenv("TASKS_RETRY_DELAY", "1ms")
	t.Setenv("NOTIFY_DELAY", "0s")
	t.Setenv("LOG_LEVEL", "disabled")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Run("Should track an order", func(t *testing.T) {
		out, err := execute(t, storetest.New(t), "track", "ORD123")
		require.NoError(t, err)
		assert.Contains(t, out, "Order ORD123 is Shipped. Estimated delivery: 2025-07-20.")
	})

	t.Run("Should file a complaint and find it by order", func(t *testing.T) {
		backend := storetest.New(t)

		out, err := execute(t, backend, "complain", "ORD456", "item", "is", "missing")
		require.NoError(t, err)
		assert.Contains(t, out, "Your complaint about order ORD456 has been submitted.")
		require.Len(t, backend.Complaints(), 1)
		assert.Equal(t, "item is missing", backend.Complaints()[0].Issue)

		out, err = execute(t, backend, "status", "--order", "ORD456")
		require.NoError(t, err)
		assert.Contains(t, out, backend.Complaints()[0].ID)
	})

	t.Run("Should run the workflow and escalate a critical complaint", func(t *testing.T) {
		backend := storetest.New(t)

		out, err := execute(t, backend, "workflow", "ORD123", "Package", "is", "lost")
		require.NoError(t, err)
		assert.Contains(t, out, "auto_escalate: success")
		assert.Len(t, backend.Escalations(), 1)
	})

	t.Run("Should print batch results as JSON", func(t *testing.T) {
		out, err := execute(t, storetest.New(t), "batch", "ORD123", "ORD999")
		require.NoError(t, err)
		assert.Contains(t, out, `"total": 2`)
		assert.Contains(t, out, `"Order not found"`)
	})

	t.Run("Should submit a raw payload", func(t *testing.T) {
		out, err := execute(t, storetest.New(t), "submit", "get_order_status", `{"order_id":"ORD141"}`)
		require.NoError(t, err)
		assert.Contains(t, out, "Submitted get_order_status")
		assert.Contains(t, out, "Delivered")
	})

	t.Run("Should send a notification with data fields", func(t *testing.T) {
		out, err := execute(t, storetest.New(t), "notify", "a@example.com", "email", "--data", "order_id=ORD123")
		require.NoError(t, err)
		assert.Contains(t, out, `"status": "sent"`)
	})

	t.Run("Should reject an unknown task before connecting", func(t *testing.T) {
		_, err := execute(t, storetest.New(t), "submit", "reboot_server")
		require.ErrorIs(t, err, types.ErrUnknownTask)
	})

	t.Run("Should reject a payload that is not JSON", func(t *testing.T) {
		_, err := execute(t, storetest.New(t), "submit", "get_order_status", "{order")
		require.Error(t, err)
	})

	t.Run("Should reject malformed notification data", func(t *testing.T) {
		_, err := execute(t, storetest.New(t), "notify", "a@example.com", "sms", "--data", "nokey")
		require.ErrorContains(t, err, "want key=value")
	})
}

func TestIsMemory(t *testing.T) {
	t.Run("Should match only the memory scheme", func(t *testing.T) {
		assert.True(t, isMemory("memory://"))
		assert.False(t, isMemory("redis://localhost:6379/0"))
		assert.False(t, isMemory("temporal://localhost:7233"))
	})
}
