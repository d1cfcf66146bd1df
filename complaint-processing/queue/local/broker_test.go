package local

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/types"
)

func echo() queue.Runner {
	return queue.RunnerFunc(func(_ context.Context, _ types.TaskName, payload []byte) ([]byte, error) {
		return payload, nil
	})
}

func TestBroker_Submit(t *testing.T) {
	t.Run("Should deliver the task result to Wait", func(t *testing.T) {
		b := New(echo(), Options{Concurrency: 2}, nil)
		defer b.Close()

		h, err := b.Submit(t.Context(), types.TaskGetOrderStatus, types.OrderArgs{OrderID: "ORD123"})
		require.NoError(t, err)

		var out types.OrderArgs
		require.NoError(t, h.Wait(t.Context(), time.Second, &out))
		assert.Equal(t, "ORD123", out.OrderID)
		assert.NotEmpty(t, h.ID())
		assert.Equal(t, types.TaskGetOrderStatus, h.Task())
	})

	t.Run("Should give every submission a distinct id", func(t *testing.T) {
		b := New(echo(), Options{Concurrency: 1}, nil)
		defer b.Close()

		h1, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)
		require.NoError(t, err)
		h2, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)
		require.NoError(t, err)

		assert.NotEqual(t, h1.ID(), h2.ID())
	})

	t.Run("Should reject unknown tasks", func(t *testing.T) {
		b := New(echo(), Options{}, nil)
		defer b.Close()

		_, err := b.Submit(t.Context(), types.TaskName("tasks.unknown"), nil)

		assert.ErrorIs(t, err, types.ErrUnknownTask)
	})

	t.Run("Should reject submissions after Close", func(t *testing.T) {
		b := New(echo(), Options{}, nil)
		require.NoError(t, b.Close())

		_, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)

		assert.ErrorIs(t, err, queue.ErrClosed)
	})
}

func TestHandle_Wait(t *testing.T) {
	t.Run("Should report a task failure as TaskError", func(t *testing.T) {
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			return nil, errors.New("backend down")
		}), Options{}, nil)
		defer b.Close()

		h, err := b.Submit(t.Context(), types.TaskEscalateComplaint, types.ComplaintArgs{ComplaintID: "C-1"})
		require.NoError(t, err)

		err = h.Wait(t.Context(), time.Second, nil)
		var taskErr *queue.TaskError
		require.ErrorAs(t, err, &taskErr)
		assert.Equal(t, "backend down", taskErr.Message)
		assert.Equal(t, h.ID(), taskErr.TaskID)
	})

	t.Run("Should time out without cancelling the task", func(t *testing.T) {
		release := make(chan struct{})
		var finished atomic.Bool
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			<-release
			finished.Store(true)
			return json.Marshal("done")
		}), Options{}, nil)
		defer b.Close()

		h, err := b.Submit(t.Context(), types.TaskSendNotification, nil)
		require.NoError(t, err)

		err = h.Wait(t.Context(), 20*time.Millisecond, nil)
		require.ErrorIs(t, err, queue.ErrWaitTimeout)

		close(release)
		var out string
		require.NoError(t, h.Wait(t.Context(), time.Second, &out))
		assert.Equal(t, "done", out)
		assert.True(t, finished.Load())
	})

	t.Run("Should return the caller's context error", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			<-block
			return nil, nil
		}), Options{}, nil)

		h, err := b.Submit(t.Context(), types.TaskSendNotification, nil)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		assert.ErrorIs(t, h.Wait(ctx, time.Second, nil), context.Canceled)
	})
}

func TestBroker_Limits(t *testing.T) {
	t.Run("Should never run more tasks than the concurrency", func(t *testing.T) {
		var running, peak atomic.Int32
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		}), Options{Concurrency: 2}, nil)

		var handles []queue.Handle
		for range 8 {
			h, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)
			require.NoError(t, err)
			handles = append(handles, h)
		}
		var wg sync.WaitGroup
		for _, h := range handles {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, h.Wait(t.Context(), 5*time.Second, nil))
			}()
		}
		wg.Wait()
		require.NoError(t, b.Close())

		assert.LessOrEqual(t, peak.Load(), int32(2))
		assert.Positive(t, peak.Load())
	})

	t.Run("Should fail a task that exceeds the time limit", func(t *testing.T) {
		b := New(queue.RunnerFunc(func(ctx context.Context, _ types.TaskName, _ []byte) ([]byte, error) {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return nil, nil
		}), Options{TimeLimit: 20 * time.Millisecond}, nil)
		defer b.Close()

		h, err := b.Submit(t.Context(), types.TaskGenerateDailyReport, nil)
		require.NoError(t, err)

		var taskErr *queue.TaskError
		require.ErrorAs(t, h.Wait(t.Context(), time.Second, nil), &taskErr)
		assert.Contains(t, taskErr.Message, "time limit")
	})

	t.Run("Should keep the slot of a task that ignores its time limit", func(t *testing.T) {
		var running, peak atomic.Int32
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		}), Options{Concurrency: 1, TimeLimit: 20 * time.Millisecond}, nil)

		first, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)
		require.NoError(t, err)
		second, err := b.Submit(t.Context(), types.TaskGetOrderStatus, nil)
		require.NoError(t, err)

		var taskErr *queue.TaskError
		require.ErrorAs(t, first.Wait(t.Context(), time.Second, nil), &taskErr)
		require.ErrorAs(t, second.Wait(t.Context(), time.Second, nil), &taskErr)
		require.NoError(t, b.Close())

		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("Should turn a panic into a task failure", func(t *testing.T) {
		b := New(queue.RunnerFunc(func(context.Context, types.TaskName, []byte) ([]byte, error) {
			panic("boom")
		}), Options{}, nil)
		defer b.Close()

		h, err := b.Submit(t.Context(), types.TaskGenerateDailyReport, nil)
		require.NoError(t, err)

		var taskErr *queue.TaskError
		require.ErrorAs(t, h.Wait(t.Context(), time.Second, nil), &taskErr)
		assert.Contains(t, taskErr.Message, "panicked")
	})
}
