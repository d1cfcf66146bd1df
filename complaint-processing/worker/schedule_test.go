package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/queue/local"
	"go-complaint-tasks/complaint-processing/types"
)

type recordingRunner struct {
	mu    sync.Mutex
	names []types.TaskName
}

func (r *recordingRunner) Run(_ context.Context, name types.TaskName, _ []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return []byte(`{}`), nil
}

func TestScheduleReports(t *testing.T) {
	logg := logger.NewLogger(logger.TestConfig())

	t.Run("Should be disabled by an empty schedule", func(t *testing.T) {
		c, err := scheduleReports("", queue.Unavailable(nil), logg)

		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("Should reject an invalid schedule", func(t *testing.T) {
		_, err := scheduleReports("every tuesday", queue.Unavailable(nil), logg)

		assert.ErrorContains(t, err, "invalid report schedule")
	})

	t.Run("Should register one entry for a descriptor", func(t *testing.T) {
		c, err := scheduleReports("@daily", queue.Unavailable(nil), logg)
		require.NoError(t, err)
		defer c.Stop()

		assert.Len(t, c.Entries(), 1)
	})
}

func TestSubmitReport(t *testing.T) {
	t.Run("Should submit generate_daily_report", func(t *testing.T) {
		runner := &recordingRunner{}
		b := local.New(runner, local.Options{}, nil)

		submitReport(b, logger.NewLogger(logger.TestConfig()))
		require.NoError(t, b.Close())

		assert.Equal(t, []types.TaskName{types.TaskGenerateDailyReport}, runner.names)
	})
}
