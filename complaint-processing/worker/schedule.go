package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/queue"
	"go-complaint-tasks/complaint-processing/types"
)

// scheduleReports submits generate_daily_report on schedule. An empty schedule
// disables the schedule.
func scheduleReports(schedule string, broker queue.Broker, logg logger.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New(cron.WithLogger(cronLogger{logg}))
	if _, err := c.AddFunc(schedule, func() { submitReport(broker, logg) }); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	c.Start()
	logg.Info("Daily report scheduled", "schedule", schedule)
	return c, nil
}

func submitReport(broker queue.Broker, logg logger.Logger) {
	h, err := broker.Submit(context.Background(), types.TaskGenerateDailyReport, types.ReportArgs{})
	if err != nil {
		logg.Error("Failed to submit daily report", "error", err)
		return
	}
	logg.Info("Daily report submitted", "taskID", h.ID())
}

// cronLogger routes cron's own logging through the worker logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
