package activities

import (
	"context"
	"fmt"
	"time"

	"go-complaint-tasks/complaint-processing/logger"
	"go-complaint-tasks/complaint-processing/types"
)

// NotificationActivities contains notification and reporting tasks
type NotificationActivities struct {
	delay time.Duration
	tally *Tally
	now   func() time.Time
}

func NewNotificationActivities(delay time.Duration, tally *Tally) *NotificationActivities {
	return &NotificationActivities{delay: delay, tally: tally, now: time.Now}
}

// SendNotification delivers an email or SMS notification. Delivery is
// simulated and takes the configured delay.
func (a *NotificationActivities) SendNotification(ctx context.Context, args types.NotificationArgs) (types.Notification, error) {
	log := logger.FromContext(ctx)
	log.Info("Sending notification", "recipient", args.Recipient, "type", args.MessageType)

	if err := sleep(ctx, a.delay); err != nil {
		return types.Notification{}, err
	}

	log.Info("Notification sent", "recipient", args.Recipient)
	return types.Notification{
		Recipient:   args.Recipient,
		MessageType: args.MessageType,
		Data:        args.Data,
		SentAt:      a.now().UTC().Format(time.RFC3339),
		Status:      "sent",
		Message:     fmt.Sprintf("%s notification sent successfully", args.MessageType),
	}, nil
}

// GenerateDailyReport summarises complaint activity seen by this worker since
// the previous report
func (a *NotificationActivities) GenerateDailyReport(ctx context.Context, _ types.ReportArgs) (types.DailyReport, error) {
	log := logger.FromContext(ctx)
	log.Info("Generating daily report")

	now := a.now().UTC()
	summary := a.tally.Snapshot()

	log.Info("Daily report generated",
		"total", summary.TotalComplaints,
		"escalated", summary.EscalatedComplaints,
	)
	return types.DailyReport{
		Date:        now.Format(time.DateOnly),
		GeneratedAt: now.Format(time.RFC3339),
		Summary:     summary,
		Status:      "generated",
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
