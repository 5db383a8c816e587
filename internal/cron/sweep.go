package cron

import (
	"time"

	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

// SweepParams gathers the collaborators of the lifecycle sweep.
type SweepParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Loans         overdueMarker
	LoanReader    reminderLoanLister
	Settings      snapshotReader
	Notifications dailyNotifier
	Fines         fineApplier
	Purger        readNotificationPurger
	Outbox        outboxPurger
	Metrics       *metrics.SweepMetrics
	Location      *time.Location

	NotificationRetentionDays int
	OutboxRetentionDays       int
	OutboxDeadAttempts        int
}

// NewSweepRegistry registers the sweep steps in their required order:
// overdue flip, due-soon reminders, overdue notices, fines, then
// housekeeping. Housekeeping steps are added only when their repository is
// provided.
func NewSweepRegistry(params SweepParams) (*Registry, error) {
	overdue, err := NewOverdueJob(OverdueJobParams{
		Logger:  params.Logger,
		Loans:   params.Loans,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	reminders := ReminderJobParams{
		Logger:        params.Logger,
		DB:            params.DB,
		Loans:         params.LoanReader,
		Settings:      params.Settings,
		Notifications: params.Notifications,
		Metrics:       params.Metrics,
		Location:      params.Location,
	}
	dueSoon, err := NewDueSoonJob(reminders)
	if err != nil {
		return nil, err
	}
	notices, err := NewOverdueNoticeJob(reminders)
	if err != nil {
		return nil, err
	}
	fineJob, err := NewFineJob(FineJobParams{
		Logger:   params.Logger,
		Fines:    params.Fines,
		Settings: params.Settings,
		Metrics:  params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	registry := NewRegistry(overdue, dueSoon, notices, fineJob)

	if params.Purger != nil {
		cleanup, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
			Logger:        params.Logger,
			DB:            params.DB,
			Notifications: params.Purger,
			Metrics:       params.Metrics,
			RetentionDays: params.NotificationRetentionDays,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(cleanup)
	}
	if params.Outbox != nil {
		retention, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
			Logger:        params.Logger,
			DB:            params.DB,
			Outbox:        params.Outbox,
			Metrics:       params.Metrics,
			RetentionDays: params.OutboxRetentionDays,
			DeadAttempts:  params.OutboxDeadAttempts,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(retention)
	}
	return registry, nil
}
