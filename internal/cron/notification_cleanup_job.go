package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

const defaultNotificationRetentionDays = 30

type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Notifications readNotificationPurger
	Metrics       *metrics.SweepMetrics
	RetentionDays int
}

type readNotificationPurger interface {
	DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob purges notifications that were read and are
// older than the retention window. Unread notifications are kept.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Notifications == nil:
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultNotificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Notifications,
		metrics:   params.Metrics,
		retention: retention,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      readNotificationPurger
	metrics   *metrics.SweepMetrics
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.repo.DeleteReadOlderThan(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("purge read notifications: %w", err)
	}
	j.metrics.Add(j.Name(), metrics.OutcomeProcessed, int(deleted))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "read notifications purged")
	return nil
}
