package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

const (
	defaultOutboxRetentionDays = 14
	defaultOutboxDeadAttempts  = 10
)

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Outbox        outboxPurger
	Metrics       *metrics.SweepMetrics
	RetentionDays int
	DeadAttempts  int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob trims delivered domain events, and undeliverable
// ones that exhausted their attempts, once they age past the window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultOutboxRetentionDays
	}
	dead := params.DeadAttempts
	if dead <= 0 {
		dead = defaultOutboxDeadAttempts
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Outbox,
		metrics:   params.Metrics,
		retention: retention,
		dead:      dead,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPurger
	metrics   *metrics.SweepMetrics
	retention int
	dead      int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.dead)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.metrics.Add(j.Name(), metrics.OutcomeProcessed, int(deleted))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"dead_attempts":  j.dead,
		"rows_deleted":   deleted,
	}), "outbox retention complete")
	return nil
}
