package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

func TestNotificationCleanupJobPurgesOnlyOldReadRows(t *testing.T) {
	conn := dbtest.Open(t, &models.Notification{})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	seed := func(createdAt time.Time, readAt *time.Time) uuid.UUID {
		n := &models.Notification{
			UserID:    userID,
			Type:      enums.NotificationTypeLoanOverdue,
			Title:     "Loan overdue",
			Message:   "late",
			ReadAt:    readAt,
			CreatedAt: createdAt,
		}
		require.NoError(t, conn.Create(n).Error)
		return n.ID
	}
	old := now.AddDate(0, 0, -45)
	oldRead := seed(old, &old)
	oldUnread := seed(old, nil)
	recent := now.AddDate(0, 0, -2)
	recentRead := seed(recent, &recent)

	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        testLogger(),
		DB:            db.NewFromConn(conn),
		Notifications: notifications.NewRepository(conn),
	})
	require.NoError(t, err)
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.Notification{}).Order("created_at ASC").Pluck("id", &remaining).Error)
	require.ElementsMatch(t, []uuid.UUID{oldUnread, recentRead}, remaining)
	require.NotContains(t, remaining, oldRead)
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        testLogger(),
		DB:            passthroughTx{},
		Notifications: failingPurger{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.ErrorContains(t, jobIface.Run(context.Background()), "boom")
}

type failingPurger struct {
	err error
}

func (f failingPurger) DeleteReadOlderThan(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, f.err
}

func (f failingPurger) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
