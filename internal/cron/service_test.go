package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type fakeLock struct {
	held    bool
	err     error
	release int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.release++
	return nil
}

type testJob struct {
	name  string
	err   error
	runs  int
	trace *[]string
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	if t.trace != nil {
		*t.trace = append(*t.trace, t.name)
	}
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsEveryJobInOrderEvenOnFailure(t *testing.T) {
	var trace []string
	first := &testJob{name: "loan-overdue", trace: &trace}
	failing := &testJob{name: "loan-due-soon", err: errors.New("boom"), trace: &trace}
	last := &testJob{name: "loan-fines", trace: &trace}
	lock := &fakeLock{}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, failing, last),
		Lock:     lock,
	})
	require.NoError(t, err)

	report, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, report.Skipped)
	require.Equal(t, []string{"loan-overdue", "loan-due-soon", "loan-fines"}, trace)
	require.Len(t, report.Jobs, 3)
	require.Empty(t, report.Jobs[0].Error)
	require.Equal(t, "boom", report.Jobs[1].Error)
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 1, lock.release)
	require.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "loan-overdue"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	require.NoError(t, err)

	report, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Zero(t, job.runs)
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Lock:   &fakeLock{err: errors.New("redis down")},
	})
	require.NoError(t, err)

	_, err = service.RunOnce(context.Background())
	require.ErrorContains(t, err, "redis down")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	job := &testJob{name: "loan-overdue"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     NewLocalLock(),
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, service.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: NewLocalLock()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

func TestLocalLockIsExclusive(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lock.Release(ctx))
	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
