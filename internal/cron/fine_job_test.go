package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/internal/fines"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
)

type fakeFines struct {
	listFn      func(ctx context.Context, limit int) ([]uuid.UUID, error)
	calculateFn func(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*fines.FineDTO, error)
}

func (f fakeFines) ListUnfinedOverdue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return f.listFn(ctx, limit)
}

func (f fakeFines) Calculate(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*fines.FineDTO, error) {
	return f.calculateFn(ctx, actor, loanID)
}

type fakeSnapshot struct {
	snap settings.Snapshot
	err  error
}

func (f fakeSnapshot) Current(context.Context) (settings.Snapshot, error) {
	return f.snap, f.err
}

func TestFineJobIsolatesPerLoanFailures(t *testing.T) {
	ok, raced, broken, last := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	var seen []uuid.UUID
	job, err := NewFineJob(FineJobParams{
		Logger:   testLogger(),
		Settings: fakeSnapshot{snap: settings.Snapshot{FinesEnabled: true}},
		Fines: fakeFines{
			listFn: func(ctx context.Context, limit int) ([]uuid.UUID, error) {
				require.Equal(t, fineBatchSize, limit)
				return []uuid.UUID{ok, raced, broken, last}, nil
			},
			calculateFn: func(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*fines.FineDTO, error) {
				require.True(t, actor.IsSystem())
				seen = append(seen, loanID)
				switch loanID {
				case raced:
					return nil, pkgerrors.New(pkgerrors.CodeConflict, "loan already has a fine").WithReason(pkgerrors.ReasonAlreadyFined)
				case broken:
					return nil, errors.New("db gone")
				}
				return &fines.FineDTO{LoanID: loanID}, nil
			},
		},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.ErrorContains(t, err, "db gone")
	require.ErrorContains(t, err, broken.String())
	require.NotContains(t, err.Error(), raced.String())
	require.Equal(t, []uuid.UUID{ok, raced, broken, last}, seen)
}

func TestFineJobSkipsWhenDisabled(t *testing.T) {
	job, err := NewFineJob(FineJobParams{
		Logger:   testLogger(),
		Settings: fakeSnapshot{snap: settings.Snapshot{FinesEnabled: false}},
		Fines: fakeFines{
			listFn: func(context.Context, int) ([]uuid.UUID, error) {
				t.Fatal("must not list loans while fines are disabled")
				return nil, nil
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
}

type fakeOverdueMarker struct {
	flipped int
	err     error
}

func (f fakeOverdueMarker) MarkOverdueSweep(context.Context) (int, error) {
	return f.flipped, f.err
}

func TestOverdueJob(t *testing.T) {
	job, err := NewOverdueJob(OverdueJobParams{Logger: testLogger(), Loans: fakeOverdueMarker{flipped: 3}})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	job, err = NewOverdueJob(OverdueJobParams{Logger: testLogger(), Loans: fakeOverdueMarker{err: errors.New("locked")}})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "locked")

	_, err = NewOverdueJob(OverdueJobParams{Logger: testLogger()})
	require.Error(t, err)
}
