package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/techloans-backend/internal/fines"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

const fineBatchSize = 500

type FineJobParams struct {
	Logger   *logger.Logger
	Fines    fineApplier
	Settings snapshotReader
	Metrics  *metrics.SweepMetrics
}

type fineApplier interface {
	ListUnfinedOverdue(ctx context.Context, limit int) ([]uuid.UUID, error)
	Calculate(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*fines.FineDTO, error)
}

// NewFineJob fines overdue, unreturned loans that carry no live fine.
func NewFineJob(params FineJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Fines == nil:
		return nil, fmt.Errorf("fine service required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	}
	return &fineJob{
		logg:     params.Logger,
		fines:    params.Fines,
		settings: params.Settings,
		metrics:  params.Metrics,
	}, nil
}

type fineJob struct {
	logg     *logger.Logger
	fines    fineApplier
	settings snapshotReader
	metrics  *metrics.SweepMetrics
}

func (j *fineJob) Name() string { return "loan-fines" }

func (j *fineJob) Run(ctx context.Context) error {
	snap, err := j.settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !snap.FinesEnabled {
		j.logg.Info(ctx, "fines disabled; skipping")
		return nil
	}
	ids, err := j.fines.ListUnfinedOverdue(ctx, fineBatchSize)
	if err != nil {
		return fmt.Errorf("list unfined loans: %w", err)
	}

	var (
		errs                 error
		applied, skip, fails int
	)
	system := auth.Actor{}
	for _, loanID := range ids {
		_, err := j.fines.Calculate(ctx, system, loanID)
		switch {
		case err == nil:
			applied++
		case pkgerrors.HasReason(err, pkgerrors.CodeConflict, pkgerrors.ReasonAlreadyFined),
			pkgerrors.HasReason(err, pkgerrors.CodeInvalidState, pkgerrors.ReasonNotOverdue):
			// a return or a manual fine won the race
			skip++
		default:
			fails++
			j.logg.Error(j.logg.WithLoanID(ctx, loanID.String()), "fine calculation failed", err)
			errs = multierr.Append(errs, fmt.Errorf("loan %s: %w", loanID, err))
		}
	}
	j.metrics.Add(j.Name(), metrics.OutcomeProcessed, applied)
	j.metrics.Add(j.Name(), metrics.OutcomeSkipped, skip)
	j.metrics.Add(j.Name(), metrics.OutcomeFailed, fails)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"applied":    applied,
		"skipped":    skip,
		"failed":     fails,
	}), "fine sweep complete")
	return errs
}
