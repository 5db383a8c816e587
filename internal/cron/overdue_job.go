package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

type OverdueJobParams struct {
	Logger  *logger.Logger
	Loans   overdueMarker
	Metrics *metrics.SweepMetrics
}

type overdueMarker interface {
	MarkOverdueSweep(ctx context.Context) (int, error)
}

// NewOverdueJob flips active loans past their due date to overdue.
func NewOverdueJob(params OverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loan service required")
	}
	return &overdueJob{logg: params.Logger, loans: params.Loans, metrics: params.Metrics}, nil
}

type overdueJob struct {
	logg    *logger.Logger
	loans   overdueMarker
	metrics *metrics.SweepMetrics
}

func (j *overdueJob) Name() string { return "loan-overdue" }

func (j *overdueJob) Run(ctx context.Context) error {
	flipped, err := j.loans.MarkOverdueSweep(ctx)
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}
	j.metrics.Add(j.Name(), metrics.OutcomeProcessed, flipped)
	j.logg.Info(j.logg.WithField(ctx, "loans_flipped", flipped), "overdue sweep complete")
	return nil
}
