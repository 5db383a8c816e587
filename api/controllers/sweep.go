package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/internal/cron"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type sweepRunner interface {
	RunOnce(ctx context.Context) (*cron.RunReport, error)
}

// AdminSweep runs the maintenance sweep synchronously and reports each job.
func AdminSweep(runner sweepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sweep"))
			return
		}
		report, err := runner.RunOnce(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"skipped": report.Skipped,
				"jobs":    len(report.Jobs),
				"failed":  report.Failed(),
			}), "manual sweep finished")
		}
		responses.WriteSuccess(w, report)
	}
}
