// Package bootstrap assembles the domain services shared by the api and
// cron-worker binaries.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/techloans-backend/internal/cron"
	"github.com/angelmondragon/techloans-backend/internal/fines"
	"github.com/angelmondragon/techloans-backend/internal/ledger"
	"github.com/angelmondragon/techloans-backend/internal/loans"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/reservations"
	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/internal/users"
	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
)

// Services holds every wired domain service plus the repositories the sweep
// reads directly.
type Services struct {
	Location *time.Location

	UserRepo         *users.Repository
	LoanRepo         *loans.Repository
	NotificationRepo notifications.Repository
	OutboxRepo       *outbox.Repository
	DLQRepo          *outbox.DLQRepository

	Users         users.Service
	Resources     resources.Service
	Loans         loans.Service
	Reservations  reservations.Service
	Fines         fines.Service
	Notifications notifications.Service
	Settings      settings.Service
}

// Build wires the domain services on top of an open database client.
func Build(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Services, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	conn := dbClient.DB()

	out := &Services{
		Location:         loc,
		UserRepo:         users.NewRepository(conn),
		LoanRepo:         loans.NewRepository(conn),
		NotificationRepo: notifications.NewRepository(conn),
		OutboxRepo:       outbox.NewRepository(conn),
		DLQRepo:          outbox.NewDLQRepository(conn),
	}
	resourceRepo := resources.NewRepository(conn)
	emitter := outbox.NewService(out.OutboxRepo, logg)

	if out.Settings, err = settings.NewService(settings.NewRepository(conn), dbClient, logg); err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}
	if out.Notifications, err = notifications.NewService(out.NotificationRepo, loc, nil); err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}
	if out.Users, err = users.NewService(out.UserRepo, dbClient, cfg.Password, logg); err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}
	if out.Resources, err = resources.NewService(resourceRepo, dbClient, logg); err != nil {
		return nil, fmt.Errorf("resources service: %w", err)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	out.Loans, err = loans.NewService(loans.ServiceParams{
		Repo:          out.LoanRepo,
		Resources:     resourceRepo,
		Users:         out.UserRepo,
		Settings:      out.Settings,
		Ledger:        ledgerService,
		Outbox:        emitter,
		Notifications: out.Notifications,
		Tx:            dbClient,
		Logger:        logg,
		Metrics:       metrics.NewLoanMetrics(reg),
		Location:      loc,
	})
	if err != nil {
		return nil, fmt.Errorf("loans service: %w", err)
	}
	out.Reservations, err = reservations.NewService(reservations.ServiceParams{
		Repo:          reservations.NewRepository(conn),
		Resources:     resourceRepo,
		Loans:         out.Loans,
		Settings:      out.Settings,
		Outbox:        emitter,
		Notifications: out.Notifications,
		Tx:            dbClient,
		Logger:        logg,
		Location:      loc,
	})
	if err != nil {
		return nil, fmt.Errorf("reservations service: %w", err)
	}
	out.Fines, err = fines.NewService(fines.ServiceParams{
		Repo:          fines.NewRepository(conn),
		Loans:         out.LoanRepo,
		Settings:      out.Settings,
		Ledger:        ledgerService,
		Outbox:        emitter,
		Notifications: out.Notifications,
		Tx:            dbClient,
		Logger:        logg,
		Location:      loc,
	})
	if err != nil {
		return nil, fmt.Errorf("fines service: %w", err)
	}
	return out, nil
}

// SweepService builds the scheduler that runs the lifecycle sweep under lock.
func SweepService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, svcs *Services, lock cron.Lock, reg prometheus.Registerer) (*cron.Service, error) {
	registry, err := cron.NewSweepRegistry(cron.SweepParams{
		Logger:                    logg,
		DB:                        dbClient,
		Loans:                     svcs.Loans,
		LoanReader:                svcs.LoanRepo,
		Settings:                  svcs.Settings,
		Notifications:             svcs.Notifications,
		Fines:                     svcs.Fines,
		Purger:                    svcs.NotificationRepo,
		Outbox:                    svcs.OutboxRepo,
		Metrics:                   metrics.NewSweepMetrics(reg),
		Location:                  svcs.Location,
		NotificationRetentionDays: cfg.Sweep.NotificationRetentionDays,
		OutboxRetentionDays:       cfg.Outbox.RetentionDays,
		OutboxDeadAttempts:        cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("sweep registry: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Sweep.Interval,
	})
}
