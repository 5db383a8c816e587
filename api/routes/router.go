package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/techloans-backend/api/controllers"
	"github.com/angelmondragon/techloans-backend/api/middleware"
	"github.com/angelmondragon/techloans-backend/internal/auth"
	"github.com/angelmondragon/techloans-backend/internal/cron"
	"github.com/angelmondragon/techloans-backend/internal/fines"
	"github.com/angelmondragon/techloans-backend/internal/loans"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/reservations"
	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/internal/users"
	"github.com/angelmondragon/techloans-backend/pkg/auth/session"
	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/techloans-backend/pkg/redis"
)

// Store is the Redis surface used by the HTTP middleware stack.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// SweepRunner triggers one maintenance sweep on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*cron.RunReport, error)
}

// Params bundles everything the router mounts.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Store    Store
	Sessions session.AccessSessionChecker
	Registry prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Auth          auth.Service
	Users         users.Service
	Resources     resources.Service
	Loans         loans.Service
	Reservations  reservations.Service
	Fines         fines.Service
	Notifications notifications.Service
	Settings      settings.Service
	Sweep         SweepRunner

	PendingEvents PendingEventReader
	DeadLetters   DeadLetterReader
}

// PendingEventReader lists outbox rows not yet published.
type PendingEventReader interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
}

// DeadLetterReader reads events the publisher dead-lettered.
type DeadLetterReader interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	loc, err := cfg.App.Location()
	if err != nil {
		loc = time.UTC
	}
	clock := controllers.Clock{Location: loc}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore pkgredis.IdempotencyStore
		counterStore     interface {
			IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
		}
		windowStore interface {
			FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
		}
	)
	readyDeps := map[string]controllers.Pinger{}
	if p.DB != nil {
		readyDeps["database"] = p.DB
	}
	if p.Store != nil {
		idempotencyStore = p.Store
		counterStore = p.Store
		windowStore = p.Store
		readyDeps["redis"] = p.Store
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})

	gatherer := p.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, counterStore, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Use(middleware.RateLimit(windowStore, cfg.AuthRateLimit.APIRequestLimit, cfg.AuthRateLimit.APIWindow, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Get("/me", controllers.Me(p.Users, logg))

			r.Route("/resources", func(r chi.Router) {
				r.Get("/", controllers.ResourceList(p.Resources, logg))
				r.Get("/{resourceId}", controllers.ResourceGet(p.Resources, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Post("/", controllers.ResourceCreate(p.Resources, logg))
					r.Patch("/{resourceId}", controllers.ResourceUpdate(p.Resources, logg))
					r.Post("/{resourceId}/state", controllers.ResourceSetState(p.Resources, logg))
					r.Delete("/{resourceId}", controllers.ResourceDelete(p.Resources, logg))
					r.Post("/{resourceId}/restore", controllers.ResourceRestore(p.Resources, logg))
				})
				r.With(middleware.RequireAdmin(logg)).Delete("/{resourceId}/purge", controllers.ResourcePurge(p.Resources, logg))
			})

			r.Route("/loans", func(r chi.Router) {
				r.Get("/", controllers.LoanList(p.Loans, clock, logg))
				r.Get("/{loanId}", controllers.LoanGet(p.Loans, logg))
				r.Get("/{loanId}/events", controllers.LoanEvents(p.Loans, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Post("/", controllers.LoanCreate(p.Loans, clock, logg))
					r.Post("/{loanId}/return", controllers.LoanReturn(p.Loans, clock, logg))
					r.Post("/{loanId}/renew", controllers.LoanRenew(p.Loans, clock, logg))
				})
				r.With(middleware.RequireAdmin(logg)).Delete("/{loanId}", controllers.LoanDelete(p.Loans, logg))
			})

			r.Route("/reservations", func(r chi.Router) {
				r.Get("/", controllers.ReservationList(p.Reservations, clock, logg))
				r.Post("/", controllers.ReservationCreate(p.Reservations, clock, logg))
				r.Get("/{reservationId}", controllers.ReservationGet(p.Reservations, logg))
				r.Post("/{reservationId}/cancel", controllers.ReservationCancel(p.Reservations, logg))
				r.With(middleware.RequireStaff(logg)).Post("/{reservationId}/confirm", controllers.ReservationConfirm(p.Reservations, logg))
			})

			r.Route("/fines", func(r chi.Router) {
				r.Get("/", controllers.FineList(p.Fines, logg))
				r.Get("/{fineId}", controllers.FineGet(p.Fines, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Post("/", controllers.FineCalculate(p.Fines, logg))
					r.Post("/{fineId}/pay", controllers.FinePay(p.Fines, logg))
				})
				r.With(middleware.RequireAdmin(logg)).Post("/{fineId}/cancel", controllers.FineCancel(p.Fines, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(p.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			})
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Get("/users", controllers.AdminUserList(p.Users, logg))
			r.Post("/users", controllers.AdminUserCreate(p.Users, logg))
			r.Patch("/users/{userId}", controllers.AdminUserUpdate(p.Users, logg))

			r.Get("/settings", controllers.AdminSettingsList(p.Settings, logg))
			r.Put("/settings", controllers.AdminSettingsUpdate(p.Settings, logg))

			r.Post("/sweep", controllers.AdminSweep(p.Sweep, logg))

			r.Get("/outbox/pending", controllers.AdminOutboxPending(p.PendingEvents, logg))
			r.Get("/outbox/dead-letters", controllers.AdminDeadLetterList(p.DeadLetters, logg))
			r.Get("/outbox/dead-letters/{eventId}", controllers.AdminDeadLetterGet(p.DeadLetters, logg))
		})
	})

	return r
}
