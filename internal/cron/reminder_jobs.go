package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
)

const reminderTimeLayout = "2006-01-02 15:04 MST"

type ReminderJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Loans         reminderLoanLister
	Settings      snapshotReader
	Notifications dailyNotifier
	Metrics       *metrics.SweepMetrics
	Location      *time.Location
}

type reminderLoanLister interface {
	ListActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
	ListOverdue(ctx context.Context) ([]models.Loan, error)
}

type snapshotReader interface {
	Current(ctx context.Context) (settings.Snapshot, error)
}

type dailyNotifier interface {
	NotifyOncePerDay(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (bool, error)
}

type reminderBase struct {
	logg     *logger.Logger
	db       txRunner
	loans    reminderLoanLister
	settings snapshotReader
	notifier dailyNotifier
	metrics  *metrics.SweepMetrics
	loc      *time.Location
	now      func() time.Time
}

func newReminderBase(params ReminderJobParams) (reminderBase, error) {
	switch {
	case params.Logger == nil:
		return reminderBase{}, fmt.Errorf("logger required")
	case params.DB == nil:
		return reminderBase{}, fmt.Errorf("db runner required")
	case params.Loans == nil:
		return reminderBase{}, fmt.Errorf("loans repository required")
	case params.Settings == nil:
		return reminderBase{}, fmt.Errorf("settings reader required")
	case params.Notifications == nil:
		return reminderBase{}, fmt.Errorf("notifier required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return reminderBase{
		logg:     params.Logger,
		db:       params.DB,
		loans:    params.Loans,
		settings: params.Settings,
		notifier: params.Notifications,
		metrics:  params.Metrics,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// NewDueSoonJob reminds borrowers whose active loans fall due within the
// configured lead window. Each loan is reminded at most once per day.
func NewDueSoonJob(params ReminderJobParams) (Job, error) {
	base, err := newReminderBase(params)
	if err != nil {
		return nil, err
	}
	return &dueSoonJob{reminderBase: base}, nil
}

// NewOverdueNoticeJob tells borrowers about overdue loans once per day.
func NewOverdueNoticeJob(params ReminderJobParams) (Job, error) {
	base, err := newReminderBase(params)
	if err != nil {
		return nil, err
	}
	return &overdueNoticeJob{reminderBase: base}, nil
}

type dueSoonJob struct {
	reminderBase
}

func (j *dueSoonJob) Name() string { return "loan-due-soon" }

func (j *dueSoonJob) Run(ctx context.Context) error {
	snap, err := j.settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if snap.NotificationLeadDays <= 0 {
		j.logg.Info(ctx, "due-soon reminders disabled by lead days")
		return nil
	}
	now := j.now().UTC()
	until := now.Add(time.Duration(snap.NotificationLeadDays) * 24 * time.Hour)
	loans, err := j.loans.ListActiveDueBetween(ctx, now, until)
	if err != nil {
		return fmt.Errorf("list loans due soon: %w", err)
	}
	return j.remind(ctx, j.Name(), loans, enums.NotificationTypeLoanDueSoon, func(loan *models.Loan) (string, string) {
		return "Loan due soon", fmt.Sprintf("%s is due back %s.", resourceName(loan), j.format(loan.DueAt))
	})
}

type overdueNoticeJob struct {
	reminderBase
}

func (j *overdueNoticeJob) Name() string { return "loan-overdue-notice" }

func (j *overdueNoticeJob) Run(ctx context.Context) error {
	loans, err := j.loans.ListOverdue(ctx)
	if err != nil {
		return fmt.Errorf("list overdue loans: %w", err)
	}
	return j.remind(ctx, j.Name(), loans, enums.NotificationTypeLoanOverdue, func(loan *models.Loan) (string, string) {
		return "Loan overdue", fmt.Sprintf("%s was due %s. Please return it as soon as possible.", resourceName(loan), j.format(loan.DueAt))
	})
}

// remind notifies each loan in its own transaction; one failing loan is
// logged and the rest continue.
func (b *reminderBase) remind(ctx context.Context, step string, loans []models.Loan, kind enums.NotificationType, text func(*models.Loan) (string, string)) error {
	var (
		errs              error
		sent, skip, fails int
	)
	for i := range loans {
		loan := &loans[i]
		title, message := text(loan)
		loanID := loan.ID
		related := enums.RelatedKindLoan
		var created bool
		err := b.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			created, err = b.notifier.NotifyOncePerDay(ctx, tx, notifications.NotifyInput{
				UserID:      loan.UserID,
				Type:        kind,
				Title:       title,
				Message:     message,
				RelatedID:   &loanID,
				RelatedKind: &related,
			})
			return err
		})
		switch {
		case err != nil:
			fails++
			b.logg.Error(b.logg.WithLoanID(ctx, loanID.String()), "reminder failed", err)
			errs = multierr.Append(errs, fmt.Errorf("loan %s: %w", loanID, err))
		case created:
			sent++
		default:
			skip++
		}
	}
	b.metrics.Add(step, metrics.OutcomeProcessed, sent)
	b.metrics.Add(step, metrics.OutcomeSkipped, skip)
	b.metrics.Add(step, metrics.OutcomeFailed, fails)
	b.logg.Info(b.logg.WithFields(ctx, map[string]any{
		"candidates": len(loans),
		"sent":       sent,
		"skipped":    skip,
		"failed":     fails,
	}), "reminders complete")
	return errs
}

func (b *reminderBase) format(t time.Time) string {
	return t.In(b.loc).Format(reminderTimeLayout)
}

func resourceName(loan *models.Loan) string {
	if loan.Resource != nil && loan.Resource.Name != "" {
		return fmt.Sprintf("%s (%s)", loan.Resource.Name, loan.Resource.Code)
	}
	return "Your loaned resource"
}
