package fines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/ledger"
	"github.com/angelmondragon/techloans-backend/internal/loans"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
	"github.com/angelmondragon/techloans-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

const noteTimeLayout = "2006-01-02 15:04 MST"

// Service is the fine calculator.
type Service interface {
	Calculate(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*FineDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*FineDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	MarkPaid(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*FineDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*FineDTO, error)
	ListUnfinedOverdue(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsReader interface {
	CurrentTx(ctx context.Context, tx *gorm.DB) (settings.Snapshot, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (*models.Notification, error)
}

// ServiceParams lists the collaborators of the fine calculator.
type ServiceParams struct {
	Repo          *Repository
	Loans         *loans.Repository
	Settings      settingsReader
	Ledger        ledger.Service
	Outbox        outbox.Emitter
	Notifications notifier
	Tx            txRunner
	Logger        *logger.Logger
	Location      *time.Location
	Now           func() time.Time
}

type service struct {
	repo     *Repository
	loans    *loans.Repository
	settings settingsReader
	ledger   ledger.Service
	outbox   outbox.Emitter
	notifier notifier
	tx       txRunner
	logg     *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the fine calculator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fines repository required")
	case params.Loans == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loans repository required")
	case params.Settings == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settings reader required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	case params.Notifications == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     params.Repo,
		loans:    params.Loans,
		settings: params.Settings,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		notifier: params.Notifications,
		tx:       params.Tx,
		logg:     params.Logger,
		loc:      loc,
		now:      now,
	}, nil
}

// Calculate applies the fine of a late loan. The amount is fixed at creation
// and never recomputed.
func (s *service) Calculate(ctx context.Context, actor auth.Actor, loanID uuid.UUID) (*FineDTO, error) {
	if loanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can apply fines")
	}

	var fine *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loan, err := s.loans.WithTx(tx).FindByIDForUpdate(ctx, loanID)
		if err != nil {
			return notFoundOr(err, "loan not found", "load loan")
		}

		snap, err := s.settings.CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		if !snap.FinesEnabled {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "fines are disabled").
				WithReason(pkgerrors.ReasonFinesDisabled)
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.ActiveForLoan(ctx, loan.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing fine")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "loan already has a fine").
				WithReason(pkgerrors.ReasonAlreadyFined).
				WithDetails(map[string]any{"fine_id": existing.ID, "state": existing.State})
		}

		daysLate := DaysLate(loan.DueAt, loan.ReturnedAt, s.now().UTC())
		if daysLate <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "loan is not overdue").
				WithReason(pkgerrors.ReasonNotOverdue).
				WithDetails(map[string]any{"days_late": daysLate})
		}

		fine = &models.Fine{
			LoanID:   loan.ID,
			UserID:   loan.UserID,
			Amount:   Amount(daysLate, snap.FinePerDay),
			DaysLate: daysLate,
			State:    enums.FineStatePending,
		}
		if err := repo.Create(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create fine")
		}

		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLoanEventInput{
			LoanID:      loan.ID,
			ActorUserID: actor.UserIDPtr(),
			Type:        enums.LoanEventFineApplied,
			Metadata: map[string]any{
				"fine_id":   fine.ID,
				"amount":    fine.Amount.StringFixed(2),
				"days_late": daysLate,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record loan event")
		}
		if err := s.emit(ctx, tx, enums.EventFineApplied, actor, fine); err != nil {
			return err
		}
		return s.notify(ctx, tx, fine, enums.NotificationTypeFineApplied, "Late return fine",
			fmt.Sprintf("A fine of %s was applied for %d late day(s) on a loan due %s.",
				fine.Amount.StringFixed(2), daysLate, s.format(loan.DueAt)))
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(s.logg.WithLoanID(ctx, loanID.String()), map[string]any{
			"fine_id":   fine.ID.String(),
			"days_late": fine.DaysLate,
			"amount":    fine.Amount.String(),
		}), "fine applied")
	}
	return NewFineDTO(fine), nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*FineDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	fine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "fine not found", "load fine")
	}
	if !actor.CanView(fine.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
	}
	return NewFineDTO(fine), nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if params.Filter.State != nil && !params.Filter.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid state filter")
	}
	if !actor.IsStaff() {
		own := actor.UserID
		params.Filter.UserID = &own
	}
	rows, total, err := s.repo.List(ctx, params.Filter, params.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fines")
	}
	items := make([]FineDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewFineDTO(&rows[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params.Page, total)}, nil
}

func (s *service) MarkPaid(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*FineDTO, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can record payments")
	}
	return s.settle(ctx, actor, id, enums.FineStatePaid, notes, map[string]any{"paid_at": s.now().UTC()})
}

// Cancel voids a pending fine. Only administrators may cancel.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*FineDTO, error) {
	if !actor.IsSystem() && actor.Role != enums.UserRoleAdministrator {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can cancel fines")
	}
	return s.settle(ctx, actor, id, enums.FineStateCancelled, notes, nil)
}

func (s *service) ListUnfinedOverdue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListUnfinedOverdueLoanIDs(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unfined overdue loans")
	}
	return ids, nil
}

// settle runs one of the two terminal transitions out of pending.
func (s *service) settle(ctx context.Context, actor auth.Actor, id uuid.UUID, to enums.FineState, notes *string, extra map[string]any) (*FineDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	var fine *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		fine, err = repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "fine not found", "load fine")
		}
		if fine.State != enums.FineStatePending {
			return settledError(fine.State)
		}

		fields := map[string]any{}
		for k, v := range extra {
			fields[k] = v
		}
		if notes != nil && *notes != "" {
			fields["notes"] = appendNote(fine.Notes, fmt.Sprintf("[%s %s] %s", to, s.format(s.now()), *notes))
		}
		ok, err := repo.TransitionState(ctx, fine.ID, to, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update fine")
		}
		if !ok {
			return settledError(fine.State)
		}
		if fine, err = repo.FindByID(ctx, fine.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload fine")
		}

		eventType := enums.EventFineCancelled
		if to == enums.FineStatePaid {
			eventType = enums.EventFinePaid
		}
		if err := s.emit(ctx, tx, eventType, actor, fine); err != nil {
			return err
		}
		if to == enums.FineStatePaid {
			return s.notify(ctx, tx, fine, enums.NotificationTypeFinePaid, "Fine paid",
				fmt.Sprintf("Your fine of %s was marked as paid.", fine.Amount.StringFixed(2)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"fine_id": id.String(),
			"state":   string(to),
		}), "fine settled")
	}
	return NewFineDTO(fine), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor auth.Actor, fine *models.Fine) error {
	var ref *outbox.ActorRef
	if !actor.IsSystem() {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateFine,
		AggregateID:   fine.ID,
		Actor:         ref,
		Data: payloads.FineEvent{
			FineID:   fine.ID,
			LoanID:   fine.LoanID,
			UserID:   fine.UserID,
			Amount:   fine.Amount,
			DaysLate: fine.DaysLate,
			State:    fine.State,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue fine event")
	}
	return nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, fine *models.Fine, kind enums.NotificationType, title, message string) error {
	related := enums.RelatedKindFine
	id := fine.ID
	if _, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
		UserID:      fine.UserID,
		Type:        kind,
		Title:       title,
		Message:     message,
		RelatedID:   &id,
		RelatedKind: &related,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create notification")
	}
	return nil
}

func (s *service) format(t time.Time) string {
	return t.In(s.loc).Format(noteTimeLayout)
}

func settledError(state enums.FineState) error {
	err := pkgerrors.New(pkgerrors.CodeInvalidState, "fine is no longer pending").
		WithDetails(map[string]any{"state": state})
	if state == enums.FineStatePaid {
		return err.WithReason(pkgerrors.ReasonAlreadyPaid)
	}
	return err.WithReason(pkgerrors.ReasonAlreadyCancelled)
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internalMsg)
}

func appendNote(existing *string, entry string) string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return entry
	}
	return *existing + "\n" + entry
}
