package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/loans"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/resources"
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

const timeLayout = "2006-01-02 15:04 MST"

// startGrace absorbs the gap between a caller stamping "now" on a same-day
// window and the service reading the clock.
const startGrace = time.Minute

// Service is the reservation arbiter.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateReservationInput) (*ReservationDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReservationDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	Confirm(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ConfirmResult, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*ReservationDTO, error)
}

// CreateReservationInput requests a future window on a resource. UserID is
// honoured for staff only; students always reserve for themselves.
type CreateReservationInput struct {
	UserID     *uuid.UUID
	ResourceID uuid.UUID
	StartAt    time.Time
	EndAt      time.Time
	Notes      *string
}

// ConfirmResult carries the completed reservation and the loan it became.
type ConfirmResult struct {
	Reservation *ReservationDTO `json:"reservation"`
	LoanID      uuid.UUID       `json:"loan_id"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsReader interface {
	CurrentTx(ctx context.Context, tx *gorm.DB) (settings.Snapshot, error)
}

type loanOpener interface {
	CreateLoanTx(ctx context.Context, tx *gorm.DB, input loans.CreateLoanInput) ([]models.Loan, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (*models.Notification, error)
}

// ServiceParams lists the collaborators of the reservation arbiter.
type ServiceParams struct {
	Repo          *Repository
	Resources     *resources.Repository
	Loans         loanOpener
	Settings      settingsReader
	Outbox        outbox.Emitter
	Notifications notifier
	Tx            txRunner
	Logger        *logger.Logger
	Location      *time.Location
	Now           func() time.Time
}

type service struct {
	repo      *Repository
	resources *resources.Repository
	loans     loanOpener
	settings  settingsReader
	outbox    outbox.Emitter
	notifier  notifier
	tx        txRunner
	logg      *logger.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService wires the reservation arbiter.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservations repository required")
	case params.Resources == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resources repository required")
	case params.Loans == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loan service required")
	case params.Settings == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settings reader required")
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
		repo:      params.Repo,
		resources: params.Resources,
		loans:     params.Loans,
		settings:  params.Settings,
		outbox:    params.Outbox,
		notifier:  params.Notifications,
		tx:        params.Tx,
		logg:      params.Logger,
		loc:       loc,
		now:       now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateReservationInput) (*ReservationDTO, error) {
	userID := actor.UserID
	if actor.IsStaff() && input.UserID != nil && *input.UserID != uuid.Nil {
		userID = *input.UserID
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ResourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
	}
	start, end := input.StartAt.UTC(), input.EndAt.UTC()
	if start.IsZero() || end.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	if start.Before(s.now().UTC().Add(-startGrace)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start cannot be in the past")
	}

	reservation := &models.Reservation{
		UserID:     userID,
		ResourceID: input.ResourceID,
		StartAt:    start,
		EndAt:      end,
		State:      enums.ReservationStatePending,
		Notes:      input.Notes,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := s.settings.CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		if !snap.ReservationsEnabled {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reservations are disabled").
				WithReason(pkgerrors.ReasonReservationsDisabled)
		}

		resource, err := s.resources.WithTx(tx).FindByIDForUpdate(ctx, input.ResourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load resource")
		}
		if resource.IsDeleted() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")
		}

		repo := s.repo.WithTx(tx)
		conflicts, err := s.conflicts(ctx, repo, resource.ID, start, end)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "resource is already booked for that window").
				WithReason(pkgerrors.ReasonWindowConflict).
				WithDetails(map[string]any{"conflicts": conflicts})
		}

		if err := repo.Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create reservation")
		}
		reservation.Resource = resource
		if err := s.emit(ctx, tx, enums.EventReservationCreated, actor, reservation); err != nil {
			return err
		}
		return s.notify(ctx, tx, reservation, enums.NotificationTypeReservationCreated, "Reservation received",
			fmt.Sprintf("%s is reserved for you from %s to %s, pending confirmation.", resource.Name, s.format(start), s.format(end)))
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"reservation_id": reservation.ID.String(),
			"resource_id":    reservation.ResourceID.String(),
		}), "reservation created")
	}
	return NewReservationDTO(reservation), nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReservationDTO, error) {
	reservation, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return NewReservationDTO(reservation), nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reservations")
	}
	items := make([]ReservationDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewReservationDTO(&rows[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params.Page, total)}, nil
}

// Confirm turns a pending reservation into a loan covering the reserved
// window. The reservation ends completed, never confirmed.
func (s *service) Confirm(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ConfirmResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var loanID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "reservation not found", "load reservation")
		}
		if reservation.State != enums.ReservationStatePending {
			return stateError(reservation.State, "only pending reservations can be confirmed")
		}
		now := s.now().UTC()
		if !reservation.EndAt.After(now) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reservation window has already ended")
		}

		reservationID := reservation.ID
		startAt := reservation.StartAt
		created, err := s.loans.CreateLoanTx(ctx, tx, loans.CreateLoanInput{
			UserID:        reservation.UserID,
			ResourceIDs:   []uuid.UUID{reservation.ResourceID},
			StartAt:       &startAt,
			DueAt:         reservation.EndAt,
			CreatorID:     actor.UserID,
			Notes:         reservation.Notes,
			ReservationID: &reservationID,
		})
		if err != nil {
			return err
		}
		loanID = created[0].ID

		ok, err := repo.TransitionState(ctx, reservation.ID,
			[]enums.ReservationState{enums.ReservationStatePending},
			enums.ReservationStateCompleted,
			map[string]any{"loan_id": loanID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete reservation")
		}
		if !ok {
			return stateError(reservation.State, "only pending reservations can be confirmed")
		}
		reservation.State = enums.ReservationStateCompleted
		reservation.LoanID = &loanID

		if err := s.emit(ctx, tx, enums.EventReservationCompleted, actor, reservation); err != nil {
			return err
		}
		return s.notify(ctx, tx, reservation, enums.NotificationTypeReservationConfirmed, "Reservation confirmed",
			fmt.Sprintf("Your reservation was confirmed and is now a loan due %s.", s.format(reservation.EndAt)))
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"reservation_id": id.String(),
			"loan_id":        loanID.String(),
		}), "reservation confirmed")
	}
	reloaded, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload reservation")
	}
	return &ConfirmResult{Reservation: NewReservationDTO(reloaded), LoanID: loanID}, nil
}

// Cancel is open to the owner and to staff.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, notes *string) (*ReservationDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "reservation not found", "load reservation")
		}
		if !actor.CanView(reservation.UserID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if reservation.State.IsTerminal() {
			return stateError(reservation.State, "reservation can no longer be cancelled")
		}

		extra := map[string]any{}
		if notes != nil && *notes != "" {
			extra["notes"] = appendNote(reservation.Notes, fmt.Sprintf("[cancelled %s] %s", s.format(s.now()), *notes))
		}
		ok, err := repo.TransitionState(ctx, reservation.ID,
			[]enums.ReservationState{enums.ReservationStatePending, enums.ReservationStateConfirmed},
			enums.ReservationStateCancelled, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel reservation")
		}
		if !ok {
			return stateError(reservation.State, "reservation can no longer be cancelled")
		}
		reservation.State = enums.ReservationStateCancelled

		if err := s.emit(ctx, tx, enums.EventReservationCancelled, actor, reservation); err != nil {
			return err
		}
		return s.notify(ctx, tx, reservation, enums.NotificationTypeReservationCancelled, "Reservation cancelled",
			fmt.Sprintf("Your reservation starting %s was cancelled.", s.format(reservation.StartAt)))
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "reservation_id", id.String()), "reservation cancelled")
	}
	reloaded, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload reservation")
	}
	return NewReservationDTO(reloaded), nil
}

func (s *service) conflicts(ctx context.Context, repo *Repository, resourceID uuid.UUID, start, end time.Time) ([]WindowConflict, error) {
	loansInWindow, err := repo.ConflictingLoans(ctx, resourceID, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check loan overlap")
	}
	booked, err := repo.ConflictingReservations(ctx, resourceID, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check reservation overlap")
	}
	out := make([]WindowConflict, 0, len(loansInWindow)+len(booked))
	for _, loan := range loansInWindow {
		out = append(out, WindowConflict{Kind: "loan", ID: loan.ID, StartAt: loan.StartAt, EndAt: loan.DueAt})
	}
	for _, r := range booked {
		out = append(out, WindowConflict{Kind: "reservation", ID: r.ID, StartAt: r.StartAt, EndAt: r.EndAt})
	}
	return out, nil
}

func (s *service) loadVisible(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation not found", "load reservation")
	}
	if !actor.CanView(reservation.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor auth.Actor, r *models.Reservation) error {
	var ref *outbox.ActorRef
	if !actor.IsSystem() {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   r.ID,
		Actor:         ref,
		Data: payloads.ReservationEvent{
			ReservationID: r.ID,
			UserID:        r.UserID,
			ResourceID:    r.ResourceID,
			State:         r.State,
			StartAt:       r.StartAt,
			EndAt:         r.EndAt,
			LoanID:        r.LoanID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue reservation event")
	}
	return nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, r *models.Reservation, kind enums.NotificationType, title, message string) error {
	related := enums.RelatedKindReservation
	id := r.ID
	if _, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
		UserID:      r.UserID,
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
	return t.In(s.loc).Format(timeLayout)
}

func stateError(state enums.ReservationState, message string) error {
	err := pkgerrors.New(pkgerrors.CodeInvalidState, message).
		WithDetails(map[string]any{"state": state})
	switch state {
	case enums.ReservationStateCancelled:
		return err.WithReason(pkgerrors.ReasonAlreadyCancelled)
	case enums.ReservationStateCompleted:
		return err.WithReason(pkgerrors.ReasonAlreadyCompleted)
	}
	return err
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
