package loans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/ledger"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/internal/users"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/metrics"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
	"github.com/angelmondragon/techloans-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

const noteTimeLayout = "2006-01-02 15:04 MST"

// Service is the loan ledger.
type Service interface {
	CreateLoan(ctx context.Context, input CreateLoanInput) ([]LoanDTO, error)
	CreateLoanTx(ctx context.Context, tx *gorm.DB, input CreateLoanInput) ([]models.Loan, error)
	GetLoan(ctx context.Context, actor auth.Actor, id uuid.UUID) (*LoanDTO, error)
	ListLoans(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	ListEvents(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]LoanEventDTO, error)
	ReturnLoan(ctx context.Context, input ReturnLoanInput) (*LoanDTO, error)
	RenewLoan(ctx context.Context, input RenewLoanInput) (*LoanDTO, error)
	DeleteLoan(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	MarkOverdueSweep(ctx context.Context) (int, error)
}

// CreateLoanInput registers one loan per resource for the same borrower and
// window. StartAt defaults to now. ReservationID marks a converted reservation.
type CreateLoanInput struct {
	UserID        uuid.UUID
	ResourceIDs   []uuid.UUID
	StartAt       *time.Time
	DueAt         time.Time
	CreatorID     uuid.UUID
	Notes         *string
	ReservationID *uuid.UUID
}

// ReturnLoanInput closes a loan. ReturnedAt defaults to now.
type ReturnLoanInput struct {
	LoanID     uuid.UUID
	ReturnedAt *time.Time
	Notes      *string
	Actor      auth.Actor
}

// RenewLoanInput extends the due time of an active loan.
type RenewLoanInput struct {
	LoanID   uuid.UUID
	NewDueAt time.Time
	Notes    *string
	Actor    auth.Actor
}

// UnavailableResource explains why one resource of a batch cannot be lent.
type UnavailableResource struct {
	ID      uuid.UUID           `json:"id"`
	Code    string              `json:"code"`
	Name    string              `json:"name"`
	State   enums.ResourceState `json:"state"`
	Deleted bool                `json:"deleted,omitempty"`
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

// ServiceParams lists the collaborators of the loan ledger.
type ServiceParams struct {
	Repo          *Repository
	Resources     *resources.Repository
	Users         *users.Repository
	Settings      settingsReader
	Ledger        ledger.Service
	Outbox        outbox.Emitter
	Notifications notifier
	Tx            txRunner
	Logger        *logger.Logger
	Metrics       *metrics.LoanMetrics
	Location      *time.Location
	Now           func() time.Time
}

type service struct {
	repo      *Repository
	resources *resources.Repository
	users     *users.Repository
	settings  settingsReader
	ledger    ledger.Service
	outbox    outbox.Emitter
	notifier  notifier
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.LoanMetrics
	loc       *time.Location
	now       func() time.Time
}

// NewService wires the loan ledger.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loans repository required")
	case params.Resources == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resources repository required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
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
		repo:      params.Repo,
		resources: params.Resources,
		users:     params.Users,
		settings:  params.Settings,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		notifier:  params.Notifications,
		tx:        params.Tx,
		logg:      params.Logger,
		metrics:   params.Metrics,
		loc:       loc,
		now:       now,
	}, nil
}

func (s *service) CreateLoan(ctx context.Context, input CreateLoanInput) ([]LoanDTO, error) {
	var created []models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loans, err := s.CreateLoanTx(ctx, tx, input)
		if err != nil {
			return err
		}
		created = loans
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]LoanDTO, 0, len(created))
	for i := range created {
		loan, err := s.repo.FindByID(ctx, created[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload loan")
		}
		out = append(out, *NewLoanDTO(loan))
	}
	s.metrics.Add("created", len(out))

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"borrower_id": input.UserID.String(),
			"loan_count":  len(out),
		}), "loans created")
	}
	return out, nil
}

// CreateLoanTx validates the whole batch under row locks before any write, so
// either every resource is lent or none is.
func (s *service) CreateLoanTx(ctx context.Context, tx *gorm.DB, input CreateLoanInput) ([]models.Loan, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ids, err := normalizeBatch(input)
	if err != nil {
		return nil, err
	}
	start := s.now().UTC()
	if input.StartAt != nil {
		start = input.StartAt.UTC()
	}
	due := input.DueAt.UTC()
	if !due.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date must be after start date")
	}

	userRepo := s.users.WithTx(tx)
	resourceRepo := s.resources.WithTx(tx)
	loanRepo := s.repo.WithTx(tx)

	creator, err := userRepo.FindByID(ctx, input.CreatorID)
	if err != nil {
		return nil, notFoundOr(err, "creator not found", "load creator")
	}
	if !creator.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can register loans")
	}

	borrower, err := userRepo.FindByIDForUpdate(ctx, input.UserID)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load borrower")
	}
	if !borrower.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user account is inactive")
	}

	locked, err := resourceRepo.FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock resources")
	}
	if missing := missingIDs(ids, locked); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resource not found").
			WithDetails(map[string]any{"missing_ids": missing})
	}

	var unavailable []UnavailableResource
	for i := range locked {
		res := &locked[i]
		blocked := res.IsDeleted() || res.State != enums.ResourceStateAvailable
		if !blocked {
			outstanding, err := resourceRepo.HasOutstandingLoan(ctx, res.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check outstanding loans")
			}
			blocked = outstanding
		}
		if blocked {
			unavailable = append(unavailable, describeUnavailable(res))
		}
	}
	if len(unavailable) > 0 {
		return nil, resourceUnavailableError(unavailable)
	}

	snap, err := s.settings.CurrentTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	limit := users.EffectiveLimit(borrower, snap.MaxSimultaneousLoans)
	current, err := loanRepo.CountOutstandingByUser(ctx, borrower.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count outstanding loans")
	}
	if int(current)+len(ids) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeLimitExceeded, "simultaneous loan limit exceeded").
			WithReason(pkgerrors.ReasonLoanLimitExceeded).
			WithDetails(map[string]any{
				"current":   current,
				"requested": len(ids),
				"limit":     limit,
			})
	}

	notes := input.Notes
	if notes != nil && *notes == "" {
		notes = nil
	}
	actor := &outbox.ActorRef{UserID: creator.ID, Role: creator.Role}
	created := make([]models.Loan, 0, len(locked))
	for i := range locked {
		res := &locked[i]
		swapped, err := resourceRepo.CompareAndSetState(ctx, res.ID, enums.ResourceStateAvailable, enums.ResourceStateLoaned)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flip resource state")
		}
		if !swapped {
			return nil, resourceUnavailableError([]UnavailableResource{describeUnavailable(res)})
		}

		loan := models.Loan{
			UserID:         borrower.ID,
			ResourceID:     res.ID,
			CreatedByID:    creator.ID,
			CreatedByName:  creator.FullName,
			CreatedByEmail: creator.Email,
			StartAt:        start,
			DueAt:          due,
			State:          enums.LoanStateActive,
			Notes:          notes,
		}
		if err := loanRepo.Create(ctx, &loan); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create loan")
		}

		metadata := map[string]any{
			"resource_id": res.ID,
			"start_at":    start,
			"due_at":      due,
			"batch_size":  len(ids),
		}
		if input.ReservationID != nil {
			metadata["reservation_id"] = *input.ReservationID
		}
		if err := s.record(ctx, tx, loan.ID, &creator.ID, enums.LoanEventCreated, metadata); err != nil {
			return nil, err
		}
		if input.ReservationID != nil {
			if err := s.record(ctx, tx, loan.ID, &creator.ID, enums.LoanEventReservationConverted, map[string]any{
				"reservation_id": *input.ReservationID,
			}); err != nil {
				return nil, err
			}
		}
		if err := s.emit(ctx, tx, enums.EventLoanCreated, actor, &loan); err != nil {
			return nil, err
		}
		if err := s.notify(ctx, tx, &loan, enums.NotificationTypeLoanCreated, "Loan registered",
			fmt.Sprintf("%s (%s) is lent to you until %s.", res.Name, res.Code, s.formatTime(due))); err != nil {
			return nil, err
		}
		created = append(created, loan)
	}
	return created, nil
}

func (s *service) GetLoan(ctx context.Context, actor auth.Actor, id uuid.UUID) (*LoanDTO, error) {
	loan, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return NewLoanDTO(loan), nil
}

// ListLoans restricts students to their own loans whatever the filter says.
func (s *service) ListLoans(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if params.Filter.State != nil && !params.Filter.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid state filter")
	}
	if params.Filter.From != nil && params.Filter.To != nil && !params.Filter.To.After(*params.Filter.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range end must be after its start")
	}
	if !actor.IsStaff() {
		own := actor.UserID
		params.Filter.UserID = &own
	}
	rows, total, err := s.repo.List(ctx, params.Filter, params.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list loans")
	}
	items := make([]LoanDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewLoanDTO(&rows[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params.Page, total)}, nil
}

// ListEvents returns the audit trail. Staff may read the trail of a deleted loan.
func (s *service) ListEvents(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]LoanEventDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	loan, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		if !actor.CanView(loan.UserID) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !actor.IsStaff() {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		loan = nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load loan")
	}

	events, err := s.ledger.ListByLoan(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list loan events")
	}
	if loan == nil && len(events) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
	}
	out := make([]LoanEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, NewLoanEventDTO(event))
	}
	return out, nil
}

func (s *service) ReturnLoan(ctx context.Context, input ReturnLoanInput) (*LoanDTO, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	now := s.now().UTC()
	returnedAt := now
	if input.ReturnedAt != nil {
		returnedAt = input.ReturnedAt.UTC()
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loanRepo := s.repo.WithTx(tx)
		loan, err := loanRepo.FindByIDForUpdate(ctx, input.LoanID)
		if err != nil {
			return notFoundOr(err, "loan not found", "load loan")
		}
		if loan.State == enums.LoanStateReturned {
			return alreadyReturnedError(loan)
		}
		if returnedAt.Before(loan.StartAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "return date cannot precede the loan start")
		}

		extra := map[string]any{"returned_at": returnedAt}
		if input.Notes != nil && *input.Notes != "" {
			extra["notes"] = appendNote(loan.Notes, fmt.Sprintf("[returned %s] %s", s.formatTime(now), *input.Notes))
		}
		ok, err := loanRepo.TransitionState(ctx, loan.ID, enums.OutstandingLoanStates, enums.LoanStateReturned, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "return loan")
		}
		if !ok {
			return alreadyReturnedError(loan)
		}
		if _, err := s.resources.WithTx(tx).CompareAndSetState(ctx, loan.ResourceID, enums.ResourceStateLoaned, enums.ResourceStateAvailable); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release resource")
		}

		previous := loan.State
		loan.State = enums.LoanStateReturned
		loan.ReturnedAt = &returnedAt
		if err := s.record(ctx, tx, loan.ID, input.Actor.UserIDPtr(), enums.LoanEventReturned, map[string]any{
			"returned_at":    returnedAt,
			"previous_state": previous,
			"late":           returnedAt.After(loan.DueAt),
		}); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventLoanReturned, actorRef(input.Actor), loan); err != nil {
			return err
		}
		return s.notify(ctx, tx, loan, enums.NotificationTypeLoanReturned, "Loan returned",
			fmt.Sprintf("Your loan was returned on %s.", s.formatTime(returnedAt)))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Inc("returned")

	if s.logg != nil {
		s.logg.Info(s.logg.WithLoanID(ctx, input.LoanID.String()), "loan returned")
	}
	return s.reload(ctx, input.LoanID)
}

// RenewLoan extends an active loan. The total span from the original start may
// not exceed the configured maximum.
func (s *service) RenewLoan(ctx context.Context, input RenewLoanInput) (*LoanDTO, error) {
	if input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if input.NewDueAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new due date required")
	}
	newDue := input.NewDueAt.UTC()
	now := s.now().UTC()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loanRepo := s.repo.WithTx(tx)
		loan, err := loanRepo.FindByIDForUpdate(ctx, input.LoanID)
		if err != nil {
			return notFoundOr(err, "loan not found", "load loan")
		}
		if loan.State != enums.LoanStateActive {
			return notRenewableError(loan.State)
		}
		if !newDue.After(loan.DueAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new due date must be after the current due date")
		}

		snap, err := s.settings.CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		total := newDue.Sub(loan.StartAt)
		if total > time.Duration(snap.MaxLoanDays)*24*time.Hour {
			return pkgerrors.New(pkgerrors.CodeLimitExceeded, "renewal exceeds the maximum loan duration").
				WithReason(pkgerrors.ReasonRenewalExceedsMax).
				WithDetails(map[string]any{
					"diasTotales": ceilDays(total),
					"maxDias":     snap.MaxLoanDays,
				})
		}

		entry := fmt.Sprintf("[renewed %s] due %s -> %s", s.formatTime(now), s.formatTime(loan.DueAt), s.formatTime(newDue))
		if input.Notes != nil && *input.Notes != "" {
			entry += ": " + *input.Notes
		}
		ok, err := loanRepo.TransitionState(ctx, loan.ID, []enums.LoanState{enums.LoanStateActive}, enums.LoanStateActive, map[string]any{
			"due_at": newDue,
			"notes":  appendNote(loan.Notes, entry),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "renew loan")
		}
		if !ok {
			return notRenewableError(loan.State)
		}

		previousDue := loan.DueAt
		loan.DueAt = newDue
		if err := s.record(ctx, tx, loan.ID, input.Actor.UserIDPtr(), enums.LoanEventRenewed, map[string]any{
			"previous_due_at": previousDue,
			"due_at":          newDue,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanRenewed,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.LoanRenewedEvent{
				LoanID:        loan.ID,
				UserID:        loan.UserID,
				ResourceID:    loan.ResourceID,
				PreviousDueAt: previousDue,
				DueAt:         newDue,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue loan event")
		}
		return s.notify(ctx, tx, loan, enums.NotificationTypeLoanRenewed, "Loan renewed",
			fmt.Sprintf("Your loan is now due %s.", s.formatTime(newDue)))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Inc("renewed")

	if s.logg != nil {
		s.logg.Info(s.logg.WithLoanID(ctx, input.LoanID.String()), "loan renewed")
	}
	return s.reload(ctx, input.LoanID)
}

// DeleteLoan removes a loan and releases its resource when it was outstanding.
func (s *service) DeleteLoan(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loanRepo := s.repo.WithTx(tx)
		loan, err := loanRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "loan not found", "load loan")
		}
		if loan.State.IsOutstanding() {
			if _, err := s.resources.WithTx(tx).CompareAndSetState(ctx, loan.ResourceID, enums.ResourceStateLoaned, enums.ResourceStateAvailable); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release resource")
			}
		}
		if err := s.record(ctx, tx, loan.ID, actor.UserIDPtr(), enums.LoanEventDeleted, map[string]any{
			"state":       loan.State,
			"resource_id": loan.ResourceID,
			"user_id":     loan.UserID,
		}); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventLoanDeleted, actorRef(actor), loan); err != nil {
			return err
		}
		if err := loanRepo.Delete(ctx, loan.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete loan")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithLoanID(ctx, id.String()), "loan deleted")
	}
	return nil
}

// MarkOverdueSweep flips every active loan past its due time to overdue and
// returns how many changed. Running it twice changes nothing the second time.
func (s *service) MarkOverdueSweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	flipped := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loanRepo := s.repo.WithTx(tx)
		candidates, err := loanRepo.ListActiveDueBefore(ctx, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list loans past due")
		}
		for i := range candidates {
			loan := &candidates[i]
			ok, err := loanRepo.TransitionState(ctx, loan.ID, []enums.LoanState{enums.LoanStateActive}, enums.LoanStateOverdue, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark loan overdue")
			}
			if !ok {
				continue
			}
			loan.State = enums.LoanStateOverdue
			if err := s.record(ctx, tx, loan.ID, nil, enums.LoanEventOverdue, map[string]any{
				"due_at":      loan.DueAt,
				"detected_at": now,
			}); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventLoanOverdue, nil, loan); err != nil {
				return err
			}
			flipped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.Add("overdue", flipped)
	if s.logg != nil && flipped > 0 {
		s.logg.Info(s.logg.WithField(ctx, "flipped", flipped), "loans marked overdue")
	}
	return flipped, nil
}

func (s *service) loadVisible(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Loan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "loan not found", "load loan")
	}
	if !actor.CanView(loan.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
	}
	return loan, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*LoanDTO, error) {
	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload loan")
	}
	return NewLoanDTO(loan), nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, loanID uuid.UUID, actorID *uuid.UUID, eventType enums.LoanEventType, metadata map[string]any) error {
	if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLoanEventInput{
		LoanID:      loanID,
		ActorUserID: actorID,
		Type:        eventType,
		Metadata:    metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record loan event")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor *outbox.ActorRef, loan *models.Loan) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateLoan,
		AggregateID:   loan.ID,
		Actor:         actor,
		Data: payloads.LoanEvent{
			LoanID:     loan.ID,
			UserID:     loan.UserID,
			ResourceID: loan.ResourceID,
			State:      loan.State,
			StartAt:    loan.StartAt,
			DueAt:      loan.DueAt,
			ReturnedAt: loan.ReturnedAt,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue loan event")
	}
	return nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, loan *models.Loan, kind enums.NotificationType, title, message string) error {
	related := enums.RelatedKindLoan
	loanID := loan.ID
	if _, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
		UserID:      loan.UserID,
		Type:        kind,
		Title:       title,
		Message:     message,
		RelatedID:   &loanID,
		RelatedKind: &related,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create notification")
	}
	return nil
}

func (s *service) formatTime(t time.Time) string {
	return t.In(s.loc).Format(noteTimeLayout)
}

func normalizeBatch(input CreateLoanInput) ([]uuid.UUID, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.CreatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}
	if len(input.ResourceIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one resource is required")
	}
	if input.DueAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.ResourceIDs))
	ids := make([]uuid.UUID, 0, len(input.ResourceIDs))
	for _, id := range input.ResourceIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
		}
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate resource in batch").
				WithDetails(map[string]any{"resource_id": id})
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func missingIDs(requested []uuid.UUID, found []models.Resource) []uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, res := range found {
		present[res.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func describeUnavailable(res *models.Resource) UnavailableResource {
	return UnavailableResource{
		ID:      res.ID,
		Code:    res.Code,
		Name:    res.Name,
		State:   res.State,
		Deleted: res.IsDeleted(),
	}
}

func resourceUnavailableError(items []UnavailableResource) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "resources are not available").
		WithReason(pkgerrors.ReasonResourceUnavailable).
		WithDetails(map[string]any{"resources": items})
}

func alreadyReturnedError(loan *models.Loan) error {
	details := map[string]any{"loan_id": loan.ID}
	if loan.ReturnedAt != nil {
		details["returned_at"] = *loan.ReturnedAt
	}
	return pkgerrors.New(pkgerrors.CodeInvalidState, "loan already returned").
		WithReason(pkgerrors.ReasonAlreadyReturned).
		WithDetails(details)
}

func notRenewableError(state enums.LoanState) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, "only active loans can be renewed").
		WithReason(pkgerrors.ReasonNotRenewable).
		WithDetails(map[string]any{"state": state})
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internalMsg)
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.IsSystem() {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func appendNote(existing *string, entry string) string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return entry
	}
	return *existing + "\n" + entry
}

// ceilDays rounds a span up to whole days.
func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
