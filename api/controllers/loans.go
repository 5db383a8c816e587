package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/loans"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type loanService interface {
	CreateLoan(ctx context.Context, input loans.CreateLoanInput) ([]loans.LoanDTO, error)
	GetLoan(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*loans.LoanDTO, error)
	ListLoans(ctx context.Context, actor pkgAuth.Actor, params loans.ListParams) (*loans.ListResult, error)
	ListEvents(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) ([]loans.LoanEventDTO, error)
	ReturnLoan(ctx context.Context, input loans.ReturnLoanInput) (*loans.LoanDTO, error)
	RenewLoan(ctx context.Context, input loans.RenewLoanInput) (*loans.LoanDTO, error)
	DeleteLoan(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) error
}

var _ loanService = loans.Service(nil)

type createLoanRequest struct {
	UserID      uuid.UUID   `json:"user_id" validate:"required"`
	ResourceIDs []uuid.UUID `json:"resource_ids" validate:"required,min=1,dive,required"`
	StartAt     *string     `json:"start_at,omitempty"`
	DueAt       string      `json:"due_at" validate:"required"`
	Notes       *string     `json:"notes,omitempty"`
}

type returnLoanRequest struct {
	ReturnedAt *string `json:"returned_at,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

type renewLoanRequest struct {
	NewDueAt string  `json:"new_due_at" validate:"required"`
	Notes    *string `json:"notes,omitempty"`
}

// LoanList pages loans. Students only ever see their own.
func LoanList(svc loanService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseLoanFilter(r, clock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListLoans(r.Context(), actor, loans.ListParams{Filter: filter, Page: page})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseLoanFilter(r *http.Request, clock Clock) (loans.ListFilter, error) {
	state, err := validators.ParseQueryEnum(r, "state", enums.ParseLoanState)
	if err != nil {
		return loans.ListFilter{}, err
	}
	userID, err := validators.ParseQueryUUID(r, "user_id")
	if err != nil {
		return loans.ListFilter{}, err
	}
	resourceID, err := validators.ParseQueryUUID(r, "resource_id")
	if err != nil {
		return loans.ListFilter{}, err
	}
	from, err := validators.ParseQueryInstant(r, "from", clock.location(), clock.now())
	if err != nil {
		return loans.ListFilter{}, err
	}
	to, err := validators.ParseQueryInstant(r, "to", clock.location(), clock.now())
	if err != nil {
		return loans.ListFilter{}, err
	}
	return loans.ListFilter{
		State:      state,
		UserID:     userID,
		ResourceID: resourceID,
		From:       from,
		To:         to,
		Search:     validators.SearchQuery(r.URL.Query()),
	}, nil
}

func LoanGet(svc loanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetLoan(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// LoanEvents returns the loan's append-only history.
func LoanEvents(svc loanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ListEvents(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": events})
	}
}

// LoanCreate lends one or more resources to a borrower in a single batch.
func LoanCreate(svc loanService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createLoanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		now := clock.now()
		startAt, err := validators.ParseOptionalInstant(body.StartAt, clock.location(), now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dueAt, err := validators.ParseInstant(body.DueAt, clock.location(), now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateLoan(r.Context(), loans.CreateLoanInput{
			UserID:      body.UserID,
			ResourceIDs: body.ResourceIDs,
			StartAt:     startAt,
			DueAt:       dueAt,
			CreatorID:   actor.UserID,
			Notes:       validators.SanitizeOptional(body.Notes, validators.MaxNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"items": created})
	}
}

func LoanReturn(svc loanService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body returnLoanRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnedAt, err := validators.ParseOptionalInstant(body.ReturnedAt, clock.location(), clock.now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.ReturnLoan(r.Context(), loans.ReturnLoanInput{
			LoanID:     id,
			ReturnedAt: returnedAt,
			Notes:      validators.SanitizeOptional(body.Notes, validators.MaxNotesLen),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func LoanRenew(svc loanService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body renewLoanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newDue, err := validators.ParseInstant(body.NewDueAt, clock.location(), clock.now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.RenewLoan(r.Context(), loans.RenewLoanInput{
			LoanID:   id,
			NewDueAt: newDue,
			Notes:    validators.SanitizeOptional(body.Notes, validators.MaxNotesLen),
			Actor:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func LoanDelete(svc loanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("loans"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteLoan(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
