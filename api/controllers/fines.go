package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/fines"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type fineService interface {
	Calculate(ctx context.Context, actor pkgAuth.Actor, loanID uuid.UUID) (*fines.FineDTO, error)
	Get(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*fines.FineDTO, error)
	List(ctx context.Context, actor pkgAuth.Actor, params fines.ListParams) (*fines.ListResult, error)
	MarkPaid(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*fines.FineDTO, error)
	Cancel(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*fines.FineDTO, error)
}

type calculateFineRequest struct {
	LoanID uuid.UUID `json:"loan_id" validate:"required"`
}

func FineList(svc fineService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("fines"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := validators.ParseQueryEnum(r, "state", enums.ParseFineState)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		loanID, err := validators.ParseQueryUUID(r, "loan_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor, fines.ListParams{
			Filter: fines.ListFilter{State: state, UserID: userID, LoanID: loanID},
			Page:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FineGet(svc fineService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("fines"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// FineCalculate assesses the late fee of an overdue loan.
func FineCalculate(svc fineService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("fines"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body calculateFineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Calculate(r.Context(), actor, body.LoanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func FinePay(svc fineService, logg *logger.Logger) http.HandlerFunc {
	return fineSettleHandler(svc, logg, fineService.MarkPaid)
}

func FineCancel(svc fineService, logg *logger.Logger) http.HandlerFunc {
	return fineSettleHandler(svc, logg, fineService.Cancel)
}

type fineSettleFunc func(svc fineService, ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*fines.FineDTO, error)

func fineSettleHandler(svc fineService, logg *logger.Logger, settle fineSettleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("fines"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body notesRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := settle(svc, r.Context(), actor, id, validators.SanitizeOptional(body.Notes, validators.MaxNotesLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
