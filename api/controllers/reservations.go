package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/reservations"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type reservationService interface {
	Create(ctx context.Context, actor pkgAuth.Actor, input reservations.CreateReservationInput) (*reservations.ReservationDTO, error)
	Get(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ReservationDTO, error)
	List(ctx context.Context, actor pkgAuth.Actor, params reservations.ListParams) (*reservations.ListResult, error)
	Confirm(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ConfirmResult, error)
	Cancel(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*reservations.ReservationDTO, error)
}

type createReservationRequest struct {
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	ResourceID uuid.UUID  `json:"resource_id" validate:"required"`
	StartAt    string     `json:"start_at" validate:"required"`
	EndAt      string     `json:"end_at" validate:"required"`
	Notes      *string    `json:"notes,omitempty"`
}

type notesRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func ReservationList(svc reservationService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reservations"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := validators.ParseQueryEnum(r, "state", enums.ParseReservationState)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resourceID, err := validators.ParseQueryUUID(r, "resource_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryInstant(r, "from", clock.location(), clock.now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryInstant(r, "to", clock.location(), clock.now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor, reservations.ListParams{
			Filter: reservations.ListFilter{
				State:      state,
				UserID:     userID,
				ResourceID: resourceID,
				From:       from,
				To:         to,
			},
			Page: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ReservationGet(svc reservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reservations"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "reservationId")
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

// ReservationCreate books a future window on a resource.
func ReservationCreate(svc reservationService, clock Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reservations"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		now := clock.now()
		startAt, err := validators.ParseInstant(body.StartAt, clock.location(), now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		endAt, err := validators.ParseInstant(body.EndAt, clock.location(), now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), actor, reservations.CreateReservationInput{
			UserID:     body.UserID,
			ResourceID: body.ResourceID,
			StartAt:    startAt,
			EndAt:      endAt,
			Notes:      validators.SanitizeOptional(body.Notes, validators.MaxNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// ReservationConfirm converts a pending reservation into a loan.
func ReservationConfirm(svc reservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reservations"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Confirm(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ReservationCancel(svc reservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("reservations"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body notesRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Cancel(r.Context(), actor, id, validators.SanitizeOptional(body.Notes, validators.MaxNotesLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
