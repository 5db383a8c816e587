package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type resourceService interface {
	Create(ctx context.Context, input resources.CreateResourceInput) (*resources.ResourceDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error)
	List(ctx context.Context, params resources.ListParams) (*resources.ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input resources.UpdateResourceInput) (*resources.ResourceDTO, error)
	SetState(ctx context.Context, id uuid.UUID, state enums.ResourceState) (*resources.ResourceDTO, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
}

type createResourceRequest struct {
	Code        string               `json:"code" validate:"required,max=64"`
	Name        string               `json:"name" validate:"required,max=200"`
	Category    *string              `json:"category,omitempty"`
	Description *string              `json:"description,omitempty"`
	Location    *string              `json:"location,omitempty"`
	ImageURL    *string              `json:"image_url,omitempty" validate:"omitempty,url"`
	State       *enums.ResourceState `json:"state,omitempty"`
}

type updateResourceRequest struct {
	Code        *string `json:"code,omitempty" validate:"omitempty,max=64"`
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

type resourceStateRequest struct {
	State enums.ResourceState `json:"state" validate:"required"`
}

// ResourceList returns the catalog page matching the query filters.
func ResourceList(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		state, err := validators.ParseQueryEnum(r, "state", enums.ParseResourceState)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeDeleted, err := validators.ParseQueryBool(r, "include_deleted")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Soft-deleted rows are a staff concern.
		if actor, err := requireActor(r); err != nil || !actor.IsStaff() {
			includeDeleted = false
		}

		result, err := svc.List(r.Context(), resources.ListParams{
			Filter: resources.ListFilter{
				State:          state,
				Category:       strings.TrimSpace(r.URL.Query().Get("category")),
				Search:         validators.SearchQuery(r.URL.Query()),
				IncludeDeleted: includeDeleted,
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

func ResourceGet(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ResourceCreate(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		var body createResourceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), resources.CreateResourceInput{
			Code:        body.Code,
			Name:        body.Name,
			Category:    body.Category,
			Description: body.Description,
			Location:    body.Location,
			ImageURL:    body.ImageURL,
			State:       body.State,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func ResourceUpdate(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateResourceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), id, resources.UpdateResourceInput{
			Code:        body.Code,
			Name:        body.Name,
			Category:    body.Category,
			Description: body.Description,
			Location:    body.Location,
			ImageURL:    body.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ResourceSetState moves a resource between available and maintenance.
func ResourceSetState(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body resourceStateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.SetState(r.Context(), id, body.State)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ResourceDelete(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SoftDelete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func ResourceRestore(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Restore(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ResourcePurge permanently removes a resource that was never lent.
func ResourcePurge(svc resourceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("resources"))
			return
		}
		id, err := validators.PathUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.HardDelete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"purged": true})
	}
}
