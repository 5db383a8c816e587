package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/users"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type userService interface {
	Create(ctx context.Context, input users.CreateUserInput) (*users.CreateUserResult, error)
	Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error)
	List(ctx context.Context, params users.ListParams) (*users.ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input users.UpdateUserInput) (*users.UserDTO, error)
}

type createUserRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password,omitempty" validate:"omitempty,min=8"`
	FullName string         `json:"full_name" validate:"required,max=200"`
	Role     enums.UserRole `json:"role" validate:"required"`
	MaxLoans *int           `json:"max_loans,omitempty" validate:"omitempty,min=1"`
}

type updateUserRequest struct {
	FullName      *string         `json:"full_name,omitempty" validate:"omitempty,max=200"`
	Role          *enums.UserRole `json:"role,omitempty"`
	MaxLoans      *int            `json:"max_loans,omitempty" validate:"omitempty,min=1"`
	ClearMaxLoans bool            `json:"clear_max_loans,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
}

// Me returns the profile of the authenticated user.
func Me(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminUserList(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		role, err := validators.ParseQueryEnum(r, "role", enums.ParseUserRole)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var active *bool
		if strings.TrimSpace(r.URL.Query().Get("active")) != "" {
			value, err := validators.ParseQueryBool(r, "active")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			active = &value
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), users.ListParams{
			Filter: users.ListFilter{
				Role:   role,
				Active: active,
				Search: validators.SearchQuery(r.URL.Query()),
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

// AdminUserCreate adds an account. The generated password, if any, is only
// returned in this response.
func AdminUserCreate(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Create(r.Context(), users.CreateUserInput{
			Email:    body.Email,
			Password: body.Password,
			FullName: body.FullName,
			Role:     body.Role,
			MaxLoans: body.MaxLoans,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminUserUpdate(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		id, err := validators.PathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), id, users.UpdateUserInput{
			FullName:      body.FullName,
			Role:          body.Role,
			MaxLoans:      body.MaxLoans,
			ClearMaxLoans: body.ClearMaxLoans,
			IsActive:      body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
