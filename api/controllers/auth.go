package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/auth"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type authService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc authService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
