package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type settingsService interface {
	List(ctx context.Context) ([]settings.Entry, error)
	Update(ctx context.Context, values map[string]string) ([]settings.Entry, error)
}

type updateSettingsRequest struct {
	Values map[string]string `json:"values" validate:"required"`
}

func AdminSettingsList(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("settings"))
			return
		}
		entries, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": entries})
	}
}

// AdminSettingsUpdate applies a partial set of key/value changes atomically.
func AdminSettingsUpdate(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("settings"))
			return
		}
		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(body.Values) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "values must not be empty"))
			return
		}
		entries, err := svc.Update(r.Context(), body.Values)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": entries})
	}
}
