package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParsePage reads page and page_size.
func ParsePage(r *http.Request) (pagination.PageParams, error) {
	page, err := ParseQueryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return pagination.PageParams{}, err
	}
	size, err := ParseQueryInt(r, "page_size", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.PageParams{}, err
	}
	return pagination.PageParams{Page: page, Size: size}, nil
}

// ParseQueryBool returns false for an absent key.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParseQueryUUID returns nil for an absent key.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return &id, nil
}

// ParseQueryInstant returns nil for an absent key.
func ParseQueryInstant(r *http.Request, key string, loc *time.Location, now time.Time) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	t, err := ParseOptionalInstant(&raw, loc, now)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid timestamp").WithDetails(map[string]any{"field": key})
	}
	return t, nil
}

// ParseQueryEnum parses an optional enum-valued key with parse.
func ParseQueryEnum[T any](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid filter").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// PathUUID reads a uuid chi URL parameter.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return id, nil
}
