package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/techloans-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
)

// Clock carries the business timezone used to read zone-less client input.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func requireActor(r *http.Request) (pkgAuth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return pkgAuth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return actor, nil
}

func parseBearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
