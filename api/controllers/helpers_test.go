package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newActor(role enums.UserRole) pkgAuth.Actor {
	return pkgAuth.Actor{UserID: uuid.New(), Role: role}
}

func withActor(req *http.Request, actor pkgAuth.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(req.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
	}
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return envelope.Error
}
