package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/internal/reservations"
	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
)

type fakeReservationService struct {
	createFn  func(ctx context.Context, actor pkgAuth.Actor, input reservations.CreateReservationInput) (*reservations.ReservationDTO, error)
	getFn     func(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ReservationDTO, error)
	listFn    func(ctx context.Context, actor pkgAuth.Actor, params reservations.ListParams) (*reservations.ListResult, error)
	confirmFn func(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ConfirmResult, error)
	cancelFn  func(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*reservations.ReservationDTO, error)
}

func (f *fakeReservationService) Create(ctx context.Context, actor pkgAuth.Actor, input reservations.CreateReservationInput) (*reservations.ReservationDTO, error) {
	return f.createFn(ctx, actor, input)
}

func (f *fakeReservationService) Get(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ReservationDTO, error) {
	return f.getFn(ctx, actor, id)
}

func (f *fakeReservationService) List(ctx context.Context, actor pkgAuth.Actor, params reservations.ListParams) (*reservations.ListResult, error) {
	return f.listFn(ctx, actor, params)
}

func (f *fakeReservationService) Confirm(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*reservations.ConfirmResult, error) {
	return f.confirmFn(ctx, actor, id)
}

func (f *fakeReservationService) Cancel(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, notes *string) (*reservations.ReservationDTO, error) {
	return f.cancelFn(ctx, actor, id, notes)
}

func TestReservationCreateParsesWindow(t *testing.T) {
	actor := newActor(enums.UserRoleStudent)
	resourceID := uuid.New()
	var got reservations.CreateReservationInput
	svc := &fakeReservationService{
		createFn: func(ctx context.Context, a pkgAuth.Actor, input reservations.CreateReservationInput) (*reservations.ReservationDTO, error) {
			got = input
			return &reservations.ReservationDTO{ID: uuid.New(), ResourceID: input.ResourceID, State: enums.ReservationStatePending}, nil
		},
	}

	body := `{"resource_id":"` + resourceID.String() + `","start_at":"2026-03-15 08:00","end_at":"2026-03-16T17:30:00-05:00"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)), actor)
	rec := httptest.NewRecorder()
	ReservationCreate(svc, testClock, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, got.UserID)
	assert.Equal(t, resourceID, got.ResourceID)
	assert.Equal(t, time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC), got.StartAt)
	assert.Equal(t, time.Date(2026, 3, 16, 22, 30, 0, 0, time.UTC), got.EndAt)
	assert.Equal(t, enums.ReservationStatePending, decodeData[reservations.ReservationDTO](t, rec).State)
}

func TestReservationCreateRejectsBadTimestamp(t *testing.T) {
	body := `{"resource_id":"` + uuid.NewString() + `","start_at":"tomorrow","end_at":"2026-03-16"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)), newActor(enums.UserRoleStudent))
	rec := httptest.NewRecorder()
	ReservationCreate(&fakeReservationService{}, testClock, testLogger())(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationCreateWindowConflict(t *testing.T) {
	svc := &fakeReservationService{
		createFn: func(ctx context.Context, a pkgAuth.Actor, input reservations.CreateReservationInput) (*reservations.ReservationDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "window overlaps another reservation").WithReason(pkgerrors.ReasonWindowConflict)
		},
	}
	body := `{"resource_id":"` + uuid.NewString() + `","start_at":"2026-03-15","end_at":"2026-03-16"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)), newActor(enums.UserRoleStudent))
	rec := httptest.NewRecorder()
	ReservationCreate(svc, testClock, testLogger())(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.ReasonWindowConflict), decodeError(t, rec).Reason)
}

func TestReservationListParsesFilters(t *testing.T) {
	resourceID := uuid.New()
	var got reservations.ListParams
	svc := &fakeReservationService{
		listFn: func(ctx context.Context, a pkgAuth.Actor, params reservations.ListParams) (*reservations.ListResult, error) {
			got = params
			return &reservations.ListResult{}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations?state=pending&resource_id="+resourceID.String()+"&to=2026-04-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	ReservationList(svc, testClock, testLogger())(rec, withActor(req, newActor(enums.UserRoleWorker)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Filter.State)
	assert.Equal(t, enums.ReservationStatePending, *got.Filter.State)
	require.NotNil(t, got.Filter.ResourceID)
	assert.Equal(t, resourceID, *got.Filter.ResourceID)
	assert.Nil(t, got.Filter.From)
	require.NotNil(t, got.Filter.To)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *got.Filter.To)
}

func TestReservationConfirmReturnsLoan(t *testing.T) {
	id := uuid.New()
	loanID := uuid.New()
	svc := &fakeReservationService{
		confirmFn: func(ctx context.Context, a pkgAuth.Actor, rid uuid.UUID) (*reservations.ConfirmResult, error) {
			return &reservations.ConfirmResult{
				Reservation: &reservations.ReservationDTO{ID: rid, State: enums.ReservationStateCompleted, LoanID: &loanID},
				LoanID:      loanID,
			}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+id.String()+"/confirm", nil)
	req = addRouteParam(withActor(req, newActor(enums.UserRoleWorker)), "reservationId", id.String())
	rec := httptest.NewRecorder()
	ReservationConfirm(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData[reservations.ConfirmResult](t, rec)
	assert.Equal(t, loanID, data.LoanID)
	require.NotNil(t, data.Reservation)
	assert.Equal(t, enums.ReservationStateCompleted, data.Reservation.State)
}

func TestReservationCancelPassesNotes(t *testing.T) {
	id := uuid.New()
	actor := newActor(enums.UserRoleStudent)
	var gotNotes *string
	svc := &fakeReservationService{
		cancelFn: func(ctx context.Context, a pkgAuth.Actor, rid uuid.UUID, notes *string) (*reservations.ReservationDTO, error) {
			gotNotes = notes
			return &reservations.ReservationDTO{ID: rid, State: enums.ReservationStateCancelled}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+id.String()+"/cancel", strings.NewReader(`{"notes":"plans changed"}`))
	req = addRouteParam(withActor(req, actor), "reservationId", id.String())
	rec := httptest.NewRecorder()
	ReservationCancel(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotNotes)
	assert.Equal(t, "plans changed", *gotNotes)
}

func TestReservationCancelForbiddenForOtherStudent(t *testing.T) {
	id := uuid.New()
	svc := &fakeReservationService{
		cancelFn: func(ctx context.Context, a pkgAuth.Actor, rid uuid.UUID, notes *string) (*reservations.ReservationDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+id.String()+"/cancel", nil)
	req = addRouteParam(withActor(req, newActor(enums.UserRoleStudent)), "reservationId", id.String())
	rec := httptest.NewRecorder()
	ReservationCancel(svc, testLogger())(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
