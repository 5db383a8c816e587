package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
)

type fakeResourceService struct {
	createFn     func(ctx context.Context, input resources.CreateResourceInput) (*resources.ResourceDTO, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error)
	listFn       func(ctx context.Context, params resources.ListParams) (*resources.ListResult, error)
	updateFn     func(ctx context.Context, id uuid.UUID, input resources.UpdateResourceInput) (*resources.ResourceDTO, error)
	setStateFn   func(ctx context.Context, id uuid.UUID, state enums.ResourceState) (*resources.ResourceDTO, error)
	softDeleteFn func(ctx context.Context, id uuid.UUID) error
	restoreFn    func(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error)
	hardDeleteFn func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeResourceService) Create(ctx context.Context, input resources.CreateResourceInput) (*resources.ResourceDTO, error) {
	return f.createFn(ctx, input)
}

func (f *fakeResourceService) Get(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error) {
	return f.getFn(ctx, id)
}

func (f *fakeResourceService) List(ctx context.Context, params resources.ListParams) (*resources.ListResult, error) {
	return f.listFn(ctx, params)
}

func (f *fakeResourceService) Update(ctx context.Context, id uuid.UUID, input resources.UpdateResourceInput) (*resources.ResourceDTO, error) {
	return f.updateFn(ctx, id, input)
}

func (f *fakeResourceService) SetState(ctx context.Context, id uuid.UUID, state enums.ResourceState) (*resources.ResourceDTO, error) {
	return f.setStateFn(ctx, id, state)
}

func (f *fakeResourceService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return f.softDeleteFn(ctx, id)
}

func (f *fakeResourceService) Restore(ctx context.Context, id uuid.UUID) (*resources.ResourceDTO, error) {
	return f.restoreFn(ctx, id)
}

func (f *fakeResourceService) HardDelete(ctx context.Context, id uuid.UUID) error {
	return f.hardDeleteFn(ctx, id)
}

func TestResourceListIncludeDeletedOnlyForStaff(t *testing.T) {
	cases := []struct {
		role enums.UserRole
		want bool
	}{
		{enums.UserRoleStudent, false},
		{enums.UserRoleWorker, true},
		{enums.UserRoleAdministrator, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			var got resources.ListParams
			svc := &fakeResourceService{
				listFn: func(ctx context.Context, params resources.ListParams) (*resources.ListResult, error) {
					got = params
					return &resources.ListResult{}, nil
				},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/resources?include_deleted=true&state=available&category=laptops", nil)
			rec := httptest.NewRecorder()
			ResourceList(svc, testLogger())(rec, withActor(req, newActor(tc.role)))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, got.Filter.IncludeDeleted)
			assert.Equal(t, "laptops", got.Filter.Category)
			require.NotNil(t, got.Filter.State)
			assert.Equal(t, enums.ResourceStateAvailable, *got.Filter.State)
		})
	}
}

func TestResourceCreateReturnsCreated(t *testing.T) {
	var got resources.CreateResourceInput
	svc := &fakeResourceService{
		createFn: func(ctx context.Context, input resources.CreateResourceInput) (*resources.ResourceDTO, error) {
			got = input
			return &resources.ResourceDTO{ID: uuid.New(), Code: input.Code, Name: input.Name, State: enums.ResourceStateAvailable}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(`{"code":"LAP-001","name":"Laptop","category":"laptops"}`))
	rec := httptest.NewRecorder()
	ResourceCreate(svc, testLogger())(rec, withActor(req, newActor(enums.UserRoleWorker)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "LAP-001", got.Code)
	require.NotNil(t, got.Category)
	assert.Equal(t, "laptops", *got.Category)
	assert.Equal(t, "LAP-001", decodeData[resources.ResourceDTO](t, rec).Code)
}

func TestResourceCreateRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(`{"code":"X","name":"Y","owner":"me"}`))
	rec := httptest.NewRecorder()
	ResourceCreate(&fakeResourceService{}, testLogger())(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResourceCreateDuplicateCode(t *testing.T) {
	svc := &fakeResourceService{
		createFn: func(ctx context.Context, input resources.CreateResourceInput) (*resources.ResourceDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "resource code already exists").WithReason(pkgerrors.ReasonDuplicateCode)
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(`{"code":"LAP-001","name":"Laptop"}`))
	rec := httptest.NewRecorder()
	ResourceCreate(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.ReasonDuplicateCode), decodeError(t, rec).Reason)
}

func TestResourceSetStatePassesState(t *testing.T) {
	id := uuid.New()
	var gotState enums.ResourceState
	svc := &fakeResourceService{
		setStateFn: func(ctx context.Context, rid uuid.UUID, state enums.ResourceState) (*resources.ResourceDTO, error) {
			gotState = state
			return &resources.ResourceDTO{ID: rid, State: state}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources/"+id.String()+"/state", strings.NewReader(`{"state":"maintenance"}`))
	req = addRouteParam(req, "resourceId", id.String())
	rec := httptest.NewRecorder()
	ResourceSetState(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ResourceStateMaintenance, gotState)
}

func TestResourceDeleteAndPurge(t *testing.T) {
	id := uuid.New()
	var softDeleted, purged uuid.UUID
	svc := &fakeResourceService{
		softDeleteFn: func(ctx context.Context, rid uuid.UUID) error {
			softDeleted = rid
			return nil
		},
		hardDeleteFn: func(ctx context.Context, rid uuid.UUID) error {
			purged = rid
			return pkgerrors.New(pkgerrors.CodeConflict, "resource has loan history").WithReason(pkgerrors.ReasonResourceInUse)
		},
	}

	req := addRouteParam(httptest.NewRequest(http.MethodDelete, "/api/v1/resources/"+id.String(), nil), "resourceId", id.String())
	rec := httptest.NewRecorder()
	ResourceDelete(svc, testLogger())(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, softDeleted)

	req = addRouteParam(httptest.NewRequest(http.MethodDelete, "/api/v1/resources/"+id.String()+"/purge", nil), "resourceId", id.String())
	rec = httptest.NewRecorder()
	ResourcePurge(svc, testLogger())(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, id, purged)
	assert.Equal(t, string(pkgerrors.ReasonResourceInUse), decodeError(t, rec).Reason)
}

func TestResourceHandlersUnavailableWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	ResourceGet(nil, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resources/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
