package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/ledger"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/resources"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/internal/users"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
)

type harness struct {
	conn     *gorm.DB
	svc      Service
	settings settings.Service
	clock    time.Time
	staff    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, dbtest.Open(t, models.All()...))
}

func newHarnessOn(t *testing.T, conn *gorm.DB) *harness {
	t.Helper()
	h := &harness{conn: conn, clock: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return h.clock }

	settingsSvc, err := settings.NewService(settings.NewRepository(conn), db.NewFromConn(conn), nil)
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	notifySvc, err := notifications.NewService(notifications.NewRepository(conn), time.UTC, now)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Resources:     resources.NewRepository(conn),
		Users:         users.NewRepository(conn),
		Settings:      settingsSvc,
		Ledger:        ledgerSvc,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		Notifications: notifySvc,
		Tx:            db.NewFromConn(conn),
		Now:           now,
	})
	require.NoError(t, err)
	h.svc = svc
	h.settings = settingsSvc
	h.staff = h.user(t, enums.UserRoleWorker, nil)
	return h
}

func (h *harness) user(t *testing.T, role enums.UserRole, maxLoans *int) *models.User {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FullName:     "User " + string(role),
		Role:         role,
		MaxLoans:     maxLoans,
		IsActive:     true,
	}
	require.NoError(t, h.conn.Create(user).Error)
	return user
}

func (h *harness) resource(t *testing.T, code string, state enums.ResourceState) *models.Resource {
	t.Helper()
	res := &models.Resource{Code: code, Name: "Resource " + code, State: state}
	require.NoError(t, h.conn.Create(res).Error)
	return res
}

func (h *harness) staffActor() auth.Actor {
	return auth.Actor{UserID: h.staff.ID, Role: h.staff.Role}
}

func (h *harness) lend(t *testing.T, borrower *models.User, due time.Time, resources ...*models.Resource) []LoanDTO {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(resources))
	for _, res := range resources {
		ids = append(ids, res.ID)
	}
	loans, err := h.svc.CreateLoan(context.Background(), CreateLoanInput{
		UserID:      borrower.ID,
		ResourceIDs: ids,
		DueAt:       due,
		CreatorID:   h.staff.ID,
	})
	require.NoError(t, err)
	return loans
}

func (h *harness) resourceState(t *testing.T, id uuid.UUID) enums.ResourceState {
	t.Helper()
	var res models.Resource
	require.NoError(t, h.conn.First(&res, "id = ?", id).Error)
	return res.State
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

// requireLoanedInvariant checks that a resource is loaned exactly when one
// outstanding loan references it.
func (h *harness) requireLoanedInvariant(t *testing.T) {
	t.Helper()
	var all []models.Resource
	require.NoError(t, h.conn.Find(&all).Error)
	for _, res := range all {
		outstanding := h.count(t, &models.Loan{}, "resource_id = ? AND state IN ?", res.ID, enums.OutstandingLoanStates)
		require.LessOrEqual(t, outstanding, int64(1), "resource %s has several outstanding loans", res.Code)
		require.Equal(t, outstanding == 1, res.State == enums.ResourceStateLoaned, "resource %s state %s with %d outstanding loans", res.Code, res.State, outstanding)
	}
}

func requireReason(t *testing.T, err error, code pkgerrors.Code, reason pkgerrors.Reason) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
	require.Equal(t, reason, typed.Reason())
	return typed
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
}

func ptr[T any](v T) *T { return &v }
