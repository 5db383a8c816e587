package fines

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/internal/ledger"
	"github.com/angelmondragon/techloans-backend/internal/loans"
	"github.com/angelmondragon/techloans-backend/internal/notifications"
	"github.com/angelmondragon/techloans-backend/internal/settings"
	"github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

type harness struct {
	conn     *gorm.DB
	svc      Service
	settings settings.Service
	clock    time.Time
	worker   *models.User
	admin    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, models.All()...)
	h := &harness{conn: conn, clock: time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return h.clock }

	settingsSvc, err := settings.NewService(settings.NewRepository(conn), db.NewFromConn(conn), nil)
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	notifySvc, err := notifications.NewService(notifications.NewRepository(conn), time.UTC, now)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Loans:         loans.NewRepository(conn),
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
	h.worker = h.user(t, enums.UserRoleWorker)
	h.admin = h.user(t, enums.UserRoleAdministrator)
	return h
}

func (h *harness) user(t *testing.T, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FullName:     "User " + string(role),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, h.conn.Create(user).Error)
	return user
}

// loan inserts a loan row directly so tests can pin its dates and state.
func (h *harness) loan(t *testing.T, borrower *models.User, state enums.LoanState, due time.Time, returned *time.Time) *models.Loan {
	t.Helper()
	resourceState := enums.ResourceStateAvailable
	if state.IsOutstanding() {
		resourceState = enums.ResourceStateLoaned
	}
	res := &models.Resource{Code: "RES-" + uuid.NewString()[:8], Name: "Resource", State: resourceState}
	require.NoError(t, h.conn.Create(res).Error)
	loan := &models.Loan{
		UserID:         borrower.ID,
		ResourceID:     res.ID,
		CreatedByID:    h.worker.ID,
		CreatedByName:  h.worker.FullName,
		CreatedByEmail: h.worker.Email,
		StartAt:        time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		DueAt:          due,
		ReturnedAt:     returned,
		State:          state,
	}
	require.NoError(t, h.conn.Create(loan).Error)
	return loan
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func actorOf(user *models.User) auth.Actor {
	return auth.Actor{UserID: user.ID, Role: user.Role}
}

func date(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func requireReason(t *testing.T, err error, code pkgerrors.Code, reason pkgerrors.Reason) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
	require.Equal(t, reason, typed.Reason())
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
}

func TestCalculateFineForLateReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.user(t, enums.UserRoleStudent)
	loan := h.loan(t, student, enums.LoanStateReturned, date(8), ptr(date(11)))

	fine, err := h.svc.Calculate(ctx, actorOf(h.worker), loan.ID)
	require.NoError(t, err)
	require.Equal(t, 3, fine.DaysLate)
	require.True(t, decimal.NewFromInt(15000).Equal(fine.Amount), "amount %s", fine.Amount)
	require.Equal(t, enums.FineStatePending, fine.State)
	require.Equal(t, student.ID, fine.UserID)

	require.Equal(t, int64(1), h.count(t, &models.LoanEvent{}, "loan_id = ? AND type = ?", loan.ID, enums.LoanEventFineApplied))
	require.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}, "aggregate_id = ?", fine.ID))
	require.Equal(t, int64(1), h.count(t, &models.Notification{}, "user_id = ? AND type = ?", student.ID, enums.NotificationTypeFineApplied))

	_, err = h.svc.Calculate(ctx, actorOf(h.worker), loan.ID)
	requireReason(t, err, pkgerrors.CodeConflict, pkgerrors.ReasonAlreadyFined)
	require.Equal(t, int64(1), h.count(t, &models.Fine{}, "loan_id = ?", loan.ID))
}

func TestCalculateFineUsesNowForUnreturnedLoans(t *testing.T) {
	h := newHarness(t)
	student := h.user(t, enums.UserRoleStudent)
	loan := h.loan(t, student, enums.LoanStateOverdue, date(18), nil)

	fine, err := h.svc.Calculate(context.Background(), auth.Actor{}, loan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fine.DaysLate)
	require.True(t, decimal.NewFromInt(10000).Equal(fine.Amount))

	var event models.LoanEvent
	require.NoError(t, h.conn.First(&event, "loan_id = ?", loan.ID).Error)
	require.Nil(t, event.ActorUserID)
}

func TestCalculateFineRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.user(t, enums.UserRoleStudent)

	_, err := h.svc.Calculate(ctx, actorOf(h.worker), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	onTime := h.loan(t, student, enums.LoanStateReturned, date(8), ptr(date(8).Add(20*time.Hour)))
	_, err = h.svc.Calculate(ctx, actorOf(h.worker), onTime.ID)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonNotOverdue)

	notDue := h.loan(t, student, enums.LoanStateActive, date(25), nil)
	_, err = h.svc.Calculate(ctx, actorOf(h.worker), notDue.ID)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonNotOverdue)

	late := h.loan(t, student, enums.LoanStateOverdue, date(10), nil)
	_, err = h.svc.Calculate(ctx, actorOf(student), late.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.settings.Update(ctx, map[string]string{settings.KeyFinesEnabled: "false"})
	require.NoError(t, err)
	_, err = h.svc.Calculate(ctx, actorOf(h.worker), late.ID)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonFinesDisabled)
	require.Equal(t, int64(0), h.count(t, &models.Fine{}, "1 = 1"))
}

func TestCalculateFineUsesConfiguredRate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.user(t, enums.UserRoleStudent)
	_, err := h.settings.Update(ctx, map[string]string{settings.KeyFinePerDay: "2500.50"})
	require.NoError(t, err)

	loan := h.loan(t, student, enums.LoanStateReturned, date(8), ptr(date(10).Add(3*time.Hour)))
	fine, err := h.svc.Calculate(ctx, actorOf(h.worker), loan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fine.DaysLate)
	require.True(t, decimal.RequireFromString("5001").Equal(fine.Amount), "amount %s", fine.Amount)
}

func TestFineTerminalTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.user(t, enums.UserRoleStudent)

	paidLoan := h.loan(t, student, enums.LoanStateReturned, date(8), ptr(date(11)))
	fine, err := h.svc.Calculate(ctx, actorOf(h.worker), paidLoan.ID)
	require.NoError(t, err)

	paid, err := h.svc.MarkPaid(ctx, actorOf(h.worker), fine.ID, ptr("cash at desk"))
	require.NoError(t, err)
	require.Equal(t, enums.FineStatePaid, paid.State)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.Notes)
	require.Contains(t, *paid.Notes, "cash at desk")
	require.Equal(t, int64(1), h.count(t, &models.Notification{}, "related_id = ? AND type = ?", fine.ID, enums.NotificationTypeFinePaid))

	_, err = h.svc.MarkPaid(ctx, actorOf(h.worker), fine.ID, nil)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonAlreadyPaid)
	_, err = h.svc.Cancel(ctx, actorOf(h.admin), fine.ID, nil)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonAlreadyPaid)

	cancelLoan := h.loan(t, student, enums.LoanStateReturned, date(8), ptr(date(12)))
	second, err := h.svc.Calculate(ctx, actorOf(h.worker), cancelLoan.ID)
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, actorOf(h.worker), second.ID, nil)
	requireCode(t, err, pkgerrors.CodeForbidden)

	cancelled, err := h.svc.Cancel(ctx, actorOf(h.admin), second.ID, ptr("waived"))
	require.NoError(t, err)
	require.Equal(t, enums.FineStateCancelled, cancelled.State)
	require.Nil(t, cancelled.PaidAt)

	_, err = h.svc.MarkPaid(ctx, actorOf(h.worker), second.ID, nil)
	requireReason(t, err, pkgerrors.CodeInvalidState, pkgerrors.ReasonAlreadyCancelled)

	// A cancelled fine no longer blocks a new one.
	again, err := h.svc.Calculate(ctx, actorOf(h.worker), cancelLoan.ID)
	require.NoError(t, err)
	require.Equal(t, 4, again.DaysLate)

	_, err = h.svc.MarkPaid(ctx, actorOf(h.worker), uuid.New(), nil)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListUnfinedOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.user(t, enums.UserRoleStudent)

	unfined := h.loan(t, student, enums.LoanStateOverdue, date(10), nil)
	fined := h.loan(t, student, enums.LoanStateOverdue, date(11), nil)
	withCancelled := h.loan(t, student, enums.LoanStateOverdue, date(12), nil)
	h.loan(t, student, enums.LoanStateReturned, date(9), ptr(date(15)))
	h.loan(t, student, enums.LoanStateActive, date(25), nil)

	_, err := h.svc.Calculate(ctx, actorOf(h.worker), fined.ID)
	require.NoError(t, err)
	cancelled, err := h.svc.Calculate(ctx, actorOf(h.worker), withCancelled.ID)
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, actorOf(h.admin), cancelled.ID, nil)
	require.NoError(t, err)

	ids, err := h.svc.ListUnfinedOverdue(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{unfined.ID, withCancelled.ID}, ids)

	limited, err := h.svc.ListUnfinedOverdue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{unfined.ID}, limited)
}

func TestListFinesScopesStudents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.user(t, enums.UserRoleStudent)
	second := h.user(t, enums.UserRoleStudent)

	a, err := h.svc.Calculate(ctx, actorOf(h.worker), h.loan(t, first, enums.LoanStateReturned, date(8), ptr(date(11))).ID)
	require.NoError(t, err)
	b, err := h.svc.Calculate(ctx, actorOf(h.worker), h.loan(t, second, enums.LoanStateReturned, date(8), ptr(date(10))).ID)
	require.NoError(t, err)

	own, err := h.svc.List(ctx, actorOf(first), ListParams{Page: pagination.PageParams{Page: 1, Size: 10}})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.Equal(t, a.ID, own.Items[0].ID)

	_, err = h.svc.Get(ctx, actorOf(first), b.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	pending := enums.FineStatePending
	all, err := h.svc.List(ctx, actorOf(h.worker), ListParams{
		Filter: ListFilter{State: &pending},
		Page:   pagination.PageParams{Page: 1, Size: 10},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), all.Page.Total)

	bad := enums.FineState("lost")
	_, err = h.svc.List(ctx, actorOf(h.worker), ListParams{Filter: ListFilter{State: &bad}})
	requireCode(t, err, pkgerrors.CodeValidation)
}
