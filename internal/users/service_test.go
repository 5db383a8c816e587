package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
	"github.com/angelmondragon/techloans-backend/pkg/security"
)

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) Service {
	t.Helper()
	conn := dbtest.Open(t, &models.User{})
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), testPasswordConfig, nil)
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestCreateUserHashesPassword(t *testing.T) {
	conn := dbtest.Open(t, &models.User{})
	repo := NewRepository(conn)
	svc, err := NewService(repo, db.NewFromConn(conn), testPasswordConfig, nil)
	require.NoError(t, err)

	res, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "  Ana@Example.com ",
		Password: "secret123",
		FullName: "Ana Pérez",
		Role:     enums.UserRoleStudent,
	})
	require.NoError(t, err)
	require.Empty(t, res.TempPassword)
	require.Equal(t, "ana@example.com", res.User.Email)
	require.True(t, res.User.IsActive)

	stored, err := repo.FindByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	ok, err := security.VerifyPassword("secret123", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateUserGeneratesTempPassword(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "worker@example.com",
		FullName: "Worker",
		Role:     enums.UserRoleWorker,
	})
	require.NoError(t, err)
	require.Len(t, res.TempPassword, tempPasswordLength)
}

func TestCreateUserValidation(t *testing.T) {
	svc := newTestService(t)
	negative := -1
	cases := []CreateUserInput{
		{Email: "bad", FullName: "x", Role: enums.UserRoleStudent},
		{Email: "a@b.c", FullName: " ", Role: enums.UserRoleStudent},
		{Email: "a@b.c", FullName: "x", Role: "guest"},
		{Email: "a@b.c", FullName: "x", Role: enums.UserRoleStudent, Password: "short"},
		{Email: "a@b.c", FullName: "x", Role: enums.UserRoleStudent, MaxLoans: &negative},
	}
	for _, input := range cases {
		_, err := svc.Create(context.Background(), input)
		requireCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	input := CreateUserInput{Email: "dup@example.com", FullName: "Dup", Role: enums.UserRoleStudent}
	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	input.Email = "DUP@example.com"
	_, err = svc.Create(context.Background(), input)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestUpdateUserLimitAndRole(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.Create(context.Background(), CreateUserInput{Email: "s@example.com", FullName: "S", Role: enums.UserRoleStudent})
	require.NoError(t, err)

	limit := 5
	role := enums.UserRoleWorker
	updated, err := svc.Update(context.Background(), res.User.ID, UpdateUserInput{MaxLoans: &limit, Role: &role})
	require.NoError(t, err)
	require.NotNil(t, updated.MaxLoans)
	require.Equal(t, 5, *updated.MaxLoans)
	require.Equal(t, enums.UserRoleWorker, updated.Role)

	inactive := false
	updated, err = svc.Update(context.Background(), res.User.ID, UpdateUserInput{ClearMaxLoans: true, IsActive: &inactive})
	require.NoError(t, err)
	require.Nil(t, updated.MaxLoans)
	require.False(t, updated.IsActive)

	_, err = svc.Update(context.Background(), uuid.New(), UpdateUserInput{IsActive: &inactive})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.Update(context.Background(), res.User.ID, UpdateUserInput{})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListUsersFiltersAndPages(t *testing.T) {
	svc := newTestService(t)
	for i, name := range []string{"Carla", "Beto", "Ana"} {
		role := enums.UserRoleStudent
		if i == 0 {
			role = enums.UserRoleWorker
		}
		_, err := svc.Create(context.Background(), CreateUserInput{
			Email:    name + "@example.com",
			FullName: name,
			Role:     role,
		})
		require.NoError(t, err)
	}

	student := enums.UserRoleStudent
	res, err := svc.List(context.Background(), ListParams{
		Filter: ListFilter{Role: &student},
		Page:   pagination.PageParams{Page: 1, Size: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, "Ana", res.Items[0].FullName)
	require.EqualValues(t, 2, res.Page.Total)
	require.Equal(t, 2, res.Page.TotalPages)

	res, err = svc.List(context.Background(), ListParams{Filter: ListFilter{Search: "carl"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, enums.UserRoleWorker, res.Items[0].Role)
}

func TestEffectiveLimit(t *testing.T) {
	require.Equal(t, 3, EffectiveLimit(&models.User{}, 3))
	personal := 1
	require.Equal(t, 1, EffectiveLimit(&models.User{MaxLoans: &personal}, 3))
	require.Equal(t, 3, EffectiveLimit(nil, 3))
}
