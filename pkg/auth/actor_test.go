package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

func TestActorVisibility(t *testing.T) {
	owner := uuid.New()
	student := Actor{UserID: owner, Role: enums.UserRoleStudent}
	other := Actor{UserID: uuid.New(), Role: enums.UserRoleStudent}
	worker := Actor{UserID: uuid.New(), Role: enums.UserRoleWorker}

	require.True(t, student.CanView(owner))
	require.False(t, other.CanView(owner))
	require.True(t, worker.CanView(owner))
	require.True(t, Actor{}.CanView(owner))

	require.Nil(t, Actor{}.UserIDPtr())
	require.Equal(t, owner, *student.UserIDPtr())
}
