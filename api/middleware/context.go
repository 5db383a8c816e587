package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/techloans-backend/pkg/auth"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated caller. ok is false when the
// request never passed through Auth.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || userID == uuid.Nil {
		return pkgAuth.Actor{}, false
	}
	role := enums.UserRole(RoleFromContext(ctx))
	if !role.IsValid() {
		return pkgAuth.Actor{}, false
	}
	return pkgAuth.Actor{UserID: userID, Role: role}, true
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, string(actor.Role))
}
