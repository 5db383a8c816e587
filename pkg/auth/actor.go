package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Actor is the authenticated caller a service operation runs on behalf of.
// The zero value is the system (sweep) actor.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsSystem reports whether the actor is the background scheduler.
func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil
}

// IsStaff reports whether the actor may act on other users' records.
func (a Actor) IsStaff() bool {
	return a.IsSystem() || a.Role.IsStaff()
}

// CanView reports whether the actor may read a record owned by ownerID.
func (a Actor) CanView(ownerID uuid.UUID) bool {
	return a.IsStaff() || a.UserID == ownerID
}

// UserIDPtr returns nil for the system actor.
func (a Actor) UserIDPtr() *uuid.UUID {
	if a.IsSystem() {
		return nil
	}
	id := a.UserID
	return &id
}
