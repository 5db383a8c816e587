package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.NotificationType `gorm:"column:type;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Message     string                 `gorm:"column:message;not null"`
	RelatedID   *uuid.UUID             `gorm:"column:related_id;type:uuid"`
	RelatedKind *enums.RelatedKind     `gorm:"column:related_kind"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
