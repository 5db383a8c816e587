package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// LoanEvent records an immutable lifecycle step of a loan.
type LoanEvent struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	LoanID      uuid.UUID           `gorm:"column:loan_id;type:uuid;not null;index"`
	ActorUserID *uuid.UUID          `gorm:"column:actor_user_id;type:uuid"`
	Type        enums.LoanEventType `gorm:"column:type;not null"`
	Metadata    json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (e *LoanEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
