package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Reservation holds a future window on a resource until it is confirmed into a loan.
type Reservation struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	ResourceID uuid.UUID              `gorm:"column:resource_id;type:uuid;not null;index"`
	LoanID     *uuid.UUID             `gorm:"column:loan_id;type:uuid"`
	StartAt    time.Time              `gorm:"column:start_at;not null"`
	EndAt      time.Time              `gorm:"column:end_at;not null"`
	State      enums.ReservationState `gorm:"column:state;not null;index"`
	Notes      *string                `gorm:"column:notes"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Resource *Resource `gorm:"foreignKey:ResourceID"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
