package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Loan binds one resource to one borrower for a time window.
type Loan struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	ResourceID     uuid.UUID       `gorm:"column:resource_id;type:uuid;not null;index"`
	CreatedByID    uuid.UUID       `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedByName  string          `gorm:"column:created_by_name;not null"`
	CreatedByEmail string          `gorm:"column:created_by_email;not null"`
	StartAt        time.Time       `gorm:"column:start_at;not null"`
	DueAt          time.Time       `gorm:"column:due_at;not null;index"`
	ReturnedAt     *time.Time      `gorm:"column:returned_at"`
	State          enums.LoanState `gorm:"column:state;not null;index"`
	Notes          *string         `gorm:"column:notes"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	User     *User     `gorm:"foreignKey:UserID"`
	Resource *Resource `gorm:"foreignKey:ResourceID"`
}

func (l *Loan) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
