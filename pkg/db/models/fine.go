package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Fine is the monetary penalty attached to a late loan.
type Fine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	LoanID    uuid.UUID       `gorm:"column:loan_id;type:uuid;not null;index"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	DaysLate  int             `gorm:"column:days_late;not null"`
	State     enums.FineState `gorm:"column:state;not null;index"`
	PaidAt    *time.Time      `gorm:"column:paid_at"`
	Notes     *string         `gorm:"column:notes"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *Fine) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
