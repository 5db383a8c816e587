package fines

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// FineDTO is the fine payload returned to clients.
type FineDTO struct {
	ID        uuid.UUID       `json:"id"`
	LoanID    uuid.UUID       `json:"loan_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	DaysLate  int             `json:"days_late"`
	State     enums.FineState `json:"state"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewFineDTO(f *models.Fine) *FineDTO {
	if f == nil {
		return nil
	}
	return &FineDTO{
		ID:        f.ID,
		LoanID:    f.LoanID,
		UserID:    f.UserID,
		Amount:    f.Amount,
		DaysLate:  f.DaysLate,
		State:     f.State,
		PaidAt:    f.PaidAt,
		Notes:     f.Notes,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
