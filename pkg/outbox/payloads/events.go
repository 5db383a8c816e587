package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// LoanEvent describes a loan after a lifecycle transition.
type LoanEvent struct {
	LoanID     uuid.UUID       `json:"loan_id"`
	UserID     uuid.UUID       `json:"user_id"`
	ResourceID uuid.UUID       `json:"resource_id"`
	State      enums.LoanState `json:"state"`
	StartAt    time.Time       `json:"start_at"`
	DueAt      time.Time       `json:"due_at"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
}

// LoanRenewedEvent carries the due date before and after a renewal.
type LoanRenewedEvent struct {
	LoanID        uuid.UUID `json:"loan_id"`
	UserID        uuid.UUID `json:"user_id"`
	ResourceID    uuid.UUID `json:"resource_id"`
	PreviousDueAt time.Time `json:"previous_due_at"`
	DueAt         time.Time `json:"due_at"`
}

// ReservationEvent describes a reservation after a state change.
type ReservationEvent struct {
	ReservationID uuid.UUID              `json:"reservation_id"`
	UserID        uuid.UUID              `json:"user_id"`
	ResourceID    uuid.UUID              `json:"resource_id"`
	State         enums.ReservationState `json:"state"`
	StartAt       time.Time              `json:"start_at"`
	EndAt         time.Time              `json:"end_at"`
	LoanID        *uuid.UUID             `json:"loan_id,omitempty"`
}

// FineEvent describes a fine after a state change.
type FineEvent struct {
	FineID   uuid.UUID       `json:"fine_id"`
	LoanID   uuid.UUID       `json:"loan_id"`
	UserID   uuid.UUID       `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	DaysLate int             `json:"days_late"`
	State    enums.FineState `json:"state"`
}
