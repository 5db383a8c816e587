package loans

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// LoanDTO is the loan payload returned to clients.
type LoanDTO struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	ResourceID uuid.UUID        `json:"resource_id"`
	CreatedBy  CreatorDTO       `json:"created_by"`
	StartAt    time.Time        `json:"start_at"`
	DueAt      time.Time        `json:"due_at"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	State      enums.LoanState  `json:"state"`
	Notes      *string          `json:"notes,omitempty"`
	User       *UserSummary     `json:"user,omitempty"`
	Resource   *ResourceSummary `json:"resource,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CreatorDTO is the snapshot of the staff member who registered the loan.
type CreatorDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// UserSummary surfaces the borrower on loan listings.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// ResourceSummary surfaces the loaned resource on loan listings.
type ResourceSummary struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// LoanEventDTO is one audit trail entry.
type LoanEventDTO struct {
	ID          uuid.UUID           `json:"id"`
	Type        enums.LoanEventType `json:"type"`
	ActorUserID *uuid.UUID          `json:"actor_user_id,omitempty"`
	Metadata    json.RawMessage     `json:"metadata,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewLoanDTO maps a loan model, including preloaded relations when present.
func NewLoanDTO(loan *models.Loan) *LoanDTO {
	if loan == nil {
		return nil
	}
	dto := &LoanDTO{
		ID:         loan.ID,
		UserID:     loan.UserID,
		ResourceID: loan.ResourceID,
		CreatedBy: CreatorDTO{
			ID:    loan.CreatedByID,
			Name:  loan.CreatedByName,
			Email: loan.CreatedByEmail,
		},
		StartAt:    loan.StartAt,
		DueAt:      loan.DueAt,
		ReturnedAt: loan.ReturnedAt,
		State:      loan.State,
		Notes:      loan.Notes,
		CreatedAt:  loan.CreatedAt,
		UpdatedAt:  loan.UpdatedAt,
	}
	if loan.User != nil {
		dto.User = &UserSummary{ID: loan.User.ID, FullName: loan.User.FullName, Email: loan.User.Email}
	}
	if loan.Resource != nil {
		dto.Resource = &ResourceSummary{ID: loan.Resource.ID, Code: loan.Resource.Code, Name: loan.Resource.Name}
	}
	return dto
}

// NewLoanEventDTO maps an audit trail row.
func NewLoanEventDTO(event models.LoanEvent) LoanEventDTO {
	return LoanEventDTO{
		ID:          event.ID,
		Type:        event.Type,
		ActorUserID: event.ActorUserID,
		Metadata:    event.Metadata,
		CreatedAt:   event.CreatedAt,
	}
}
