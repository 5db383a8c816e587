package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// ReservationDTO is the reservation payload returned to clients.
type ReservationDTO struct {
	ID         uuid.UUID              `json:"id"`
	UserID     uuid.UUID              `json:"user_id"`
	ResourceID uuid.UUID              `json:"resource_id"`
	LoanID     *uuid.UUID             `json:"loan_id,omitempty"`
	StartAt    time.Time              `json:"start_at"`
	EndAt      time.Time              `json:"end_at"`
	State      enums.ReservationState `json:"state"`
	Notes      *string                `json:"notes,omitempty"`
	Resource   *ResourceSummary       `json:"resource,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// ResourceSummary surfaces the reserved resource.
type ResourceSummary struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// WindowConflict describes an existing booking that overlaps a requested window.
type WindowConflict struct {
	Kind    string    `json:"kind"`
	ID      uuid.UUID `json:"id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// NewReservationDTO maps a reservation model.
func NewReservationDTO(r *models.Reservation) *ReservationDTO {
	if r == nil {
		return nil
	}
	dto := &ReservationDTO{
		ID:         r.ID,
		UserID:     r.UserID,
		ResourceID: r.ResourceID,
		LoanID:     r.LoanID,
		StartAt:    r.StartAt,
		EndAt:      r.EndAt,
		State:      r.State,
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Resource != nil {
		dto.Resource = &ResourceSummary{ID: r.Resource.ID, Code: r.Resource.Code, Name: r.Resource.Name}
	}
	return dto
}
