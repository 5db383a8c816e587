package reservations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// ListFilter narrows reservation listings. From/To select windows that
// intersect the range.
type ListFilter struct {
	State      *enums.ReservationState
	UserID     *uuid.UUID
	ResourceID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// ListParams pairs the filter with offset pagination.
type ListParams struct {
	Filter ListFilter
	Page   pagination.PageParams
}

// ListResult is one page of reservations.
type ListResult struct {
	Items []ReservationDTO `json:"items"`
	Page  pagination.Page  `json:"page"`
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if f.State != nil {
		query = query.Where("state = ?", *f.State)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.ResourceID != nil {
		query = query.Where("resource_id = ?", *f.ResourceID)
	}
	if f.From != nil {
		query = query.Where("end_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("start_at < ?", f.To.UTC())
	}
	return query
}
