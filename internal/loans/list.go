package loans

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// ListFilter narrows loan listings. From/To bound the loan start, To exclusive.
type ListFilter struct {
	State      *enums.LoanState
	UserID     *uuid.UUID
	ResourceID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Search     string
}

// ListParams pairs the filter with offset pagination.
type ListParams struct {
	Filter ListFilter
	Page   pagination.PageParams
}

// ListResult is one page of loans.
type ListResult struct {
	Items []LoanDTO       `json:"items"`
	Page  pagination.Page `json:"page"`
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if f.State != nil {
		query = query.Where("loans.state = ?", *f.State)
	}
	if f.UserID != nil {
		query = query.Where("loans.user_id = ?", *f.UserID)
	}
	if f.ResourceID != nil {
		query = query.Where("loans.resource_id = ?", *f.ResourceID)
	}
	if f.From != nil {
		query = query.Where("loans.start_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("loans.start_at < ?", f.To.UTC())
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		columns := []string{"resources.name", "resources.code", "users.full_name", "users.email", "loans.notes"}
		query = query.
			Joins("JOIN resources ON resources.id = loans.resource_id").
			Joins("JOIN users ON users.id = loans.user_id").
			Where(db.ContainsAny(columns...), db.ContainsArgs(db.ContainsPattern(search), len(columns))...)
	}
	return query
}
