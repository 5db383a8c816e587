package resources

import (
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// ListFilter describes the supported filter knobs for the catalog listing.
type ListFilter struct {
	State          *enums.ResourceState
	Category       string
	Search         string
	IncludeDeleted bool
}

// ListParams pairs the filter with offset pagination.
type ListParams struct {
	Filter ListFilter
	Page   pagination.PageParams
}

// ListResult is one page of resources.
type ListResult struct {
	Items []ResourceDTO   `json:"items"`
	Page  pagination.Page `json:"page"`
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if !f.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if f.State != nil {
		query = query.Where("state = ?", *f.State)
	}
	if category := strings.TrimSpace(f.Category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query = query.Where(db.ContainsAny("code", "name", "description"), db.ContainsArgs(db.ContainsPattern(search), 3)...)
	}
	return query
}
