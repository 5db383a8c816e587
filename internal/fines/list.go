package fines

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// ListFilter narrows fine listings.
type ListFilter struct {
	State  *enums.FineState
	UserID *uuid.UUID
	LoanID *uuid.UUID
}

// ListParams pairs the filter with offset pagination.
type ListParams struct {
	Filter ListFilter
	Page   pagination.PageParams
}

// ListResult is one page of fines.
type ListResult struct {
	Items []FineDTO       `json:"items"`
	Page  pagination.Page `json:"page"`
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if f.State != nil {
		query = query.Where("state = ?", *f.State)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.LoanID != nil {
		query = query.Where("loan_id = ?", *f.LoanID)
	}
	return query
}
