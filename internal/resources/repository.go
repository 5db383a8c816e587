package resources

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// Repository exposes persistence helpers for resources.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository for the provided DB connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new resource.
func (r *Repository) Create(ctx context.Context, resource *models.Resource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// FindByID loads a resource, soft-deleted or not.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).First(&resource, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

// FindByIDForUpdate loads and row-locks a single resource.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&resource, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

// FindByIDsForUpdate row-locks the given resources in ascending id order.
// Missing ids are simply absent from the result.
func (r *Repository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Resource
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExistsActiveCode reports whether a non-deleted resource other than excludeID uses code.
func (r *Repository) ExistsActiveCode(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("code = ? AND deleted_at IS NULL", strings.TrimSpace(code))
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateFields applies a partial update; keys are column names.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// CompareAndSetState moves a live resource from one state to another and
// reports whether the row was in the expected state.
func (r *Repository) CompareAndSetState(ctx context.Context, id uuid.UUID, from, to enums.ResourceState) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("id = ? AND state = ? AND deleted_at IS NULL", id, from).
		Updates(map[string]any{"state": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetState writes the state unconditionally.
func (r *Repository) SetState(ctx context.Context, id uuid.UUID, state enums.ResourceState) error {
	return r.UpdateFields(ctx, id, map[string]any{"state": state})
}

// List returns one page of resources plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.PageParams) ([]models.Resource, int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.Resource{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := page.Normalize()
	var rows []models.Resource
	if err := filter.apply(r.db.WithContext(ctx)).
		Order("name ASC").
		Order("code ASC").
		Offset(normalized.Offset()).
		Limit(normalized.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// HasOutstandingLoan reports whether an active or overdue loan references the resource.
func (r *Repository) HasOutstandingLoan(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("resource_id = ? AND state IN ?", id, enums.OutstandingLoanStates).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAnyLoan reports whether any loan, in any state, has referenced the resource.
func (r *Repository) HasAnyLoan(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("resource_id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HardDelete removes the resource row together with its loan-less reservations.
func (r *Repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("resource_id = ? AND loan_id IS NULL", id).
		Delete(&models.Reservation{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Resource{}, "id = ?", id).Error
}
