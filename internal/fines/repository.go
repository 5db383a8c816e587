package fines

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// Repository exposes fine persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a fines repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, fine *models.Fine) error {
	return r.db.WithContext(ctx).Create(fine).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).First(&fine, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&fine, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

// ActiveForLoan returns the non-cancelled fine of a loan, or nil.
func (r *Repository) ActiveForLoan(ctx context.Context, loanID uuid.UUID) (*models.Fine, error) {
	var rows []models.Fine
	if err := r.db.WithContext(ctx).
		Where("loan_id = ? AND state <> ?", loanID, enums.FineStateCancelled).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// TransitionState moves a fine to `to` only while it is still pending.
func (r *Repository) TransitionState(ctx context.Context, id uuid.UUID, to enums.FineState, extra map[string]any) (bool, error) {
	fields := map[string]any{"state": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		fields[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Where("id = ? AND state = ?", id, enums.FineStatePending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListUnfinedOverdueLoanIDs returns overdue, unreturned loans that carry no
// non-cancelled fine, oldest due first.
func (r *Repository) ListUnfinedOverdueLoanIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("state = ? AND returned_at IS NULL", enums.LoanStateOverdue).
		Where("NOT EXISTS (SELECT 1 FROM fines WHERE fines.loan_id = loans.id AND fines.state <> ?)", enums.FineStateCancelled).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// List returns one page of fines plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.PageParams) ([]models.Fine, int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.Fine{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := page.Normalize()
	var rows []models.Fine
	if err := filter.apply(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Order("id DESC").
		Offset(normalized.Offset()).
		Limit(normalized.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
