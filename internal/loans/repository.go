package loans

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

// Repository exposes loan persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a loans repository to db.
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

// Create inserts a loan.
func (r *Repository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// FindByID loads a loan with its borrower and resource.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Resource").
		First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

// FindByIDForUpdate row-locks a loan.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

// CountOutstandingByUser counts the user's active and overdue loans.
func (r *Repository) CountOutstandingByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("user_id = ? AND state IN ?", userID, enums.OutstandingLoanStates).
		Count(&count).Error
	return count, err
}

// TransitionState moves a loan to `to` only when it is currently in one of
// `from`, applying extra column updates in the same statement.
func (r *Repository) TransitionState(ctx context.Context, id uuid.UUID, from []enums.LoanState, to enums.LoanState, extra map[string]any) (bool, error) {
	fields := map[string]any{"state": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		fields[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateFields applies a partial update; keys are column names.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a loan along with its fines and detaches reservations that
// were converted into it. Audit events are kept.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("loan_id = ?", id).Delete(&models.Fine{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("loan_id = ?", id).
		Update("loan_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Loan{}, "id = ?", id).Error
}

// List returns one page of loans plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.PageParams) ([]models.Loan, int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.Loan{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := page.Normalize()
	var rows []models.Loan
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.Loan{})).
		Select("loans.*").
		Preload("User").
		Preload("Resource").
		Order("loans.start_at DESC").
		Order("loans.id DESC").
		Offset(normalized.Offset()).
		Limit(normalized.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListActiveDueBefore returns active loans whose due time is before cutoff, locked.
func (r *Repository) ListActiveDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("state = ? AND due_at < ?", enums.LoanStateActive, cutoff.UTC()).
		Order("due_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListActiveDueBetween returns active loans due in [from, to).
func (r *Repository) ListActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Resource").
		Where("state = ? AND due_at >= ? AND due_at < ?", enums.LoanStateActive, from.UTC(), to.UTC()).
		Order("due_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListOverdue returns every loan currently flagged overdue.
func (r *Repository) ListOverdue(ctx context.Context) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Resource").
		Where("state = ?", enums.LoanStateOverdue).
		Order("due_at ASC").
		Find(&rows).Error
	return rows, err
}
