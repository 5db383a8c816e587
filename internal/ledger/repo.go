package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
)

// Repository manages persistence for loan audit events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LoanEvent) error
	ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LoanEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error) {
	var events []models.LoanEvent
	if err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
