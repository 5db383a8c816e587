package reservations

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

// Overlap uses the three-clause test with inclusive bounds: the candidate
// contains the existing start, contains the existing end, or lies inside the
// existing window.
const (
	reservationOverlapSQL = "(? <= start_at AND ? >= start_at) OR (? <= end_at AND ? >= end_at) OR (start_at <= ? AND end_at >= ?)"
	loanOverlapSQL        = "(? <= start_at AND ? >= start_at) OR (? <= due_at AND ? >= due_at) OR (start_at <= ? AND due_at >= ?)"
)

// Repository exposes reservation persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a reservations repository to db.
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

// Create inserts a reservation.
func (r *Repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// FindByID loads a reservation with its resource.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Preload("Resource").
		First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindByIDForUpdate row-locks a reservation.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// TransitionState moves a reservation to `to` only from one of `from`.
func (r *Repository) TransitionState(ctx context.Context, id uuid.UUID, from []enums.ReservationState, to enums.ReservationState, extra map[string]any) (bool, error) {
	fields := map[string]any{"state": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		fields[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConflictingReservations returns confirmed reservations of the resource that
// overlap [start, end].
func (r *Repository) ConflictingReservations(ctx context.Context, resourceID uuid.UUID, start, end time.Time) ([]models.Reservation, error) {
	start, end = start.UTC(), end.UTC()
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND state = ?", resourceID, enums.ReservationStateConfirmed).
		Where(reservationOverlapSQL, start, end, start, end, start, end).
		Order("start_at ASC").
		Find(&rows).Error
	return rows, err
}

// ConflictingLoans returns outstanding loans of the resource whose window
// overlaps [start, end].
func (r *Repository) ConflictingLoans(ctx context.Context, resourceID uuid.UUID, start, end time.Time) ([]models.Loan, error) {
	start, end = start.UTC(), end.UTC()
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND state IN ?", resourceID, enums.OutstandingLoanStates).
		Where(loanOverlapSQL, start, end, start, end, start, end).
		Order("start_at ASC").
		Find(&rows).Error
	return rows, err
}

// List returns one page of reservations plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.PageParams) ([]models.Reservation, int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.Reservation{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := page.Normalize()
	var rows []models.Reservation
	if err := filter.apply(r.db.WithContext(ctx)).
		Preload("Resource").
		Order("start_at ASC").
		Order("id ASC").
		Offset(normalized.Offset()).
		Limit(normalized.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
