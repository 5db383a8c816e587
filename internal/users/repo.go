package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
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

// ListFilter narrows user listings.
type ListFilter struct {
	Role   *enums.UserRole
	Active *bool
	Search string
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate loads and row-locks a user so loan counting for them is serialized.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateFields applies a partial update; keys are column names.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// List returns one page of users plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.PageParams) ([]models.User, int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&models.User{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := page.Normalize()
	var rows []models.User
	if err := filter.apply(r.db.WithContext(ctx)).
		Order("full_name ASC").
		Order("id ASC").
		Offset(normalized.Offset()).
		Limit(normalized.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Role != nil {
		query = query.Where("role = ?", *f.Role)
	}
	if f.Active != nil {
		query = query.Where("is_active = ?", *f.Active)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query = query.Where(db.ContainsAny("email", "full_name"), db.ContainsArgs(db.ContainsPattern(search), 2)...)
	}
	return query
}
