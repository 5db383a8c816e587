package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
	"github.com/angelmondragon/techloans-backend/pkg/security"
)

const tempPasswordLength = 12

// Service implements admin user management.
type Service interface {
	Create(ctx context.Context, input CreateUserInput) (*CreateUserResult, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
}

// CreateUserInput is the admin request to add an account. An empty password
// generates a temporary one that is returned once.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     enums.UserRole
	MaxLoans *int
}

// CreateUserResult carries the created user and any generated password.
type CreateUserResult struct {
	User         *UserDTO `json:"user"`
	TempPassword string   `json:"temp_password,omitempty"`
}

// UpdateUserInput holds optional changes; ClearMaxLoans resets the personal limit.
type UpdateUserInput struct {
	FullName      *string
	Role          *enums.UserRole
	MaxLoans      *int
	ClearMaxLoans bool
	IsActive      *bool
}

// ListParams filters and pages the user listing.
type ListParams struct {
	Filter ListFilter
	Page   pagination.PageParams
}

// ListResult is one page of users.
type ListResult struct {
	Items []UserDTO       `json:"items"`
	Page  pagination.Page `json:"page"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        *Repository
	tx          txRunner
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService wires the users service.
func NewService(repo *Repository, tx txRunner, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, tx: tx, passwordCfg: passwordCfg, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*CreateUserResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if err := validateMaxLoans(input.MaxLoans); err != nil {
		return nil, err
	}

	password := input.Password
	tempPassword := ""
	if password == "" {
		generated, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password = generated
		tempPassword = generated
	} else if err := security.ValidatePassword(password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *UserDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := repo.Create(ctx, CreateUserDTO{
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Role:         input.Role,
			MaxLoans:     input.MaxLoans,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"created_user_id": created.ID.String(),
			"role":            created.Role,
		}), "user created")
	}
	return &CreateUserResult{User: created, TempPassword: tempPassword}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Filter.Role != nil && !params.Filter.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	rows, total, err := s.repo.List(ctx, params.Filter, params.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	items := make([]UserDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params.Page, total)}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	fields := map[string]any{}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name cannot be empty")
		}
		fields["full_name"] = name
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		fields["role"] = *input.Role
	}
	if input.ClearMaxLoans {
		fields["max_loans"] = nil
	} else if input.MaxLoans != nil {
		if err := validateMaxLoans(input.MaxLoans); err != nil {
			return nil, err
		}
		fields["max_loans"] = *input.MaxLoans
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes provided")
	}

	var updated *UserDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByIDForUpdate(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if err := repo.UpdateFields(ctx, id, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
		}
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload user")
		}
		updated = FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func validateMaxLoans(limit *int) error {
	if limit != nil && *limit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_loans must be zero or greater")
	}
	return nil
}
