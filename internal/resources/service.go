package resources

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

const (
	maxCodeLength = 64
	maxNameLength = 200

	// Unique index over codes of non-deleted rows (partial on postgres,
	// generated column on mysql).
	activeCodeKey = "resources_active_code_key"
)

// Service exposes the resource registry.
type Service interface {
	Create(ctx context.Context, input CreateResourceInput) (*ResourceDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ResourceDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateResourceInput) (*ResourceDTO, error)
	SetState(ctx context.Context, id uuid.UUID, state enums.ResourceState) (*ResourceDTO, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*ResourceDTO, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// CreateResourceInput holds the payload to register a resource. State may be
// available or maintenance and defaults to available.
type CreateResourceInput struct {
	Code        string
	Name        string
	Category    *string
	Description *string
	Location    *string
	ImageURL    *string
	State       *enums.ResourceState
}

// UpdateResourceInput holds optional detail changes. State changes go through SetState.
type UpdateResourceInput struct {
	Code        *string
	Name        *string
	Category    *string
	Description *string
	Location    *string
	ImageURL    *string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService constructs the resource registry service.
func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resource repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateResourceInput) (*ResourceDTO, error) {
	code, err := validateCode(input.Code)
	if err != nil {
		return nil, err
	}
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	state := enums.ResourceStateAvailable
	if input.State != nil {
		state = *input.State
	}
	if state != enums.ResourceStateAvailable && state != enums.ResourceStateMaintenance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial state must be available or maintenance")
	}

	resource := &models.Resource{
		Code:        code,
		Name:        name,
		Category:    trimOptional(input.Category),
		Description: trimOptional(input.Description),
		Location:    trimOptional(input.Location),
		ImageURL:    trimOptional(input.ImageURL),
		State:       state,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.ExistsActiveCode(ctx, code, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check resource code")
		}
		if taken {
			return duplicateCodeError(code)
		}
		if err := repo.Create(ctx, resource); err != nil {
			if db.IsUniqueViolation(err, activeCodeKey) {
				return duplicateCodeError(code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create resource")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"resource_id": resource.ID.String(),
			"code":        resource.Code,
		}), "resource created")
	}
	return NewResourceDTO(resource), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ResourceDTO, error) {
	resource, err := s.load(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	return NewResourceDTO(resource), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Filter.State != nil && !params.Filter.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid state filter")
	}
	rows, total, err := s.repo.List(ctx, params.Filter, params.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list resources")
	}
	items := make([]ResourceDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewResourceDTO(&rows[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params.Page, total)}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateResourceInput) (*ResourceDTO, error) {
	fields := map[string]any{}
	var newCode string
	if input.Code != nil {
		code, err := validateCode(*input.Code)
		if err != nil {
			return nil, err
		}
		newCode = code
		fields["code"] = code
	}
	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	setOptional(fields, "category", input.Category)
	setOptional(fields, "description", input.Description)
	setOptional(fields, "location", input.Location)
	setOptional(fields, "image_url", input.ImageURL)
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes provided")
	}

	var updated *models.Resource
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, id, true); err != nil {
			return err
		}
		if newCode != "" {
			taken, err := repo.ExistsActiveCode(ctx, newCode, &id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check resource code")
			}
			if taken {
				return duplicateCodeError(newCode)
			}
		}
		if err := repo.UpdateFields(ctx, id, fields); err != nil {
			if db.IsUniqueViolation(err, activeCodeKey) {
				return duplicateCodeError(newCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update resource")
		}
		reloaded, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload resource")
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewResourceDTO(updated), nil
}

// SetState changes the operational state. Loans own the loaned state, so it
// cannot be entered manually and cannot be left while a loan is outstanding.
func (s *service) SetState(ctx context.Context, id uuid.UUID, state enums.ResourceState) (*ResourceDTO, error) {
	if !state.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid resource state")
	}
	if state == enums.ResourceStateLoaned {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "loaned state is set by creating a loan")
	}

	var updated *models.Resource
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resource, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if resource.IsDeleted() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "resource is deleted")
		}
		if resource.State == state {
			updated = resource
			return nil
		}
		if resource.State == enums.ResourceStateLoaned {
			outstanding, err := repo.HasOutstandingLoan(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check outstanding loans")
			}
			if outstanding {
				return resourceInUseError(id)
			}
		}
		if err := repo.SetState(ctx, id, state); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update resource state")
		}
		resource.State = state
		updated = resource
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"resource_id": id.String(),
			"state":       state,
		}), "resource state changed")
	}
	return NewResourceDTO(updated), nil
}

func (s *service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resource, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if resource.IsDeleted() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "resource already deleted")
		}
		outstanding, err := repo.HasOutstandingLoan(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check outstanding loans")
		}
		if outstanding {
			return resourceInUseError(id)
		}
		if err := repo.UpdateFields(ctx, id, map[string]any{"deleted_at": s.now().UTC()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete resource")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "resource_id", id.String()), "resource soft deleted")
	}
	return nil
}

// Restore clears the soft-delete marker. The code must still be free among live resources.
func (s *service) Restore(ctx context.Context, id uuid.UUID) (*ResourceDTO, error) {
	var restored *models.Resource
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resource, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if !resource.IsDeleted() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "resource is not deleted").
				WithReason(pkgerrors.ReasonNotDeleted)
		}
		taken, err := repo.ExistsActiveCode(ctx, resource.Code, &id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check resource code")
		}
		if taken {
			return duplicateCodeError(resource.Code)
		}
		if err := repo.UpdateFields(ctx, id, map[string]any{"deleted_at": nil}); err != nil {
			if db.IsUniqueViolation(err, activeCodeKey) {
				return duplicateCodeError(resource.Code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore resource")
		}
		resource.DeletedAt = nil
		restored = resource
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "resource_id", id.String()), "resource restored")
	}
	return NewResourceDTO(restored), nil
}

// HardDelete purges a resource that no loan has ever referenced.
func (s *service) HardDelete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, id, true); err != nil {
			return err
		}
		referenced, err := repo.HasAnyLoan(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check loan history")
		}
		if referenced {
			return pkgerrors.New(pkgerrors.CodeConflict, "resource has loan history; soft delete it instead").
				WithReason(pkgerrors.ReasonResourceInUse).
				WithDetails(map[string]any{"resource_id": id})
		}
		if err := repo.HardDelete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge resource")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "resource_id", id.String()), "resource purged")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID, forUpdate bool) (*models.Resource, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
	}
	var (
		resource *models.Resource
		err      error
	)
	if forUpdate {
		resource, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		resource, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load resource")
	}
	return resource, nil
}

func validateCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if len(code) > maxCodeLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "code is too long")
	}
	return code, nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is too long")
	}
	return name, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// setOptional maps an explicit empty string to NULL.
func setOptional(fields map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	if trimmed := trimOptional(value); trimmed != nil {
		fields[column] = *trimmed
		return
	}
	fields[column] = nil
}

func duplicateCodeError(code string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "resource code already in use").
		WithReason(pkgerrors.ReasonDuplicateCode).
		WithDetails(map[string]any{"code": code})
}

func resourceInUseError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "resource has an outstanding loan").
		WithReason(pkgerrors.ReasonResourceInUse).
		WithDetails(map[string]any{"resource_id": id})
}
