package settings

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

// Snapshot is a typed view of every business tunable with defaults applied.
type Snapshot struct {
	NotificationLeadDays int
	FinePerDay           decimal.Decimal
	MaxSimultaneousLoans int
	MaxLoanDays          int
	FinesEnabled         bool
	ReservationsEnabled  bool
}

// Entry is the admin-facing representation of one key.
type Entry struct {
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Kind        Kind       `json:"kind"`
	Description string     `json:"description"`
	IsDefault   bool       `json:"is_default"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Service exposes typed configuration reads and admin updates.
type Service interface {
	Current(ctx context.Context) (Snapshot, error)
	CurrentTx(ctx context.Context, tx *gorm.DB) (Snapshot, error)
	List(ctx context.Context) ([]Entry, error)
	Update(ctx context.Context, values map[string]string) ([]Entry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the settings service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settings repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

func (s *service) Current(ctx context.Context) (Snapshot, error) {
	return s.CurrentTx(ctx, nil)
}

// CurrentTx reads the snapshot through tx so limit checks see the same data as the write.
func (s *service) CurrentTx(ctx context.Context, tx *gorm.DB) (Snapshot, error) {
	rows, err := s.repo.WithTx(tx).List(ctx)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load system configuration")
	}
	return s.snapshot(ctx, rows), nil
}

func (s *service) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load system configuration")
	}
	return entries(rows), nil
}

// Update validates every value before writing any of them.
func (s *service) Update(ctx context.Context, values map[string]string) ([]Entry, error) {
	if len(values) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no settings provided")
	}

	rows := make([]models.SystemConfiguration, 0, len(values))
	invalid := map[string]string{}
	for key, raw := range values {
		def, ok := lookup(key)
		if !ok {
			invalid[key] = "unknown setting"
			continue
		}
		normalized, err := def.normalize(raw)
		if err != nil {
			invalid[key] = err.Error()
			continue
		}
		description := def.Description
		rows = append(rows, models.SystemConfiguration{
			Key:         key,
			Value:       normalized,
			Description: &description,
			UpdatedAt:   s.now().UTC(),
		})
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid settings").WithDetails(invalid)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range rows {
			if err := repo.Upsert(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update system configuration")
	}
	if s.logg != nil {
		keys := make([]string, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, row.Key)
		}
		s.logg.Info(s.logg.WithField(ctx, "keys", keys), "system configuration updated")
	}
	return s.List(ctx)
}

func (s *service) snapshot(ctx context.Context, rows []models.SystemConfiguration) Snapshot {
	stored := make(map[string]string, len(rows))
	for _, row := range rows {
		stored[row.Key] = row.Value
	}
	value := func(key string) string {
		def, _ := lookup(key)
		raw, ok := stored[key]
		if !ok {
			return def.Default
		}
		normalized, err := def.normalize(raw)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key": key, "value": raw}), "invalid stored setting, using default")
			}
			return def.Default
		}
		return normalized
	}

	return Snapshot{
		NotificationLeadDays: atoi(value(KeyNotificationLeadDays)),
		FinePerDay:           decimal.RequireFromString(value(KeyFinePerDay)),
		MaxSimultaneousLoans: atoi(value(KeyMaxSimultaneousLoans)),
		MaxLoanDays:          atoi(value(KeyMaxLoanDays)),
		FinesEnabled:         value(KeyFinesEnabled) == "true",
		ReservationsEnabled:  value(KeyReservationsEnabled) == "true",
	}
}

// Defaults returns the snapshot used when no row is stored.
func Defaults() Snapshot {
	var s service
	return s.snapshot(context.Background(), nil)
}

func entries(rows []models.SystemConfiguration) []Entry {
	stored := make(map[string]models.SystemConfiguration, len(rows))
	for _, row := range rows {
		stored[row.Key] = row
	}
	out := make([]Entry, 0, len(definitions))
	for _, def := range definitions {
		entry := Entry{
			Key:         def.Key,
			Value:       def.Default,
			Kind:        def.Kind,
			Description: def.Description,
			IsDefault:   true,
		}
		if row, ok := stored[def.Key]; ok {
			entry.Value = row.Value
			entry.IsDefault = false
			updated := row.UpdatedAt
			entry.UpdatedAt = &updated
		}
		out = append(out, entry)
	}
	return out
}

func atoi(value string) int {
	n, _ := strconv.Atoi(value)
	return n
}
