package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/pagination"
)

// Service defines notification emit, list and read operations.
type Service interface {
	Notify(ctx context.Context, tx *gorm.DB, input NotifyInput) (*models.Notification, error)
	NotifyOncePerDay(ctx context.Context, tx *gorm.DB, input NotifyInput) (bool, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NotifyInput describes a notification addressed to one user.
type NotifyInput struct {
	UserID      uuid.UUID
	Type        enums.NotificationType
	Title       string
	Message     string
	RelatedID   *uuid.UUID
	RelatedKind *enums.RelatedKind
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies. loc defines calendar days for
// the once-per-day guard; nil means UTC.
func NewService(repo Repository, loc *time.Location, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, loc: loc, now: now}, nil
}

func (s *service) Notify(ctx context.Context, tx *gorm.DB, input NotifyInput) (*models.Notification, error) {
	if err := validateNotify(input); err != nil {
		return nil, err
	}
	notification := &models.Notification{
		UserID:      input.UserID,
		Type:        input.Type,
		Title:       strings.TrimSpace(input.Title),
		Message:     strings.TrimSpace(input.Message),
		RelatedID:   input.RelatedID,
		RelatedKind: input.RelatedKind,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

// NotifyOncePerDay creates the notification unless one of the same type about
// the same related entity already exists on the current calendar day.
func (s *service) NotifyOncePerDay(ctx context.Context, tx *gorm.DB, input NotifyInput) (bool, error) {
	if input.RelatedID == nil || *input.RelatedID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "related id required for daily notifications")
	}
	if err := validateNotify(input); err != nil {
		return false, err
	}

	from, to := DayBounds(s.now(), s.loc)
	exists, err := s.repo.WithTx(tx).ExistsBetween(ctx, existsParams{
		Type:      input.Type,
		RelatedID: *input.RelatedID,
		From:      from,
		To:        to,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check daily notification")
	}
	if exists {
		return false, nil
	}
	if _, err := s.Notify(ctx, tx, input); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

// DayBounds returns the UTC instants delimiting the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

func validateNotify(input NotifyInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification title and message required")
	}
	return nil
}
