package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Service records and reads the append-only loan audit trail.
type Service interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLoanEventInput) (*models.LoanEvent, error)
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error)
	HasEvent(ctx context.Context, loanID uuid.UUID, eventType enums.LoanEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordLoanEventInput captures the immutable data a loan event requires.
// ActorUserID is nil for events raised by the sweep.
type RecordLoanEventInput struct {
	LoanID      uuid.UUID           `json:"loan_id"`
	ActorUserID *uuid.UUID          `json:"actor_user_id,omitempty"`
	Type        enums.LoanEventType `json:"type"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordEvent writes the event with tx when given so it commits with the loan mutation.
func (s *service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLoanEventInput) (*models.LoanEvent, error) {
	if input.LoanID == uuid.Nil {
		return nil, fmt.Errorf("loan id is required")
	}
	if input.ActorUserID != nil && *input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id must not be empty")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid loan event type %q", input.Type)
	}

	var metadata json.RawMessage
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode loan event metadata: %w", err)
		}
		metadata = raw
	}

	event := &models.LoanEvent{
		LoanID:      input.LoanID,
		ActorUserID: input.ActorUserID,
		Type:        input.Type,
		Metadata:    metadata,
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error) {
	if loanID == uuid.Nil {
		return nil, fmt.Errorf("loan id is required")
	}
	return s.repo.ListByLoanID(ctx, loanID)
}

func (s *service) HasEvent(ctx context.Context, loanID uuid.UUID, eventType enums.LoanEventType) (bool, error) {
	if loanID == uuid.Nil {
		return false, fmt.Errorf("loan id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid loan event type %q", eventType)
	}

	events, err := s.repo.ListByLoanID(ctx, loanID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
