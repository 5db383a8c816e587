package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LoanEvent) error
	listFn   func(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.LoanEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, loanID)
	}
	return nil, nil
}

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	actor := uuid.New()
	input := RecordLoanEventInput{
		LoanID:      uuid.New(),
		ActorUserID: &actor,
		Type:        enums.LoanEventRenewed,
		Metadata:    map[string]any{"previous_due_at": "2026-03-01T00:00:00Z"},
	}

	var created *models.LoanEvent
	repo.createFn = func(ctx context.Context, event *models.LoanEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordEvent(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if got != created {
		t.Fatalf("expected returned event to match created")
	}
	if created.LoanID != input.LoanID || created.Type != enums.LoanEventRenewed {
		t.Fatalf("unexpected event %+v", created)
	}
	var meta map[string]string
	if err := json.Unmarshal(created.Metadata, &meta); err != nil {
		t.Fatalf("metadata decode: %v", err)
	}
	if meta["previous_due_at"] != "2026-03-01T00:00:00Z" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestService_RecordEventAllowsSystemActor(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	got, err := svc.RecordEvent(context.Background(), nil, RecordLoanEventInput{
		LoanID: uuid.New(),
		Type:   enums.LoanEventOverdue,
	})
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if got.ActorUserID != nil || got.Metadata != nil {
		t.Fatalf("expected empty actor and metadata, got %+v", got)
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	empty := uuid.Nil
	cases := []struct {
		name  string
		input RecordLoanEventInput
	}{
		{name: "missing loan", input: RecordLoanEventInput{Type: enums.LoanEventCreated}},
		{name: "empty actor", input: RecordLoanEventInput{LoanID: uuid.New(), ActorUserID: &empty, Type: enums.LoanEventCreated}},
		{name: "invalid type", input: RecordLoanEventInput{LoanID: uuid.New(), Type: "bogus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordEvent(context.Background(), nil, tc.input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestService_RecordEventPropagatesRepoError(t *testing.T) {
	repo := &fakeRepository{createFn: func(context.Context, *models.LoanEvent) error {
		return errors.New("insert failed")
	}}
	svc, _ := NewService(repo)
	_, err := svc.RecordEvent(context.Background(), nil, RecordLoanEventInput{LoanID: uuid.New(), Type: enums.LoanEventCreated})
	if err == nil {
		t.Fatalf("expected repository error")
	}
}

func TestService_HasEvent(t *testing.T) {
	loanID := uuid.New()
	repo := &fakeRepository{listFn: func(context.Context, uuid.UUID) ([]models.LoanEvent, error) {
		return []models.LoanEvent{{LoanID: loanID, Type: enums.LoanEventCreated}}, nil
	}}
	svc, _ := NewService(repo)

	ok, err := svc.HasEvent(context.Background(), loanID, enums.LoanEventCreated)
	if err != nil || !ok {
		t.Fatalf("expected created event, got %v %v", ok, err)
	}
	ok, err = svc.HasEvent(context.Background(), loanID, enums.LoanEventReturned)
	if err != nil || ok {
		t.Fatalf("expected no returned event, got %v %v", ok, err)
	}
}

func TestRepository_ListByLoanIDOnlyReturnsLoanEvents(t *testing.T) {
	conn := dbtest.Open(t, &models.LoanEvent{})
	repo := NewRepository(conn)
	svc, _ := NewService(repo)

	loanID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.RecordEvent(context.Background(), tx, RecordLoanEventInput{LoanID: loanID, Type: enums.LoanEventCreated}); err != nil {
			return err
		}
		_, err := svc.RecordEvent(context.Background(), tx, RecordLoanEventInput{LoanID: uuid.New(), Type: enums.LoanEventCreated})
		return err
	})
	if err != nil {
		t.Fatalf("record events: %v", err)
	}

	events, err := svc.ListByLoan(context.Background(), loanID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].LoanID != loanID {
		t.Fatalf("unexpected events %+v", events)
	}
}
