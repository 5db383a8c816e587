package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/db/dbtest"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

func TestEmitStoresEnvelope(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	aggregateID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: enums.UserRoleWorker}
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   aggregateID,
			Actor:         actor,
			Data:          map[string]string{"loan_id": aggregateID.String()},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.Equal(t, enums.EventLoanCreated, row.EventType)
	require.Equal(t, aggregateID, row.AggregateID)
	require.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, currentEnvelopeVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, actor.UserID, envelope.Actor.UserID)
	require.JSONEq(t, `{"loan_id":"`+aggregateID.String()+`"}`, string(envelope.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventLoanCreated})
	require.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	event := DomainEvent{
		EventType:     enums.EventLoanOverdue,
		AggregateType: enums.AggregateLoan,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	repo := NewRepository(conn)

	first := models.OutboxEvent{
		EventType:     enums.EventFineApplied,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, first))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	require.NoError(t, repo.MarkFailedTx(conn, id, errors.New("transient")))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, id, errors.New("dead"), 3))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)

	dlq := NewDLQRepository(conn)
	msg := "dead"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       id,
		EventType:     enums.EventFineApplied,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  3,
	}))
	entry, err := dlq.FindByEventID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)

	listed, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, id, listed[0].EventID)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepositoryMarkPublishedHidesRow(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		EventType:     enums.EventLoanCreated,
		AggregateType: enums.AggregateLoan,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}))
	rows, err := repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	rows, err = repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
