package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

type fakeOutboxReader struct {
	pending    []models.OutboxEvent
	dead       []models.OutboxDLQ
	gotLimit   int
	gotEventID uuid.UUID
}

func (f *fakeOutboxReader) FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	f.gotLimit = limit
	return f.pending, nil
}

func (f *fakeOutboxReader) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	f.gotLimit = limit
	return f.dead, nil
}

func (f *fakeOutboxReader) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	f.gotEventID = eventID
	for i := range f.dead {
		if f.dead[i].EventID == eventID {
			return &f.dead[i], nil
		}
	}
	return nil, nil
}

func TestAdminOutboxPendingListsEvents(t *testing.T) {
	lastErr := "publish timeout"
	repo := &fakeOutboxReader{pending: []models.OutboxEvent{{
		ID:            uuid.New(),
		EventType:     enums.EventLoanCreated,
		AggregateType: enums.AggregateLoan,
		AggregateID:   uuid.New(),
		AttemptCount:  2,
		LastError:     &lastErr,
		CreatedAt:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}}}
	rec := httptest.NewRecorder()
	AdminOutboxPending(repo, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/pending?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, repo.gotLimit)
	data := decodeData[struct {
		Items []pendingEventView `json:"items"`
	}](t, rec)
	require.Len(t, data.Items, 1)
	assert.Equal(t, enums.EventLoanCreated, data.Items[0].EventType)
	assert.Equal(t, 2, data.Items[0].AttemptCount)
	require.NotNil(t, data.Items[0].LastError)
	assert.Equal(t, lastErr, *data.Items[0].LastError)
}

func TestAdminOutboxPendingRejectsLimitOutOfRange(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminOutboxPending(&fakeOutboxReader{}, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/pending?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeadLetterListOmitsPayload(t *testing.T) {
	repo := &fakeOutboxReader{dead: []models.OutboxDLQ{{
		EventID:       uuid.New(),
		EventType:     enums.EventFineApplied,
		AggregateType: enums.AggregateFine,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"fine_id":"x"}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		AttemptCount:  10,
	}}}
	rec := httptest.NewRecorder()
	AdminDeadLetterList(repo, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultOutboxLimit, repo.gotLimit)
	data := decodeData[struct {
		Items []deadLetterView `json:"items"`
	}](t, rec)
	require.Len(t, data.Items, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, data.Items[0].Reason)
	assert.Empty(t, data.Items[0].Payload)
}

func TestAdminDeadLetterGet(t *testing.T) {
	eventID := uuid.New()
	repo := &fakeOutboxReader{dead: []models.OutboxDLQ{{
		EventID:       eventID,
		EventType:     enums.EventLoanReturned,
		AggregateType: enums.AggregateLoan,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"loan_id":"abc"}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
	}}}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters/"+eventID.String(), nil)
	rec := httptest.NewRecorder()
	AdminDeadLetterGet(repo, testLogger())(rec, addRouteParam(req, "eventId", eventID.String()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, eventID, repo.gotEventID)
	view := decodeData[deadLetterView](t, rec)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, view.Reason)
	assert.JSONEq(t, `{"loan_id":"abc"}`, string(view.Payload))

	missing := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters/"+missing.String(), nil)
	rec = httptest.NewRecorder()
	AdminDeadLetterGet(repo, testLogger())(rec, addRouteParam(req, "eventId", missing.String()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
