package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/api/responses"
	"github.com/angelmondragon/techloans-backend/api/validators"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

const (
	defaultOutboxLimit = 50
	maxOutboxLimit     = 200
)

type pendingOutboxReader interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
}

type deadLetterReader interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type pendingEventView struct {
	ID            uuid.UUID                 `json:"id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   uuid.UUID                 `json:"aggregate_id"`
	AttemptCount  int                       `json:"attempt_count"`
	LastError     *string                   `json:"last_error,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

type deadLetterView struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Message       *string                    `json:"message,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
	Payload       json.RawMessage            `json:"payload,omitempty"`
}

func toDeadLetterView(row models.OutboxDLQ, withPayload bool) deadLetterView {
	view := deadLetterView{
		EventID:       row.EventID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason,
		Message:       row.ErrorMessage,
		AttemptCount:  row.AttemptCount,
		FailedAt:      row.FailedAt,
	}
	if withPayload {
		view.Payload = row.Payload
	}
	return view
}

// AdminOutboxPending lists loan events still waiting for the publisher.
func AdminOutboxPending(repo pendingOutboxReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("outbox"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultOutboxLimit, 1, maxOutboxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := repo.FetchUnpublished(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending events"))
			return
		}
		items := make([]pendingEventView, 0, len(rows))
		for _, row := range rows {
			items = append(items, pendingEventView{
				ID:            row.ID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				AttemptCount:  row.AttemptCount,
				LastError:     row.LastError,
				CreatedAt:     row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// AdminDeadLetterList returns the most recent events the publisher gave up on.
func AdminDeadLetterList(repo deadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("dead letters"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultOutboxLimit, 1, maxOutboxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := repo.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		items := make([]deadLetterView, 0, len(rows))
		for _, row := range rows {
			items = append(items, toDeadLetterView(row, false))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func AdminDeadLetterGet(repo deadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("dead letters"))
			return
		}
		eventID, err := validators.PathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := repo.FindByEventID(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find dead letter"))
			return
		}
		if row == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
			return
		}
		responses.WriteSuccess(w, toDeadLetterView(*row, true))
	}
}
