package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/db/models"
	"github.com/angelmondragon/techloans-backend/pkg/enums"
	"github.com/angelmondragon/techloans-backend/pkg/outbox"
	"github.com/angelmondragon/techloans-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic name.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.LoanEventsTopic)
	if topic == "" {
		return nil, fmt.Errorf("loan events topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	loanPayload := func() interface{} { return &payloads.LoanEvent{} }
	reservationPayload := func() interface{} { return &payloads.ReservationEvent{} }
	finePayload := func() interface{} { return &payloads.FineEvent{} }

	for _, desc := range []EventDescriptor{
		{EventType: enums.EventLoanCreated, AggregateType: enums.AggregateLoan, PayloadFactory: loanPayload},
		{EventType: enums.EventLoanReturned, AggregateType: enums.AggregateLoan, PayloadFactory: loanPayload},
		{EventType: enums.EventLoanOverdue, AggregateType: enums.AggregateLoan, PayloadFactory: loanPayload},
		{EventType: enums.EventLoanDeleted, AggregateType: enums.AggregateLoan, PayloadFactory: loanPayload},
		{
			EventType:      enums.EventLoanRenewed,
			AggregateType:  enums.AggregateLoan,
			PayloadFactory: func() interface{} { return &payloads.LoanRenewedEvent{} },
		},
		{EventType: enums.EventReservationCreated, AggregateType: enums.AggregateReservation, PayloadFactory: reservationPayload},
		{EventType: enums.EventReservationCompleted, AggregateType: enums.AggregateReservation, PayloadFactory: reservationPayload},
		{EventType: enums.EventReservationCancelled, AggregateType: enums.AggregateReservation, PayloadFactory: reservationPayload},
		{EventType: enums.EventFineApplied, AggregateType: enums.AggregateFine, PayloadFactory: finePayload},
		{EventType: enums.EventFinePaid, AggregateType: enums.AggregateFine, PayloadFactory: finePayload},
		{EventType: enums.EventFineCancelled, AggregateType: enums.AggregateFine, PayloadFactory: finePayload},
	} {
		desc.Topic = topic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
