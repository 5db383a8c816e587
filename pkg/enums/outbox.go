package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateLoan        OutboxAggregateType = "loan"
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateFine        OutboxAggregateType = "fine"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLoan,
	AggregateReservation,
	AggregateFine,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published to the loan events topic.
type OutboxEventType string

const (
	EventLoanCreated          OutboxEventType = "loan_created"
	EventLoanReturned         OutboxEventType = "loan_returned"
	EventLoanRenewed          OutboxEventType = "loan_renewed"
	EventLoanOverdue          OutboxEventType = "loan_overdue"
	EventLoanDeleted          OutboxEventType = "loan_deleted"
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationCompleted OutboxEventType = "reservation_completed"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventFineApplied          OutboxEventType = "fine_applied"
	EventFinePaid             OutboxEventType = "fine_paid"
	EventFineCancelled        OutboxEventType = "fine_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLoanCreated,
	EventLoanReturned,
	EventLoanRenewed,
	EventLoanOverdue,
	EventLoanDeleted,
	EventReservationCreated,
	EventReservationCompleted,
	EventReservationCancelled,
	EventFineApplied,
	EventFinePaid,
	EventFineCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an event was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
