package enums

import "fmt"

// LoanEventType labels entries of the append-only loan audit trail.
type LoanEventType string

const (
	LoanEventCreated              LoanEventType = "created"
	LoanEventReturned             LoanEventType = "returned"
	LoanEventRenewed              LoanEventType = "renewed"
	LoanEventOverdue              LoanEventType = "overdue"
	LoanEventDeleted              LoanEventType = "deleted"
	LoanEventFineApplied          LoanEventType = "fine_applied"
	LoanEventReservationConverted LoanEventType = "reservation_converted"
)

var validLoanEventTypes = []LoanEventType{
	LoanEventCreated,
	LoanEventReturned,
	LoanEventRenewed,
	LoanEventOverdue,
	LoanEventDeleted,
	LoanEventFineApplied,
	LoanEventReservationConverted,
}

// IsValid reports whether the value is a known LoanEventType.
func (t LoanEventType) IsValid() bool {
	for _, candidate := range validLoanEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLoanEventType converts raw input into LoanEventType.
func ParseLoanEventType(value string) (LoanEventType, error) {
	for _, candidate := range validLoanEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan event type %q", value)
}
