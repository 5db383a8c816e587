package enums

import "fmt"

// ReservationState maps to the reservations.state column.
type ReservationState string

const (
	ReservationStatePending   ReservationState = "pending"
	ReservationStateConfirmed ReservationState = "confirmed"
	ReservationStateCancelled ReservationState = "cancelled"
	ReservationStateCompleted ReservationState = "completed"
)

var validReservationStates = []ReservationState{
	ReservationStatePending,
	ReservationStateConfirmed,
	ReservationStateCancelled,
	ReservationStateCompleted,
}

// String implements fmt.Stringer.
func (s ReservationState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationState.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ReservationState) IsTerminal() bool {
	return s == ReservationStateCancelled || s == ReservationStateCompleted
}

// ParseReservationState converts raw input into ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}
