package enums

import "fmt"

// FineState maps to the fines.state column.
type FineState string

const (
	FineStatePending   FineState = "pending"
	FineStatePaid      FineState = "paid"
	FineStateCancelled FineState = "cancelled"
)

var validFineStates = []FineState{
	FineStatePending,
	FineStatePaid,
	FineStateCancelled,
}

// String implements fmt.Stringer.
func (s FineState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FineState.
func (s FineState) IsValid() bool {
	for _, candidate := range validFineStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseFineState converts raw input into FineState.
func ParseFineState(value string) (FineState, error) {
	for _, candidate := range validFineStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fine state %q", value)
}
