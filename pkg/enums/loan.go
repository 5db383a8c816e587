package enums

import "fmt"

// LoanState maps to the loans.state column.
type LoanState string

const (
	LoanStateActive   LoanState = "active"
	LoanStateReturned LoanState = "returned"
	LoanStateOverdue  LoanState = "overdue"
)

var validLoanStates = []LoanState{
	LoanStateActive,
	LoanStateReturned,
	LoanStateOverdue,
}

// OutstandingLoanStates are the states in which the resource is still out.
var OutstandingLoanStates = []LoanState{LoanStateActive, LoanStateOverdue}

// String implements fmt.Stringer.
func (s LoanState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LoanState.
func (s LoanState) IsValid() bool {
	for _, candidate := range validLoanStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOutstanding reports whether the loan still holds its resource.
func (s LoanState) IsOutstanding() bool {
	return s == LoanStateActive || s == LoanStateOverdue
}

// ParseLoanState converts raw input into LoanState.
func ParseLoanState(value string) (LoanState, error) {
	for _, candidate := range validLoanStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan state %q", value)
}
