package enums

import "fmt"

// ResourceState tracks whether a resource can currently be lent.
type ResourceState string

const (
	ResourceStateAvailable   ResourceState = "available"
	ResourceStateLoaned      ResourceState = "loaned"
	ResourceStateMaintenance ResourceState = "maintenance"
)

var validResourceStates = []ResourceState{
	ResourceStateAvailable,
	ResourceStateLoaned,
	ResourceStateMaintenance,
}

// String implements fmt.Stringer.
func (s ResourceState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ResourceState.
func (s ResourceState) IsValid() bool {
	for _, candidate := range validResourceStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseResourceState converts raw input into ResourceState.
func ParseResourceState(value string) (ResourceState, error) {
	for _, candidate := range validResourceStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource state %q", value)
}
