package validators

import (
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
)

const dateOnlyLayout = "2006-01-02"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant converts client input into a UTC instant. Zone-less values are
// read in loc. A bare date takes the current time-of-day in loc.
func ParseInstant(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "timestamp is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	if d, err := time.ParseInLocation(dateOnlyLayout, value, loc); err == nil {
		clock := now.In(loc)
		combined := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
		return combined.UTC(), nil
	}
	return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid timestamp").
		WithDetails(map[string]any{"value": value})
}

// ParseOptionalInstant returns nil for a nil or blank value.
func ParseOptionalInstant(raw *string, loc *time.Location, now time.Time) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := ParseInstant(*raw, loc, now)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
