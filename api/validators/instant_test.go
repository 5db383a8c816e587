package validators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 19, 45, 30, 0, time.UTC) // 14:45:30 in Bogota

	cases := []struct {
		name string
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"rfc3339 keeps offset", "2024-03-12T10:00:00-05:00", bogota, time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)},
		{"rfc3339 utc", "2024-03-12T10:00:00Z", bogota, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)},
		{"local T minutes", "2024-03-12T10:30", bogota, time.Date(2024, 3, 12, 15, 30, 0, 0, time.UTC)},
		{"local space seconds", "2024-03-12 10:30:15", time.UTC, time.Date(2024, 3, 12, 10, 30, 15, 0, time.UTC)},
		{"date only takes clock", "2024-03-15", bogota, time.Date(2024, 3, 15, 19, 45, 30, 0, time.UTC)},
		{"nil location is utc", "2024-03-15", nil, time.Date(2024, 3, 15, 19, 45, 30, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseInstant(tc.in, tc.loc, now)
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			require.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseInstantRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "tomorrow", "2024-13-01", "12/03/2024"} {
		_, err := ParseInstant(in, time.UTC, time.Now())
		require.Error(t, err, in)
	}
}

func TestParseOptionalInstant(t *testing.T) {
	got, err := ParseOptionalInstant(nil, time.UTC, time.Now())
	require.NoError(t, err)
	require.Nil(t, got)

	blank := " "
	got, err = ParseOptionalInstant(&blank, time.UTC, time.Now())
	require.NoError(t, err)
	require.Nil(t, got)

	value := "2024-01-02T03:04:05Z"
	got, err = ParseOptionalInstant(&value, time.UTC, time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 2024, got.Year())
}
