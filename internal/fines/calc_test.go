package fines

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDaysLate(t *testing.T) {
	due := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		returned *time.Time
		want     int
	}{
		{name: "returned three days late", returned: ptr(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)), want: 3},
		{name: "partial day is dropped", returned: ptr(time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC)), want: 1},
		{name: "returned on time", returned: ptr(due), want: 0},
		{name: "returned hours early", returned: ptr(due.Add(-2 * time.Hour)), want: -1},
		{name: "still out uses now", returned: nil, want: 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DaysLate(due, tc.returned, now))
		})
	}
}

func TestAmount(t *testing.T) {
	require.True(t, decimal.NewFromInt(15000).Equal(Amount(3, decimal.NewFromInt(5000))))
	require.True(t, decimal.RequireFromString("7501.50").Equal(Amount(3, decimal.RequireFromString("2500.50"))))
	require.True(t, decimal.Zero.Equal(Amount(0, decimal.NewFromInt(5000))))
	require.True(t, decimal.Zero.Equal(Amount(-2, decimal.NewFromInt(5000))))
}

func ptr[T any](v T) *T { return &v }
