package fines

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// DaysLate counts the whole days between due and the effective return
// instant, which is returnedAt when set and now otherwise. Partial days are
// dropped; a loan back early yields zero or a negative count.
func DaysLate(due time.Time, returnedAt *time.Time, now time.Time) int {
	effective := now
	if returnedAt != nil {
		effective = *returnedAt
	}
	late := effective.Sub(due)
	if late < 0 {
		// floor toward negative infinity so that a few hours early stays below zero
		return -int((-late + day - 1) / day)
	}
	return int(late / day)
}

// Amount multiplies the late days by the per-day rate.
func Amount(daysLate int, rate decimal.Decimal) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(daysLate)))
}
