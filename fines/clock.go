package fines

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FINE CLOCK - Elapsed overdue time
// =============================================================================

// ElapsedOverdue returns how long a record has been overdue at now.
// Returns zero for anything due now or in the future. Pure.
func ElapsedOverdue(dueDate, now time.Time) time.Duration {
	if !now.After(dueDate) {
		return 0
	}
	return now.Sub(dueDate)
}

// =============================================================================
// FINE CALCULATOR - Duration to money
// =============================================================================

// DefaultRatePerHour is the fixed accrual rate: 2 currency units per hour.
var DefaultRatePerHour = decimal.NewFromInt(2)

// Calculator converts elapsed overdue time into a fine amount using a fixed
// linear hourly rate. Fractional hours accrue proportionally; there is no
// rounding up to whole hours.
type Calculator struct {
	RatePerHour decimal.Decimal
}

// NewCalculator returns a calculator at the default rate.
func NewCalculator() Calculator {
	return Calculator{RatePerHour: DefaultRatePerHour}
}

// FineAmount maps elapsed overdue time to money. Zero elapsed yields exactly
// zero. Monotonic non-decreasing in elapsed. Pure.
func (c Calculator) FineAmount(elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromFloat(elapsed.Hours())
	return hours.Mul(c.RatePerHour)
}
