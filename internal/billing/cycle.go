// Package billing implements the recurring billing-cycle arithmetic shared
// by the renewal-reminder job, the client portal, and the dashboard revenue
// aggregator.
package billing

import (
	"errors"
	"fmt"
	"time"

	"clientdesk/internal/types"
)

// maxAdvanceIterations bounds the renewal search so degenerate stored data
// can never spin a batch job forever.
const maxAdvanceIterations = 1000

// weeksPerMonth is the averaging constant for converting weekly cycles to
// monthly-equivalent revenue. Existing reports were produced with 4.33;
// it must not be changed without re-baselining them.
const weeksPerMonth = 4.33

// ErrInvalidCycle marks a record whose billing cycle is outside the modeled
// set. Batch callers log and skip the record; it is a data-integrity
// problem, not a request error.
var ErrInvalidCycle = errors.New("invalid billing cycle")

// ErrInvalidPeriod marks a record whose period multiplier is below 1.
var ErrInvalidPeriod = errors.New("billing period must be >= 1")

// Renewal is the result of a next-renewal computation.
type Renewal struct {
	NextDate time.Time
	// DaysRemaining is ceil(NextDate - asOf) in days, floored at zero.
	DaysRemaining int
}

// NextRenewal advances start forward by whole (cycle, period) steps until
// the result is on or after asOf, and reports how many days remain.
//
// Month and year steps use time.AddDate, which normalizes overflow forward:
// Jan 31 + 1 month lands on Mar 2 (Mar 3 in non-leap years). That rule is
// observable to users near month boundaries and is pinned by tests; keep it
// consistent.
func NextRenewal(start time.Time, cycle types.BillingCycle, period int, asOf time.Time) (Renewal, error) {
	if period < 1 {
		return Renewal{}, fmt.Errorf("period %d: %w", period, ErrInvalidPeriod)
	}
	if !cycle.Valid() {
		return Renewal{}, fmt.Errorf("cycle %q: %w", cycle, ErrInvalidCycle)
	}

	next := start
	for i := 0; next.Before(asOf); i++ {
		if i >= maxAdvanceIterations {
			return Renewal{}, fmt.Errorf("renewal for start %s did not converge within %d steps: %w",
				start.Format(time.RFC3339), maxAdvanceIterations, ErrInvalidCycle)
		}
		next = advance(next, cycle, period)
	}

	return Renewal{NextDate: next, DaysRemaining: daysUntil(asOf, next)}, nil
}

// advance moves t forward by one cycle step.
func advance(t time.Time, cycle types.BillingCycle, period int) time.Time {
	switch cycle {
	case types.CycleDaily:
		return t.AddDate(0, 0, period)
	case types.CycleWeekly:
		return t.AddDate(0, 0, 7*period)
	case types.CycleMonthly:
		return t.AddDate(0, period, 0)
	case types.CycleYearly:
		return t.AddDate(period, 0, 0)
	}
	// Unreachable: cycle is validated by the caller.
	return t
}

// daysUntil returns ceil(to - from) in whole days, floored at zero.
func daysUntil(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// MonthsEquivalent converts a cycle and period into a fractional month
// count for monthly-equivalent revenue math. Daily cycles have no monthly
// equivalence in the reports and are rejected; the reminder job never needs
// this conversion.
func MonthsEquivalent(cycle types.BillingCycle, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("period %d: %w", period, ErrInvalidPeriod)
	}
	switch cycle {
	case types.CycleWeekly:
		return float64(period) / weeksPerMonth, nil
	case types.CycleMonthly:
		return float64(period), nil
	case types.CycleYearly:
		return 12 * float64(period), nil
	case types.CycleDaily:
		return 0, fmt.Errorf("daily cycle has no monthly equivalent: %w", ErrInvalidCycle)
	}
	return 0, fmt.Errorf("cycle %q: %w", cycle, ErrInvalidCycle)
}
