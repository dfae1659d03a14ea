package billing

import (
	"log/slog"
	"math"

	"clientdesk/internal/types"
)

// RevenueSummary is the dashboard revenue widget's aggregate. Amounts are
// monthly-equivalent cents; per-client values are rounded to the nearest
// cent before summing so the total matches the per-cycle breakdown.
type RevenueSummary struct {
	MonthlyCents int64                              `json:"monthly_cents"`
	ByCycle      map[types.BillingCycle]int64       `json:"by_cycle"`
	Clients      int                                `json:"clients"`
	// Skipped counts records excluded for data-integrity reasons (bad
	// cycle or period, or a daily cycle with no monthly equivalence).
	Skipped int `json:"skipped"`
}

// MonthlyRecurringRevenue derives the monthly-equivalent recurring revenue
// across the given clients. Unpaid clients are excluded; records with
// unusable cycle data are logged and skipped, never fatal — one bad row
// must not blank the dashboard.
func MonthlyRecurringRevenue(clients []*types.Client, logger *slog.Logger) RevenueSummary {
	if logger == nil {
		logger = slog.Default()
	}

	summary := RevenueSummary{
		ByCycle: make(map[types.BillingCycle]int64),
	}

	for _, c := range clients {
		if c.BillingStatus == types.BillingUnpaid {
			continue
		}

		months, err := MonthsEquivalent(c.BillingCycle, c.BillingPeriod)
		if err != nil {
			logger.Warn("skipping client in revenue aggregation",
				slog.String("client_id", c.ID),
				slog.String("cycle", string(c.BillingCycle)),
				slog.Any("error", err),
			)
			summary.Skipped++
			continue
		}

		monthly := int64(math.Round(float64(c.RenewalPriceCents) / months))
		summary.MonthlyCents += monthly
		summary.ByCycle[c.BillingCycle] += monthly
		summary.Clients++
	}

	return summary
}
