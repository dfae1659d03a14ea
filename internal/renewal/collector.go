// Package renewal implements due-renewal collection and the reminder
// dispatch job that runs ahead of each client's next billing date.
package renewal

import (
	"log/slog"
	"time"

	"clientdesk/internal/billing"
	"clientdesk/internal/types"
)

// DueRenewal is one client whose next renewal falls inside the reminder
// window, as of a point-in-time snapshot.
type DueRenewal struct {
	Client        *types.Client `json:"client"`
	NextDate      time.Time     `json:"next_date"`
	DaysRemaining int           `json:"days_remaining"`
}

// CollectDueRenewals filters clients down to those eligible for a reminder:
// an email on file, not unpaid, and a next renewal within windowDays of
// asOf (inclusive on both ends). Input order is preserved.
//
// Records with unusable cycle data are logged and skipped; one bad row
// never aborts the pass. They are counted separately from ordinary
// ineligibility so a run report can distinguish data problems from clients
// that are simply out of window. The result reflects a single snapshot and
// is not meant to be recomputed incrementally.
func CollectDueRenewals(clients []*types.Client, asOf time.Time, windowDays int, logger *slog.Logger) ([]DueRenewal, int) {
	if logger == nil {
		logger = slog.Default()
	}

	var due []DueRenewal
	invalid := 0
	for _, c := range clients {
		if c.Email == "" || c.BillingStatus == types.BillingUnpaid {
			continue
		}

		r, err := billing.NextRenewal(c.StartDate, c.BillingCycle, c.BillingPeriod, asOf)
		if err != nil {
			logger.Warn("skipping client with unusable cycle data",
				slog.String("client_id", c.ID),
				slog.String("cycle", string(c.BillingCycle)),
				slog.Int("period", c.BillingPeriod),
				slog.Any("error", err),
			)
			invalid++
			continue
		}

		if r.DaysRemaining <= windowDays {
			due = append(due, DueRenewal{
				Client:        c,
				NextDate:      r.NextDate,
				DaysRemaining: r.DaysRemaining,
			})
		}
	}
	return due, invalid
}

// DomainExpiry is a domain registration approaching its expiry date. Domain
// renewal is an independent track from subscription billing; the dashboard
// lists both side by side.
type DomainExpiry struct {
	Client        *types.Client `json:"client"`
	Domain        string        `json:"domain"`
	ExpiresAt     time.Time     `json:"expires_at"`
	DaysRemaining int           `json:"days_remaining"`
}

// CollectDomainExpiries returns clients whose registered domain expires
// within windowDays of asOf. Clients without domain bookkeeping are
// ignored; already-expired domains are included with zero days remaining.
func CollectDomainExpiries(clients []*types.Client, asOf time.Time, windowDays int) []DomainExpiry {
	var out []DomainExpiry
	for _, c := range clients {
		if c.Domain == "" || c.DomainExpiry == nil {
			continue
		}
		days := daysUntil(asOf, *c.DomainExpiry)
		if days <= windowDays {
			out = append(out, DomainExpiry{
				Client:        c,
				Domain:        c.Domain,
				ExpiresAt:     *c.DomainExpiry,
				DaysRemaining: days,
			})
		}
	}
	return out
}

// daysUntil mirrors the calculator's rounding: ceil, floored at zero.
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
