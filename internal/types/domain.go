package types

import "time"

// Client is the tenant record whose site authorization is gated by this
// system. Monetary amounts are stored in integer minor units (cents) to
// avoid floating-point loss.
type Client struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email,omitempty" db:"email"`

	// APIKey is the alternate lookup credential for the authorization gate.
	// Unique when present; never serialized in API responses.
	APIKey string `json:"-" db:"api_key"`

	// Authorization inputs. The gate outcome is a pure function of these
	// three fields; nothing else on the record affects it.
	BillingStatus      BillingStatus `json:"billing_status" db:"billing_status"`
	Maintenance        bool          `json:"maintenance" db:"maintenance"`
	MaintenanceMessage string        `json:"maintenance_message,omitempty" db:"maintenance_message"`

	// Billing cadence
	StartDate     time.Time    `json:"start_date" db:"start_date"`
	BillingCycle  BillingCycle `json:"billing_cycle" db:"billing_cycle"`
	BillingPeriod int          `json:"billing_period" db:"billing_period"`

	// Money (minor units)
	CustomPriceCents  int64 `json:"custom_price_cents" db:"custom_price_cents"`
	AmountPaidCents   int64 `json:"amount_paid_cents" db:"amount_paid_cents"`
	RenewalPriceCents int64 `json:"renewal_price_cents" db:"renewal_price_cents"`

	// Domain registration bookkeeping; an independent renewal track from
	// the subscription cycle.
	Domain         string     `json:"domain,omitempty" db:"domain"`
	DomainExpiry   *time.Time `json:"domain_expiry,omitempty" db:"domain_expiry"`
	DomainProvider string     `json:"domain_provider,omitempty" db:"domain_provider"`
	DomainBoughtAt *time.Time `json:"domain_bought_at,omitempty" db:"domain_bought_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DueAmountCents is the outstanding balance for the current cycle,
// floored at zero. Overpayment is visible through the transaction ledger,
// not as a negative due amount.
func (c *Client) DueAmountCents() int64 {
	due := c.CustomPriceCents - c.AmountPaidCents
	if due < 0 {
		return 0
	}
	return due
}

// ClientRef is the non-sensitive client projection exposed by the
// authorization gate. It deliberately excludes the API key and all
// financial fields.
type ClientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is a single immutable ledger entry belonging to one client.
// There is no update or delete path; corrections are new adjustment rows.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	ClientID    string          `json:"client_id" db:"client_id"`
	AmountCents int64           `json:"amount_cents" db:"amount_cents"`
	Type        TransactionType `json:"type" db:"type"`
	Date        time.Time       `json:"date" db:"date"`
	Description string          `json:"description,omitempty" db:"description"`
	Method      string          `json:"method,omitempty" db:"method"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuditEvent records a business action for the audit trail. The sink is
// best-effort: recording failures are logged and swallowed, never allowed
// to affect the operation being audited.
type AuditEvent struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
