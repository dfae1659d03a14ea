package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"clientdesk/internal/types"
)

// ClientRepository provides data access for the clients table.
type ClientRepository struct {
	db DBTX
}

// NewClientRepository creates a ClientRepository backed by the given
// database connection (pool or transaction).
func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

// clientColumns is the standard column set for client queries. Used by
// every query method to avoid column drift.
const clientColumns = `c.id, c.name, c.email, c.api_key, c.billing_status,
	c.maintenance, c.maintenance_message, c.start_date, c.billing_cycle,
	c.billing_period, c.custom_price_cents, c.amount_paid_cents,
	c.renewal_price_cents, c.domain, c.domain_expiry, c.domain_provider,
	c.domain_bought_at, c.created_at, c.updated_at`

// scanClient scans a single client row in clientColumns order. Nullable
// columns use pointer scan targets.
func scanClient(row pgx.Row) (*types.Client, error) {
	var c types.Client
	var (
		email          *string
		apiKey         *string
		maintMessage   *string
		domain         *string
		domainProvider *string
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&email,
		&apiKey,
		&c.BillingStatus,
		&c.Maintenance,
		&maintMessage,
		&c.StartDate,
		&c.BillingCycle,
		&c.BillingPeriod,
		&c.CustomPriceCents,
		&c.AmountPaidCents,
		&c.RenewalPriceCents,
		&domain,
		&c.DomainExpiry,
		&domainProvider,
		&c.DomainBoughtAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email != nil {
		c.Email = *email
	}
	if apiKey != nil {
		c.APIKey = *apiKey
	}
	if maintMessage != nil {
		c.MaintenanceMessage = *maintMessage
	}
	if domain != nil {
		c.Domain = *domain
	}
	if domainProvider != nil {
		c.DomainProvider = *domainProvider
	}
	return &c, nil
}

// GetByID retrieves a client by ID. Returns a not_found_client AppError if
// no client matches.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*types.Client, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients c WHERE c.id = $1`,
		id,
	)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve client", err)
	}
	return c, nil
}

// GetByAPIKey retrieves a client by its API key. The api_key column carries
// a unique constraint; at most one row can match.
func (r *ClientRepository) GetByAPIKey(ctx context.Context, apiKey string) (*types.Client, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients c WHERE c.api_key = $1`,
		apiKey,
	)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve client", err)
	}
	return c, nil
}

// ListForRenewal returns reminder candidates: clients that are not unpaid.
// Email presence is checked by the collector, not here, so the scanned
// count in run reports reflects the real candidate pool.
func (r *ClientRepository) ListForRenewal(ctx context.Context) ([]*types.Client, error) {
	return r.list(ctx,
		`SELECT `+clientColumns+` FROM clients c WHERE c.billing_status <> 'unpaid' ORDER BY c.created_at`,
	)
}

// ListAll returns every client, for the dashboard aggregators.
func (r *ClientRepository) ListAll(ctx context.Context) ([]*types.Client, error) {
	return r.list(ctx,
		`SELECT `+clientColumns+` FROM clients c ORDER BY c.created_at`,
	)
}

func (r *ClientRepository) list(ctx context.Context, sql string, args ...any) ([]*types.Client, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list clients", err)
	}
	defer rows.Close()

	var out []*types.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan client", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate clients", err)
	}
	return out, nil
}

// AddToAmountPaid adjusts the cached amount_paid_cents counter. Must run in
// the same transaction as the ledger insert that justifies the delta; the
// Ledger service owns that pairing.
func (r *ClientRepository) AddToAmountPaid(ctx context.Context, clientID string, deltaCents int64, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clients SET amount_paid_cents = amount_paid_cents + $1, updated_at = $2 WHERE id = $3`,
		deltaCents, now, clientID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update paid amount", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
	}
	return nil
}
