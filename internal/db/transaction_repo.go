package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clientdesk/internal/types"
)

// TransactionRepository provides data access for the transactions ledger.
// Rows are immutable once inserted; there is no update or delete method.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a TransactionRepository backed by the
// given database connection (pool or transaction).
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txnColumns = `t.id, t.client_id, t.amount_cents, t.type, t.date,
	t.description, t.method, t.created_at`

func scanTransaction(row pgx.Row) (*types.Transaction, error) {
	var t types.Transaction
	var description, method *string
	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.AmountCents,
		&t.Type,
		&t.Date,
		&description,
		&method,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		t.Description = *description
	}
	if method != nil {
		t.Method = *method
	}
	return &t, nil
}

// Create inserts a ledger row. Callers that also need the client's cached
// amount_paid_cents updated must run this inside the Ledger service so both
// writes share a transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *types.Transaction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transactions (id, client_id, amount_cents, type, date, description, method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.ClientID, t.AmountCents, t.Type, t.Date, t.Description, t.Method, t.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert transaction", err)
	}
	return nil
}

// ListByClient returns a client's ledger, newest first.
func (r *TransactionRepository) ListByClient(ctx context.Context, clientID string) ([]*types.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions t WHERE t.client_id = $1 ORDER BY t.date DESC, t.created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list transactions", err)
	}
	defer rows.Close()

	var out []*types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate transactions", err)
	}
	return out, nil
}

// SumByClient sums the ledger for one client. Used by consistency checks
// against the cached amount_paid_cents column, not by the hot path.
func (r *TransactionRepository) SumByClient(ctx context.Context, clientID string) (int64, error) {
	row := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE client_id = $1`,
		clientID,
	)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum transactions", err)
	}
	return sum, nil
}
