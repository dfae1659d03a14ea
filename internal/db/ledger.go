package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clientdesk/internal/types"
)

// Ledger records administrative payments and adjustments. Each call inserts
// an immutable transaction row and bumps the client's cached
// amount_paid_cents in the same database transaction, which is what keeps
// the denormalized total equal to the ledger sum.
type Ledger struct {
	pool  Pool
	clock types.Clock
}

// NewLedger creates a Ledger over the given pool.
func NewLedger(pool Pool, clock types.Clock) *Ledger {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Ledger{pool: pool, clock: clock}
}

// Record validates and persists one transaction, returning the stored row.
// The transaction date defaults to now when zero.
func (l *Ledger) Record(ctx context.Context, clientID string, amountCents int64, txnType types.TransactionType, date time.Time, description, method string) (*types.Transaction, error) {
	if !txnType.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidBody, "unknown transaction type", nil)
	}
	if amountCents == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidAmount, "amount must be non-zero", nil)
	}

	now := l.clock.Now()
	if date.IsZero() {
		date = now
	}

	txn := &types.Transaction{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		AmountCents: amountCents,
		Type:        txnType,
		Date:        date,
		Description: description,
		Method:      method,
		CreatedAt:   now,
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := NewTransactionRepository(tx).Create(ctx, txn); err != nil {
		return nil, err
	}
	if err := NewClientRepository(tx).AddToAmountPaid(ctx, clientID, amountCents, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return txn, nil
}

// CheckConsistency compares the ledger sum with the cached amount_paid for
// one client. Returns an error describing the drift, or nil when they
// agree. Intended for operational spot checks.
func (l *Ledger) CheckConsistency(ctx context.Context, clientID string) error {
	sum, err := NewTransactionRepository(l.pool).SumByClient(ctx, clientID)
	if err != nil {
		return err
	}
	client, err := NewClientRepository(l.pool).GetByID(ctx, clientID)
	if err != nil {
		return err
	}
	if sum != client.AmountPaidCents {
		return fmt.Errorf("ledger drift for client %s: sum=%d cached=%d", clientID, sum, client.AmountPaidCents)
	}
	return nil
}
