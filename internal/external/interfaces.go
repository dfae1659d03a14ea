// Package external is the anti-corruption layer between domain logic and
// third-party providers (AWS SES, Stripe). Provider failures are mapped to
// AppErrors; consecutive failures trip a circuit breaker so batch jobs fail
// fast instead of hammering a down provider.
package external

import (
	"context"

	"clientdesk/internal/types"
)

// Mailer transmits a single pre-rendered HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// PaymentLinker produces a hosted payment URL for a renewal amount.
type PaymentLinker interface {
	PaymentLink(ctx context.Context, client *types.Client, amountCents int64) (string, error)
}
