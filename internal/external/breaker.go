package external

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"clientdesk/internal/types"
)

// newProviderBreaker builds the circuit breaker used around outbound
// provider calls. It opens after five consecutive failures and probes
// again after thirty seconds; while open, calls fail fast so a batch run
// does not stall on a down provider.
func newProviderBreaker[T any](name string) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// mapBreakerErr converts breaker sentinel errors into the upstream
// AppError the caller expects, passing other errors through.
func mapBreakerErr(err error, code types.ErrorCode, message string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(code, message, err)
	}
	return err
}

// BreakerMailer decorates a Mailer with a circuit breaker.
type BreakerMailer struct {
	inner   Mailer
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerMailer wraps the given Mailer.
func NewBreakerMailer(inner Mailer) *BreakerMailer {
	return &BreakerMailer{
		inner:   inner,
		breaker: newProviderBreaker[struct{}]("mailer"),
	}
}

// Send dispatches through the breaker. While the breaker is open the send
// fails immediately with an upstream mail error.
func (m *BreakerMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.inner.Send(ctx, to, subject, htmlBody)
	})
	if err != nil {
		return mapBreakerErr(err, types.ErrCodeUpstreamMail, "mail provider circuit open")
	}
	return nil
}
