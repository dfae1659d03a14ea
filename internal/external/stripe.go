package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"clientdesk/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeLinkerConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeLinkerConfig holds the configuration for creating a StripeLinker.
type StripeLinkerConfig struct {
	SecretKey  string
	Currency   string // ISO currency code; defaults to "usd"
	SuccessURL string
	CancelURL  string
	BaseURL    string // Override for testing; defaults to stripeAPIBase
	Logger     *slog.Logger
}

// StripeLinker implements PaymentLinker by creating one-off Stripe Checkout
// Sessions through the REST API. Requests go through BaseClient so they
// inherit the circuit breaker, retries, and error mapping.
type StripeLinker struct {
	base       *BaseClient
	secretKey  string
	currency   string
	successURL string
	cancelURL  string
	baseURL    string
	logger     *slog.Logger
}

// NewStripeLinker creates a StripeLinker with a default BaseClient. The
// httpClient timeout should be around 20 seconds.
func NewStripeLinker(httpClient *http.Client, cfg StripeLinkerConfig) *StripeLinker {
	base := NewBaseClient(
		httpClient,
		"stripe",
		DefaultRetryPolicy(),
		"ClientDesk/1.0",
		types.ErrCodeUpstreamPayments,
		WithSleepFunc(time.Sleep),
	)
	return NewStripeLinkerWithBase(base, cfg)
}

// NewStripeLinkerWithBase creates a StripeLinker with a pre-configured
// BaseClient. Useful in tests to control retry and breaker behavior.
func NewStripeLinkerWithBase(base *BaseClient, cfg StripeLinkerConfig) *StripeLinker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeLinker{
		base:       base,
		secretKey:  cfg.SecretKey,
		currency:   currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// PaymentLink creates a payment-mode Checkout Session for the client's
// renewal amount and returns its hosted URL. The session uses inline
// price_data so no catalog price has to exist per client.
func (s *StripeLinker) PaymentLink(ctx context.Context, client *types.Client, amountCents int64) (string, error) {
	if amountCents <= 0 {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"payment link amount must be positive",
			nil,
		)
	}

	params := url.Values{}
	params.Set("mode", "payment")
	params.Set("client_reference_id", client.ID)
	params.Set("customer_email", client.Email)
	params.Set("success_url", s.successURL)
	params.Set("cancel_url", s.cancelURL)
	params.Set("metadata[client_id]", client.ID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("line_items[0][price_data][currency]", s.currency)
	params.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	params.Set("line_items[0][price_data][product_data][name]",
		fmt.Sprintf("Subscription renewal - %s", client.Name))

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "PaymentLink")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return session.URL, nil
}

// doPost performs an authenticated POST request with a form-encoded body.
func (s *StripeLinker) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	return s.base.Do(req)
}

// stripeCheckoutSession is the subset of the Checkout Session object we read.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse reads a Stripe error response and maps it to an AppError.
func (s *StripeLinker) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPayments,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPayments,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimit,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamPayments,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(
			types.ErrCodeUpstreamPayments,
			fmt.Sprintf("%s: Stripe authentication failed: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamPayments,
			fmt.Sprintf("%s: Stripe rejected the request: %s", operation, stripeErr.Error.Message),
			nil,
			map[string]any{
				"stripe_type":  stripeErr.Error.Type,
				"stripe_code":  stripeErr.Error.Code,
				"stripe_param": stripeErr.Error.Param,
			},
		)
	}
}
