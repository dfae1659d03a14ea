// Package config defines the global configuration for the ClientDesk
// service. Configuration is loaded once at process startup and is immutable
// thereafter. Values come from the OS environment, with a .env file as a
// local-development fallback. Any missing required value or invalid format
// aborts startup (fail fast).
package config

import (
	"time"

	"clientdesk/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Email    EmailConfig
	Billing  BillingConfig
	Renewal  RenewalConfig

	// Build metadata injected via ldflags, not env.
	Build BuildInfo
}

// IsLocal reports whether the service runs in local development mode.
// Local mode relaxes the shared-secret check on operational endpoints.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"20s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
	// Public base URL for payment redirect pages (no trailing slash).
	PublicURL string `envconfig:"PUBLIC_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration for the SES mailer.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds the sender identity for renewal reminder mail.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"billing@clientdesk.io"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"ClientDesk Billing"`
	Enabled     bool   `envconfig:"EMAIL_ENABLED" default:"true"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	Currency        string       `envconfig:"BILLING_CURRENCY" default:"usd"`
	// PaymentLinks toggles Stripe checkout links inside reminder emails.
	PaymentLinks bool `envconfig:"BILLING_PAYMENT_LINKS" default:"true"`
}

// RenewalConfig tunes the renewal reminder job.
type RenewalConfig struct {
	WindowDays int `envconfig:"RENEWAL_WINDOW_DAYS" default:"7" validate:"min=0,max=365"`
	Workers    int `envconfig:"RENEWAL_WORKERS" default:"4" validate:"min=1,max=64"`
	// SharedSecret guards the manual trigger endpoint outside local mode.
	SharedSecret SecretString `envconfig:"RENEWAL_SHARED_SECRET"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
