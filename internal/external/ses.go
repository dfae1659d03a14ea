package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"clientdesk/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESMailer. Extracted
// for testability.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailerConfig holds the sender identity for outbound mail.
type SESMailerConfig struct {
	FromAddress string
	FromName    string
	Logger      *slog.Logger
}

// SESMailer implements Mailer using AWS SES v2. Authentication is handled
// via IAM roles; the AWS SDK provides built-in retries.
type SESMailer struct {
	api      SESAPI
	fromAddr string
	fromName string
	logger   *slog.Logger
}

// NewSESMailer creates an SESMailer from an AWS config.
func NewSESMailer(awsCfg aws.Config, cfg SESMailerConfig) *SESMailer {
	return newSESMailer(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESMailerWithAPI creates an SESMailer with a pre-configured SESAPI.
// Useful for testing with a mock.
func NewSESMailerWithAPI(api SESAPI, cfg SESMailerConfig) *SESMailer {
	return newSESMailer(api, cfg)
}

func newSESMailer(api SESAPI, cfg SESMailerConfig) *SESMailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESMailer{
		api:      api,
		fromAddr: cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// Send transmits one email with simple content. Error mapping:
//   - MessageRejected / AccountSuspendedException -> upstream mail error
//   - TooManyRequestsException -> upstream rate limited
//   - anything else -> upstream mail error
func (s *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	from := s.fromAddr
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddr)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Html: &sestypes.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	}

	_, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return mapSESError(err)
	}
	return nil
}

// mapSESError translates SES SDK errors into AppErrors.
func mapSESError(err error) error {
	var tooMany *sestypes.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimit, "mail provider rate limited", err)
	}

	var rejected *sestypes.MessageRejected
	if errors.As(err, &rejected) {
		return types.NewAppError(types.ErrCodeUpstreamMail, "mail provider rejected message", err)
	}

	return types.NewAppError(types.ErrCodeUpstreamMail, "mail provider unavailable", err)
}
