// Package main is the one-shot renewal-reminder job. It is intended to be
// run on a daily schedule (cron, ECS scheduled task); each invocation scans
// the client base once, sends due reminders, logs the report, and exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"

	"clientdesk/internal/config"
	"clientdesk/internal/db"
	"clientdesk/internal/external"
	"clientdesk/internal/renewal"
	"clientdesk/internal/types"
)

// runTimeout bounds a full reminder pass. A run that cannot finish in this
// time is wedged on an upstream and should be retried by the next schedule.
const runTimeout = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("renewal notifier starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"window_days", cfg.Renewal.WindowDays,
		"workers", cfg.Renewal.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	clock := types.RealClock{}
	clientRepo := db.NewClientRepository(pool)
	auditRepo := db.NewAuditRepository(pool, clock, logger)

	mailer, err := newMailer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var linker renewal.PaymentLinker
	if cfg.Billing.PaymentLinks {
		linker = external.NewStripeLinker(
			&http.Client{Timeout: 20 * time.Second},
			external.StripeLinkerConfig{
				SecretKey:  cfg.Billing.StripeSecretKey.Unmask(),
				Currency:   cfg.Billing.Currency,
				SuccessURL: cfg.Server.PublicURL + "/pay/success",
				CancelURL:  cfg.Server.PublicURL + "/pay/cancel",
				Logger:     logger,
			},
		)
	}

	notifier := renewal.NewNotifier(clientRepo, mailer, linker, auditRepo, renewal.NotifierConfig{
		WindowDays: cfg.Renewal.WindowDays,
		Workers:    cfg.Renewal.Workers,
	}, logger)

	report, err := notifier.Run(ctx, clock.Now())
	if err != nil {
		return fmt.Errorf("reminder run: %w", err)
	}

	logger.Info("reminder run finished",
		"scanned", report.Scanned,
		"due", report.Due,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"invalid", report.Invalid,
	)

	if report.Failed > 0 {
		return fmt.Errorf("reminder run completed with %d failed sends", report.Failed)
	}
	return nil
}

func newMailer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (renewal.EmailSender, error) {
	if !cfg.Email.Enabled {
		logger.Warn("outbound email is disabled; reminders will only be logged")
		return &logOnlyMailer{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	sesClient := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	mailer := external.NewSESMailerWithAPI(sesClient, external.SESMailerConfig{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Logger:      logger,
	})

	return external.NewBreakerMailer(mailer), nil
}

type logOnlyMailer struct {
	logger *slog.Logger
}

func (m *logOnlyMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info("email suppressed", "to", to, "subject", subject)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
