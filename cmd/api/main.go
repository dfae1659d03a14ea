// Package main is the entry point for the ClientDesk API server.
//
// It loads configuration, connects the database pool, wires the gate engine,
// renewal notifier, and ledger endpoints onto the core chassis, and serves
// HTTP with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
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

	"clientdesk/internal/api/handlers"
	"clientdesk/internal/config"
	"clientdesk/internal/core"
	"clientdesk/internal/db"
	"clientdesk/internal/external"
	"clientdesk/internal/gate"
	"clientdesk/internal/renewal"
	"clientdesk/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("clientdesk API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	clock := types.RealClock{}
	clientRepo := db.NewClientRepository(pool)
	txnRepo := db.NewTransactionRepository(pool)
	auditRepo := db.NewAuditRepository(pool, clock, logger)
	ledger := db.NewLedger(pool, clock)

	engine := gate.NewEngine(clientRepo, auditRepo, logger)

	mailer, err := newMailer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	linker := newPaymentLinker(cfg, logger)

	notifier := renewal.NewNotifier(clientRepo, mailer, linker, auditRepo, renewal.NotifierConfig{
		WindowDays: cfg.Renewal.WindowDays,
		Workers:    cfg.Renewal.Workers,
	}, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{&poolProbe{pool: pool}}

	validator := core.NewValidator(logger)

	gateHandler := handlers.NewGateHandler(engine, logger)
	renewalHandler := handlers.NewRenewalHandler(
		notifier,
		clientRepo,
		clock,
		cfg.Renewal.SharedSecret,
		cfg.IsLocal(),
		cfg.Renewal.WindowDays,
		logger,
	)
	dashboardHandler := handlers.NewDashboardHandler(clientRepo, logger)
	txnHandler := handlers.NewTransactionHandler(clientRepo, txnRepo, ledger, clock, validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		gateHandler.RegisterRoutes,
		renewalHandler.RegisterRoutes,
		dashboardHandler.RegisterRoutes,
		txnHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool creates and verifies the pgx connection pool with the configured
// tuning parameters.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// newMailer builds the SES mailer wrapped in a circuit breaker, or a
// log-only mailer when outbound email is disabled.
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

// newPaymentLinker builds the Stripe checkout linker, or nil when payment
// links are disabled; reminder emails then simply omit the link.
func newPaymentLinker(cfg *config.Config, logger *slog.Logger) renewal.PaymentLinker {
	if !cfg.Billing.PaymentLinks {
		return nil
	}

	return external.NewStripeLinker(
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

// logOnlyMailer satisfies the mailer contract without sending anything.
// Used in development when EMAIL_ENABLED=false.
type logOnlyMailer struct {
	logger *slog.Logger
}

func (m *logOnlyMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info("email suppressed", "to", to, "subject", subject)
	return nil
}

// poolProbe reports database health for GET /health.
type poolProbe struct {
	pool *pgxpool.Pool
}

func (p *poolProbe) Name() string { return "database" }

func (p *poolProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the configured level.
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
