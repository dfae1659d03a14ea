package renewal

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"clientdesk/internal/types"
)

// EmailSender is the outbound-mail collaborator. Fire-and-forget from the
// job's perspective: a send failure is logged and counted, never propagated
// to the batch caller.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ClientSource lists reminder candidates. Implementations exclude unpaid
// clients at the store level; the collector re-checks regardless.
type ClientSource interface {
	ListForRenewal(ctx context.Context) ([]*types.Client, error)
}

// PaymentLinker optionally produces a hosted payment link for the renewal
// amount, embedded in the reminder email. May be nil (reminders still send).
type PaymentLinker interface {
	PaymentLink(ctx context.Context, client *types.Client, amountCents int64) (string, error)
}

// AuditSink records the completed run best-effort.
type AuditSink interface {
	Record(ctx context.Context, event types.AuditEvent)
}

// RunReport summarizes one reminder pass. Sent counts only successful
// dispatches. Skipped covers ordinary ineligibility (no email, unpaid, out
// of window); Invalid counts records with unusable cycle data, which an
// operator should clean up rather than wait out. NotifiedIDs lets an
// operator spot repeat reminders across consecutive daily runs;
// re-notification inside the window is intended behavior, there is no
// suppression log.
type RunReport struct {
	Scanned     int      `json:"scanned"`
	Due         int      `json:"due"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	Invalid     int      `json:"invalid"`
	NotifiedIDs []string `json:"notified_ids,omitempty"`
}

// NotifierConfig tunes a reminder run.
type NotifierConfig struct {
	// WindowDays is the lookahead window; a renewal exactly WindowDays out
	// is still included.
	WindowDays int
	// Workers bounds concurrent email dispatch. 1 means sequential. Each
	// client is submitted exactly once per run regardless of concurrency,
	// so at-most-once per run holds.
	Workers int
}

// Notifier runs the renewal-reminder job.
type Notifier struct {
	clients ClientSource
	mailer  EmailSender
	links   PaymentLinker
	audit   AuditSink
	cfg     NotifierConfig
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. links and audit may be nil.
func NewNotifier(clients ClientSource, mailer EmailSender, links PaymentLinker, audit AuditSink, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{clients: clients, mailer: mailer, links: links, audit: audit, cfg: cfg, logger: logger}
}

// Run executes one reminder pass as of the given instant. The asOf
// parameter is injected for deterministic tests and manual backfill.
//
// Per-client failures (bad cycle data, mail errors) are skip-and-continue;
// only the initial client listing can fail the run as a whole.
func (n *Notifier) Run(ctx context.Context, asOf time.Time) (RunReport, error) {
	candidates, err := n.clients.ListForRenewal(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("listing renewal candidates: %w", err)
	}

	due, invalid := CollectDueRenewals(candidates, asOf, n.cfg.WindowDays, n.logger)

	report := RunReport{
		Scanned: len(candidates),
		Due:     len(due),
		Skipped: len(candidates) - len(due) - invalid,
		Invalid: invalid,
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(n.cfg.Workers)

	for _, d := range due {
		d := d
		g.Go(func() error {
			if err := n.send(gCtx, d); err != nil {
				n.logger.Error("reminder send failed",
					slog.String("client_id", d.Client.ID),
					slog.Any("error", err),
				)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				// Do not propagate: one failed send must not cancel the batch.
				return nil
			}
			mu.Lock()
			report.Sent++
			report.NotifiedIDs = append(report.NotifiedIDs, d.Client.ID)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	n.logger.Info("renewal reminder run complete",
		slog.Int("scanned", report.Scanned),
		slog.Int("due", report.Due),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("invalid", report.Invalid),
	)

	if n.audit != nil {
		n.audit.Record(ctx, types.AuditEvent{
			Action: "renewal.reminder_run",
			Details: map[string]any{
				"scanned": report.Scanned,
				"sent":    report.Sent,
				"failed":  report.Failed,
			},
		})
	}

	return report, nil
}

// send renders and dispatches one reminder.
func (n *Notifier) send(ctx context.Context, d DueRenewal) error {
	payLink := ""
	if n.links != nil && d.Client.RenewalPriceCents > 0 {
		link, err := n.links.PaymentLink(ctx, d.Client, d.Client.RenewalPriceCents)
		if err != nil {
			// The reminder is still worth sending without a link.
			n.logger.Warn("payment link unavailable",
				slog.String("client_id", d.Client.ID),
				slog.Any("error", err),
			)
		} else {
			payLink = link
		}
	}

	subject := fmt.Sprintf("Your subscription renews in %d days", d.DaysRemaining)
	if d.DaysRemaining == 0 {
		subject = "Your subscription renews today"
	} else if d.DaysRemaining == 1 {
		subject = "Your subscription renews tomorrow"
	}

	body, err := renderReminder(d, payLink)
	if err != nil {
		return fmt.Errorf("rendering reminder: %w", err)
	}

	return n.mailer.Send(ctx, d.Client.Email, subject, body)
}

var reminderTmpl = template.Must(template.New("reminder").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Your subscription renews on <strong>{{.Date}}</strong>{{if .Amount}} for {{.Amount}}{{end}}.</p>
{{if .PayLink}}<p><a href="{{.PayLink}}">Pay now</a></p>{{end}}
<p>If everything is up to date you can ignore this message.</p>
</body></html>`))

// renderReminder produces the reminder HTML body.
func renderReminder(d DueRenewal, payLink string) (string, error) {
	data := struct {
		Name    string
		Date    string
		Amount  string
		PayLink string
	}{
		Name:    d.Client.Name,
		Date:    d.NextDate.Format("January 2, 2006"),
		PayLink: payLink,
	}
	if cents := d.Client.RenewalPriceCents; cents > 0 {
		data.Amount = fmt.Sprintf("$%d.%02d", cents/100, cents%100)
	}

	var sb strings.Builder
	if err := reminderTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
