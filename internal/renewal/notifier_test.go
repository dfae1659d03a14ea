package renewal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientdesk/internal/types"
)

// --- Mocks ---

type mockClientSource struct {
	clients []*types.Client
	err     error
}

func (m *mockClientSource) ListForRenewal(_ context.Context) ([]*types.Client, error) {
	return m.clients, m.err
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type mockMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func (m *mockMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[to] {
		return errors.New("smtp 550")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type mockLinker struct {
	url string
	err error
}

func (m *mockLinker) PaymentLink(_ context.Context, _ *types.Client, _ int64) (string, error) {
	return m.url, m.err
}

type mockAudit struct {
	events []types.AuditEvent
}

func (m *mockAudit) Record(_ context.Context, ev types.AuditEvent) {
	m.events = append(m.events, ev)
}

func dueSoonClient(id string, start time.Time) *types.Client {
	c := renewalClient(id, start)
	c.RenewalPriceCents = 4999
	return c
}

// --- Tests ---

func TestNotifier_Run_SendsOneReminderPerDueClient(t *testing.T) {
	asOf := day(2024, time.June, 1)
	source := &mockClientSource{clients: []*types.Client{
		dueSoonClient("cl_a", day(2024, time.June, 3)),
		dueSoonClient("cl_b", day(2024, time.June, 5)),
		dueSoonClient("cl_far", day(2024, time.July, 20)),
	}}
	mailer := &mockMailer{}
	audit := &mockAudit{}

	n := NewNotifier(source, mailer, nil, audit, NotifierConfig{WindowDays: 7}, discard())
	report, err := n.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Invalid)
	assert.ElementsMatch(t, []string{"cl_a", "cl_b"}, report.NotifiedIDs)
	assert.Len(t, mailer.sent, 2)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "renewal.reminder_run", audit.events[0].Action)
}

func TestNotifier_Run_BadCycleDataCountedAsInvalid(t *testing.T) {
	asOf := day(2024, time.June, 1)
	broken := dueSoonClient("cl_broken", day(2024, time.June, 3))
	broken.BillingCycle = types.BillingCycle("fortnightly")
	source := &mockClientSource{clients: []*types.Client{
		broken,
		dueSoonClient("cl_ok", day(2024, time.June, 3)),
		dueSoonClient("cl_far", day(2024, time.July, 20)),
	}}
	mailer := &mockMailer{}

	n := NewNotifier(source, mailer, nil, nil, NotifierConfig{WindowDays: 7}, discard())
	report, err := n.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Sent)
	// The out-of-window client is a skip; the unusable record is not.
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, []string{"cl_ok"}, report.NotifiedIDs)
}

func TestNotifier_Run_MailFailureIsCountedNotFatal(t *testing.T) {
	asOf := day(2024, time.June, 1)
	source := &mockClientSource{clients: []*types.Client{
		dueSoonClient("cl_ok", day(2024, time.June, 3)),
		dueSoonClient("cl_bounce", day(2024, time.June, 4)),
	}}
	mailer := &mockMailer{failTo: map[string]bool{"cl_bounce@example.com": true}}

	n := NewNotifier(source, mailer, nil, nil, NotifierConfig{WindowDays: 7}, discard())
	report, err := n.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"cl_ok"}, report.NotifiedIDs)
}

func TestNotifier_Run_ListErrorFailsTheRun(t *testing.T) {
	source := &mockClientSource{err: errors.New("db down")}
	n := NewNotifier(source, &mockMailer{}, nil, nil, NotifierConfig{WindowDays: 7}, discard())

	_, err := n.Run(context.Background(), day(2024, time.June, 1))
	assert.Error(t, err)
}

func TestNotifier_Run_AtMostOncePerRunUnderConcurrency(t *testing.T) {
	asOf := day(2024, time.June, 1)
	var clients []*types.Client
	for i := 0; i < 20; i++ {
		clients = append(clients, dueSoonClient("cl_"+string(rune('a'+i)), day(2024, time.June, 3)))
	}
	source := &mockClientSource{clients: clients}
	mailer := &mockMailer{}

	n := NewNotifier(source, mailer, nil, nil, NotifierConfig{WindowDays: 7, Workers: 4}, discard())
	report, err := n.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 20, report.Sent)
	assert.Len(t, mailer.sent, 20, "each due client gets exactly one email per run")

	seen := map[string]bool{}
	for _, m := range mailer.sent {
		assert.False(t, seen[m.to], "duplicate send to %s", m.to)
		seen[m.to] = true
	}
}

func TestNotifier_Run_RepeatRunsRenotify(t *testing.T) {
	// No suppression log exists: a second run on the next day re-notifies
	// clients still inside the window. Intended behavior.
	source := &mockClientSource{clients: []*types.Client{
		dueSoonClient("cl_a", day(2024, time.June, 5)),
	}}
	mailer := &mockMailer{}
	n := NewNotifier(source, mailer, nil, nil, NotifierConfig{WindowDays: 7}, discard())

	_, err := n.Run(context.Background(), day(2024, time.June, 1))
	require.NoError(t, err)
	_, err = n.Run(context.Background(), day(2024, time.June, 2))
	require.NoError(t, err)

	assert.Len(t, mailer.sent, 2)
}

func TestNotifier_ReminderContent(t *testing.T) {
	source := &mockClientSource{clients: []*types.Client{
		dueSoonClient("cl_a", day(2024, time.June, 3)),
	}}
	mailer := &mockMailer{}
	linker := &mockLinker{url: "https://pay.example/link_123"}

	n := NewNotifier(source, mailer, linker, nil, NotifierConfig{WindowDays: 7}, discard())
	_, err := n.Run(context.Background(), day(2024, time.June, 1))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, "cl_a@example.com", m.to)
	assert.Equal(t, "Your subscription renews in 2 days", m.subject)
	assert.Contains(t, m.body, "June 3, 2024")
	assert.Contains(t, m.body, "$49.99")
	assert.Contains(t, m.body, "https://pay.example/link_123")
}

func TestNotifier_PaymentLinkFailureStillSends(t *testing.T) {
	source := &mockClientSource{clients: []*types.Client{
		dueSoonClient("cl_a", day(2024, time.June, 3)),
	}}
	mailer := &mockMailer{}
	linker := &mockLinker{err: errors.New("stripe 502")}

	n := NewNotifier(source, mailer, linker, nil, NotifierConfig{WindowDays: 7}, discard())
	report, err := n.Run(context.Background(), day(2024, time.June, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	require.Len(t, mailer.sent, 1)
	assert.False(t, strings.Contains(mailer.sent[0].body, "Pay now"))
}
