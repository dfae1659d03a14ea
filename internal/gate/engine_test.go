package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientdesk/internal/types"
)

// --- Mocks ---

type mockClientLookup struct {
	getByAPIKeyFn func(ctx context.Context, key string) (*types.Client, error)
	getByIDFn     func(ctx context.Context, id string) (*types.Client, error)
	apiKeyCalls   int
	idCalls       int
}

func (m *mockClientLookup) GetByAPIKey(ctx context.Context, key string) (*types.Client, error) {
	m.apiKeyCalls++
	if m.getByAPIKeyFn != nil {
		return m.getByAPIKeyFn(ctx, key)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
}

func (m *mockClientLookup) GetByID(ctx context.Context, id string) (*types.Client, error) {
	m.idCalls++
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
}

type mockAuditSink struct {
	events []types.AuditEvent
}

func (m *mockAuditSink) Record(_ context.Context, ev types.AuditEvent) {
	m.events = append(m.events, ev)
}

func paidClient() *types.Client {
	return &types.Client{
		ID:            "cl_1",
		Name:          "Acme Bakery",
		APIKey:        "key_abc",
		BillingStatus: types.BillingPaid,
	}
}

func newTestEngine(lookup ClientLookup, audit AuditSink) *Engine {
	return NewEngine(lookup, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- Tests ---

func TestAuthorize_MissingIdentifier_NoStoreLookup(t *testing.T) {
	lookup := &mockClientLookup{}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{})

	assert.Equal(t, CodeMissingIdentifier, dec.Code)
	assert.Equal(t, http.StatusBadRequest, dec.HTTPStatus)
	assert.False(t, dec.Success)
	assert.False(t, dec.Authorized)
	assert.Equal(t, 0, lookup.apiKeyCalls, "store must not be consulted")
	assert.Equal(t, 0, lookup.idCalls, "store must not be consulted")
}

func TestAuthorize_ClientNotFound(t *testing.T) {
	eng := newTestEngine(&mockClientLookup{}, nil)

	dec := eng.Authorize(context.Background(), Identifier{ClientID: "nope"})

	assert.Equal(t, CodeClientNotFound, dec.Code)
	assert.Equal(t, http.StatusUnauthorized, dec.HTTPStatus)
	assert.False(t, dec.Authorized)
}

func TestAuthorize_Paid_Authorized(t *testing.T) {
	lookup := &mockClientLookup{
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
			return paidClient(), nil
		},
	}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{ClientID: "cl_1"})

	assert.Equal(t, CodeAuthorized, dec.Code)
	assert.Equal(t, http.StatusOK, dec.HTTPStatus)
	assert.True(t, dec.Success)
	assert.True(t, dec.Authorized)
	require.NotNil(t, dec.Client)
	assert.Equal(t, "cl_1", dec.Client.ID)
	assert.Equal(t, "Acme Bakery", dec.Client.Name)
	assert.Empty(t, dec.RedirectURL)
}

func TestAuthorize_BillingBlocked(t *testing.T) {
	for _, status := range []types.BillingStatus{types.BillingUnpaid, types.BillingOverdue} {
		t.Run(string(status), func(t *testing.T) {
			c := paidClient()
			c.BillingStatus = status
			lookup := &mockClientLookup{
				getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
					return c, nil
				},
			}
			eng := newTestEngine(lookup, nil)

			dec := eng.Authorize(context.Background(), Identifier{ClientID: c.ID})

			assert.Equal(t, CodeBillingBlocked, dec.Code)
			assert.Equal(t, http.StatusForbidden, dec.HTTPStatus)
			assert.Equal(t, "billing not current", dec.Message, "message must stay stable across states")
			assert.Equal(t, string(status), dec.Details)
			assert.Nil(t, dec.Client)
		})
	}
}

func TestAuthorize_UnmodeledBillingStatusIsSystemError(t *testing.T) {
	// A stored status outside {unpaid, paid, overdue} is malformed data,
	// not a billing outcome: it must surface as SYS_001, never AUTH_003
	// with the raw string leaking through Details.
	c := paidClient()
	c.BillingStatus = types.BillingStatus("pending")
	lookup := &mockClientLookup{
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
			return c, nil
		},
	}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{ClientID: c.ID})

	assert.Equal(t, CodeSystemError, dec.Code)
	assert.Equal(t, http.StatusInternalServerError, dec.HTTPStatus)
	assert.False(t, dec.Authorized)
	assert.Empty(t, dec.Details, "raw stored value must not be surfaced")
}

func TestAuthorize_MaintenanceDominatesBilling(t *testing.T) {
	// Maintenance must win for every billing status, including paid.
	for _, status := range []types.BillingStatus{types.BillingPaid, types.BillingUnpaid, types.BillingOverdue} {
		t.Run(string(status), func(t *testing.T) {
			c := paidClient()
			c.BillingStatus = status
			c.Maintenance = true
			lookup := &mockClientLookup{
				getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
					return c, nil
				},
			}
			eng := newTestEngine(lookup, nil)

			dec := eng.Authorize(context.Background(), Identifier{ClientID: c.ID})

			assert.Equal(t, CodeMaintenance, dec.Code)
			assert.Equal(t, http.StatusServiceUnavailable, dec.HTTPStatus)
			assert.Equal(t, "/maintenance", dec.RedirectURL)
		})
	}
}

func TestAuthorize_MaintenanceMessageOverride(t *testing.T) {
	c := paidClient()
	c.Maintenance = true
	c.MaintenanceMessage = "Back at noon."
	lookup := &mockClientLookup{
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) { return c, nil },
	}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{ClientID: c.ID})
	assert.Equal(t, "Back at noon.", dec.Message)

	c.MaintenanceMessage = ""
	dec = eng.Authorize(context.Background(), Identifier{ClientID: c.ID})
	assert.Equal(t, "maintenance mode", dec.Message, "falls back to the registry default")
}

func TestAuthorize_APIKeyPrecedence(t *testing.T) {
	// Two different clients: the key resolves to one in maintenance, the ID
	// to one fully paid. The key client's state must determine the outcome.
	keyClient := paidClient()
	keyClient.ID = "cl_key"
	keyClient.Maintenance = true

	idClient := paidClient()
	idClient.ID = "cl_id"

	lookup := &mockClientLookup{
		getByAPIKeyFn: func(_ context.Context, _ string) (*types.Client, error) {
			return keyClient, nil
		},
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
			return idClient, nil
		},
	}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{APIKey: "key_abc", ClientID: "cl_id"})

	assert.Equal(t, CodeMaintenance, dec.Code)
	assert.Equal(t, 1, lookup.apiKeyCalls)
	assert.Equal(t, 0, lookup.idCalls, "ID lookup must not run when a key is supplied")
}

func TestAuthorize_StoreFailureMapsToSystemError(t *testing.T) {
	lookup := &mockClientLookup{
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
			return nil, errors.New("connection refused")
		},
	}
	eng := newTestEngine(lookup, nil)

	dec := eng.Authorize(context.Background(), Identifier{ClientID: "cl_1"})

	assert.Equal(t, CodeSystemError, dec.Code)
	assert.Equal(t, http.StatusInternalServerError, dec.HTTPStatus)
	assert.Empty(t, dec.Details, "internal detail must not reach the caller")
	assert.Equal(t, "unexpected internal failure", dec.Message)
}

func TestAuthorize_AuditIsRecordedBestEffort(t *testing.T) {
	audit := &mockAuditSink{}
	lookup := &mockClientLookup{
		getByIDFn: func(_ context.Context, _ string) (*types.Client, error) {
			return paidClient(), nil
		},
	}
	eng := newTestEngine(lookup, audit)

	eng.Authorize(context.Background(), Identifier{ClientID: "cl_1"})

	require.Len(t, audit.events, 1)
	assert.Equal(t, "gate.check", audit.events[0].Action)
	assert.Equal(t, "cl_1", audit.events[0].EntityID)
	assert.Equal(t, true, audit.events[0].Details["authorized"])
}

func TestRegistry_WireContract(t *testing.T) {
	// This table is the external contract; it must never drift.
	expected := map[Code]int{
		CodeMissingIdentifier: 400,
		CodeClientNotFound:    401,
		CodeBillingBlocked:    403,
		CodeMaintenance:       503,
		CodeAuthorized:        200,
		CodeSystemError:       500,
		CodeMalformedRequest:  400,
	}
	for code, status := range expected {
		entry, ok := Lookup(code)
		require.True(t, ok, "missing registry entry for %s", code)
		assert.Equal(t, status, entry.HTTPStatus, "HTTP status drift for %s", code)
	}
	assert.Len(t, Entries(), len(expected))
}
