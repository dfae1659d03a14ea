package gate

import (
	"context"
	"errors"
	"log/slog"

	"clientdesk/internal/types"
)

// maintenanceRedirectPath is the advisory route integrators may redirect
// visitors to while a site is in maintenance mode.
const maintenanceRedirectPath = "/maintenance"

// ClientLookup is the client-store collaborator the engine reads from.
// Implementations must return an AppError with code not_found_client when
// no client matches; any other error is treated as a system failure.
type ClientLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*types.Client, error)
	GetByID(ctx context.Context, id string) (*types.Client, error)
}

// AuditSink records gate checks best-effort. Implementations swallow their
// own failures; the engine never lets auditing affect a decision.
type AuditSink interface {
	Record(ctx context.Context, event types.AuditEvent)
}

// Identifier carries the caller-supplied client identity. APIKey takes
// precedence over ClientID when both are present; integrators depend on
// this ordering.
type Identifier struct {
	APIKey   string
	ClientID string
}

// Decision is the gate's structured outcome. All fields are part of the
// stable response contract; changes must be additive only.
type Decision struct {
	Success     bool             `json:"success"`
	Authorized  bool             `json:"authorized"`
	Code        Code             `json:"code"`
	Message     string           `json:"message"`
	Description string           `json:"description,omitempty"`
	Details     string           `json:"details,omitempty"`
	Client      *types.ClientRef `json:"client,omitempty"`
	RedirectURL string           `json:"redirectUrl,omitempty"`

	// HTTPStatus is the transport status declared by the registry.
	// Not serialized; the handler sets it on the response.
	HTTPStatus int `json:"-"`
}

// Engine evaluates site authorization. It is stateless and safe for
// concurrent use; the only shared state is the immutable code registry.
type Engine struct {
	clients ClientLookup
	audit   AuditSink
	logger  *slog.Logger
}

// NewEngine creates an Engine. The audit sink may be nil, in which case
// checks are not audited.
func NewEngine(clients ClientLookup, audit AuditSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{clients: clients, audit: audit, logger: logger}
}

// Authorize decides whether the identified client may serve traffic.
//
// Evaluation order is fixed and short-circuiting:
//  1. no identifier        -> AUTH_001 (the store is never consulted)
//  2. no matching client   -> AUTH_002
//  3. maintenance mode     -> AUTH_004 (dominates billing, even PAID)
//  4. billing not paid     -> AUTH_003
//  5. otherwise            -> OK_001
//
// The decision is read-only: client state is never mutated. Store failures
// and malformed stored data (a billing status outside the modeled set) are
// logged with full detail and surfaced only as SYS_001.
func (e *Engine) Authorize(ctx context.Context, ident Identifier) Decision {
	if ident.APIKey == "" && ident.ClientID == "" {
		return e.deny(ctx, CodeMissingIdentifier, "", nil)
	}

	client, err := e.lookup(ctx, ident)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundClient {
			return e.deny(ctx, CodeClientNotFound, "", nil)
		}
		e.logger.Error("gate lookup failed",
			slog.String("client_id", ident.ClientID),
			slog.String("request_id", types.GetRequestID(ctx)),
			slog.Any("error", err),
		)
		return e.deny(ctx, CodeSystemError, "", nil)
	}

	if client.Maintenance {
		d := e.deny(ctx, CodeMaintenance, "", client)
		if client.MaintenanceMessage != "" {
			d.Message = client.MaintenanceMessage
		}
		d.RedirectURL = maintenanceRedirectPath
		return d
	}

	// A billing status outside the modeled set is malformed stored data,
	// not a billing decision; it must never leak through the contract.
	if !client.BillingStatus.Valid() {
		e.logger.Error("client has unmodeled billing status",
			slog.String("client_id", client.ID),
			slog.String("billing_status", string(client.BillingStatus)),
			slog.String("request_id", types.GetRequestID(ctx)),
		)
		return e.deny(ctx, CodeSystemError, "", client)
	}

	if client.BillingStatus != types.BillingPaid {
		// The billing state goes in Details so the documented message
		// stays stable across states.
		d := e.deny(ctx, CodeBillingBlocked, string(client.BillingStatus), client)
		return d
	}

	entry, _ := Lookup(CodeAuthorized)
	dec := Decision{
		Success:     true,
		Authorized:  true,
		Code:        entry.Code,
		Message:     entry.Message,
		Description: entry.Description,
		Client:      &types.ClientRef{ID: client.ID, Name: client.Name},
		HTTPStatus:  entry.HTTPStatus,
	}
	e.record(ctx, dec, client)
	return dec
}

// lookup resolves the client record, applying the API-key-first precedence.
func (e *Engine) lookup(ctx context.Context, ident Identifier) (*types.Client, error) {
	if ident.APIKey != "" {
		return e.clients.GetByAPIKey(ctx, ident.APIKey)
	}
	return e.clients.GetByID(ctx, ident.ClientID)
}

// deny builds a non-authorized decision from the registry entry and records
// it. details carries diagnostic state (e.g. the billing status).
func (e *Engine) deny(ctx context.Context, code Code, details string, client *types.Client) Decision {
	entry, _ := Lookup(code)
	dec := Decision{
		Success:     false,
		Authorized:  false,
		Code:        entry.Code,
		Message:     entry.Message,
		Description: entry.Description,
		Details:     details,
		HTTPStatus:  entry.HTTPStatus,
	}
	e.record(ctx, dec, client)
	return dec
}

// record audits a completed check. Best-effort only.
func (e *Engine) record(ctx context.Context, dec Decision, client *types.Client) {
	if e.audit == nil {
		return
	}
	ev := types.AuditEvent{
		Action:     "gate.check",
		EntityType: "client",
		Details: map[string]any{
			"code":       string(dec.Code),
			"authorized": dec.Authorized,
		},
	}
	if client != nil {
		ev.EntityID = client.ID
	}
	e.audit.Record(ctx, ev)
}
