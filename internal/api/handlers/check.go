// Package handlers contains the HTTP handler implementations for the
// ClientDesk API. Each handler defines the service contracts it needs
// locally and receives implementations via its constructor, which keeps
// the handlers decoupled from concrete types and easy to mock in tests.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clientdesk/internal/gate"
)

// identifierHeader and identifierQueryParam are the two ways an integration
// presents its identity to the gate. The header takes precedence.
const (
	identifierHeader     = "x-api-key"
	identifierQueryParam = "clientId"
)

// GateAuthorizer decides whether an identified client site may serve traffic.
type GateAuthorizer interface {
	Authorize(ctx context.Context, ident gate.Identifier) gate.Decision
}

// GateHandler serves the authorization gate endpoint. Its response body is a
// frozen wire contract consumed by deployed client sites: it is rendered
// directly from the Decision, never through the back-office envelope, and
// changes must be additive only.
type GateHandler struct {
	engine GateAuthorizer
	logger *slog.Logger
}

// NewGateHandler creates a GateHandler.
func NewGateHandler(engine GateAuthorizer, logger *slog.Logger) *GateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GateHandler{engine: engine, logger: logger}
}

// RegisterRoutes mounts the gate endpoints.
func (h *GateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/check", h.Check)
	r.Get("/check/codes", h.Codes)
}

// Check handles GET /v1/check. The caller identifies itself with the
// x-api-key header or the clientId query parameter; the header wins when
// both are present. The HTTP status always matches the decision code's
// registry entry, so integrations may branch on either.
func (h *GateHandler) Check(w http.ResponseWriter, r *http.Request) {
	ident := gate.Identifier{
		APIKey:   r.Header.Get(identifierHeader),
		ClientID: r.URL.Query().Get(identifierQueryParam),
	}

	decision := h.engine.Authorize(r.Context(), ident)
	writeDecision(w, h.logger, decision)
}

// Codes handles GET /v1/check/codes: the self-describing contract table for
// integrators, sorted by code. Like the check endpoint itself this renders
// the registry directly, not through the back-office envelope.
func (h *GateHandler) Codes(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(struct {
		Codes []gate.Entry `json:"codes"`
	}{Codes: gate.Entries()})
	if err != nil {
		h.logger.Error("failed to marshal code registry", slog.Any("error", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"authorized":false,"code":"SYS_001","message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeDecision renders a Decision with its registry HTTP status. Marshal
// failure falls back to a hand-built SYS_001 body so the contract shape is
// preserved even then.
func writeDecision(w http.ResponseWriter, logger *slog.Logger, d gate.Decision) {
	body, err := json.Marshal(d)
	if err != nil {
		logger.Error("failed to marshal gate decision", slog.Any("error", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"authorized":false,"code":"SYS_001","message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.HTTPStatus)
	_, _ = w.Write(body)
}
