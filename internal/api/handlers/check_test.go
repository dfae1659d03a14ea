package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"clientdesk/internal/gate"
	"clientdesk/internal/types"
)

// stubAuthorizer records the identifier it was asked about and returns a
// canned decision.
type stubAuthorizer struct {
	lastIdent gate.Identifier
	decision  gate.Decision
}

func (s *stubAuthorizer) Authorize(ctx context.Context, ident gate.Identifier) gate.Decision {
	s.lastIdent = ident
	return s.decision
}

func newGateRouter(auth GateAuthorizer) http.Handler {
	h := NewGateHandler(auth, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestCheck_ForwardsIdentifiers(t *testing.T) {
	stub := &stubAuthorizer{decision: gate.Decision{HTTPStatus: http.StatusOK}}
	router := newGateRouter(stub)

	r := httptest.NewRequest(http.MethodGet, "/check?clientId=client_9", nil)
	r.Header.Set("x-api-key", "cd_live_abc")

	router.ServeHTTP(httptest.NewRecorder(), r)

	if stub.lastIdent.APIKey != "cd_live_abc" {
		t.Errorf("apiKey = %q", stub.lastIdent.APIKey)
	}
	if stub.lastIdent.ClientID != "client_9" {
		t.Errorf("clientId = %q", stub.lastIdent.ClientID)
	}
}

func TestCheck_AuthorizedResponseShape(t *testing.T) {
	stub := &stubAuthorizer{decision: gate.Decision{
		Success:    true,
		Authorized: true,
		Code:       gate.CodeAuthorized,
		Message:    "authorized",
		Client:     &types.ClientRef{ID: "client_9", Name: "Acme Corp"},
		HTTPStatus: http.StatusOK,
	}}
	router := newGateRouter(stub)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/check?clientId=client_9", nil)
	router.ServeHTTP(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	// The wire contract is frozen: assert raw keys, not round-tripped structs.
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || body["authorized"] != true {
		t.Errorf("flags = %v / %v", body["success"], body["authorized"])
	}
	if body["code"] != "OK_001" {
		t.Errorf("code = %v", body["code"])
	}
	client, ok := body["client"].(map[string]any)
	if !ok {
		t.Fatalf("client = %v", body["client"])
	}
	if client["id"] != "client_9" || client["name"] != "Acme Corp" {
		t.Errorf("client = %v", client)
	}
	if len(client) != 2 {
		t.Errorf("client payload carries extra fields: %v", client)
	}
	// Empty optional fields must be omitted, not null.
	for _, key := range []string{"description", "details", "redirectUrl", "httpStatus"} {
		if _, present := body[key]; present {
			t.Errorf("unexpected key %q in response", key)
		}
	}
}

func TestCheck_StatusFollowsDecision(t *testing.T) {
	tests := []struct {
		name     string
		decision gate.Decision
		want     int
	}{
		{"missing identifier", gate.Decision{Code: gate.CodeMissingIdentifier, HTTPStatus: http.StatusBadRequest}, http.StatusBadRequest},
		{"not found", gate.Decision{Code: gate.CodeClientNotFound, HTTPStatus: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"billing blocked", gate.Decision{Code: gate.CodeBillingBlocked, HTTPStatus: http.StatusForbidden}, http.StatusForbidden},
		{"maintenance", gate.Decision{Code: gate.CodeMaintenance, HTTPStatus: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"system error", gate.Decision{Code: gate.CodeSystemError, HTTPStatus: http.StatusInternalServerError}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newGateRouter(&stubAuthorizer{decision: tt.decision})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check", nil))

			if w.Result().StatusCode != tt.want {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.want)
			}
		})
	}
}

func TestCodes_ServesContractTable(t *testing.T) {
	router := newGateRouter(&stubAuthorizer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check/codes", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var body struct {
		Codes []struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			HTTPStatus int    `json:"http_status"`
		} `json:"codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Codes) != 7 {
		t.Fatalf("codes = %d, want 7", len(body.Codes))
	}
	// Sorted by code: AUTH_* first, OK_001 before SYS_001, VAL_001 last.
	first, last := body.Codes[0], body.Codes[len(body.Codes)-1]
	if first.Code != "AUTH_001" || first.HTTPStatus != http.StatusBadRequest {
		t.Errorf("first entry = %+v", first)
	}
	if last.Code != "VAL_001" {
		t.Errorf("last entry = %+v", last)
	}
	for _, e := range body.Codes {
		if e.Message == "" || e.HTTPStatus == 0 {
			t.Errorf("entry %s missing message or status: %+v", e.Code, e)
		}
	}
}

func TestCheck_MaintenanceRedirect(t *testing.T) {
	stub := &stubAuthorizer{decision: gate.Decision{
		Success:     false,
		Authorized:  false,
		Code:        gate.CodeMaintenance,
		Message:     "site is under maintenance",
		RedirectURL: "/maintenance",
		HTTPStatus:  http.StatusServiceUnavailable,
	}}
	router := newGateRouter(stub)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check?clientId=client_9", nil))

	var body map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["redirectUrl"] != "/maintenance" {
		t.Errorf("redirectUrl = %v", body["redirectUrl"])
	}
}
