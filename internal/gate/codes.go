// Package gate implements the site authorization gate: a read-only decision
// over a client's maintenance and billing state, plus the versioned code
// registry that external integrators parse programmatically.
package gate

import (
	"net/http"
	"sort"
)

// Code identifies an entry in the gate's response-code registry.
// The code/HTTP pairs are a frozen wire contract; changing one requires a
// contract version bump because third-party sites hard-code them.
type Code string

const (
	CodeMissingIdentifier Code = "AUTH_001"
	CodeClientNotFound    Code = "AUTH_002"
	CodeBillingBlocked    Code = "AUTH_003"
	CodeMaintenance       Code = "AUTH_004"
	CodeAuthorized        Code = "OK_001"
	CodeSystemError       Code = "SYS_001"

	// CodeMalformedRequest is reserved for adjacent validation paths; the
	// gate itself never returns it but the registry documents it.
	CodeMalformedRequest Code = "VAL_001"
)

// Entry is a single immutable registry record.
type Entry struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
	HTTPStatus  int    `json:"http_status"`
}

// registry is the authoritative code table. Loaded once at init, never
// mutated; Lookup hands out copies.
var registry = map[Code]Entry{
	CodeMissingIdentifier: {
		Code:        CodeMissingIdentifier,
		Message:     "missing identifier",
		Description: "The request supplied neither an API key nor a client ID.",
		HTTPStatus:  http.StatusBadRequest,
	},
	CodeClientNotFound: {
		Code:        CodeClientNotFound,
		Message:     "client not found",
		Description: "No client matches the supplied API key or client ID.",
		HTTPStatus:  http.StatusUnauthorized,
	},
	CodeBillingBlocked: {
		Code:        CodeBillingBlocked,
		Message:     "billing not current",
		Description: "The client's billing status does not permit serving traffic.",
		HTTPStatus:  http.StatusForbidden,
	},
	CodeMaintenance: {
		Code:        CodeMaintenance,
		Message:     "maintenance mode",
		Description: "The site is temporarily offline for maintenance.",
		HTTPStatus:  http.StatusServiceUnavailable,
	},
	CodeAuthorized: {
		Code:        CodeAuthorized,
		Message:     "authorized",
		Description: "The client is in good standing and may serve traffic.",
		HTTPStatus:  http.StatusOK,
	},
	CodeSystemError: {
		Code:        CodeSystemError,
		Message:     "unexpected internal failure",
		Description: "An internal error occurred while evaluating the request.",
		HTTPStatus:  http.StatusInternalServerError,
	},
	CodeMalformedRequest: {
		Code:        CodeMalformedRequest,
		Message:     "malformed request",
		Description: "The request could not be parsed.",
		HTTPStatus:  http.StatusBadRequest,
	},
}

// Lookup returns the registry entry for a code. The boolean is false for
// codes outside the documented contract.
func Lookup(code Code) (Entry, bool) {
	e, ok := registry[code]
	return e, ok
}

// Entries returns a copy of the full registry sorted by code. Served by
// GET /v1/check/codes; callers may not mutate the contract through it.
func Entries() []Entry {
	out := make([]Entry, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
