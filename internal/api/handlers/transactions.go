package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clientdesk/internal/core"
	"clientdesk/internal/types"
)

// ClientReader resolves a client record by ID.
type ClientReader interface {
	GetByID(ctx context.Context, id string) (*types.Client, error)
}

// TransactionLister reads a client's ledger entries.
type TransactionLister interface {
	ListByClient(ctx context.Context, clientID string) ([]*types.Transaction, error)
}

// LedgerRecorder appends one ledger entry and updates the client's paid
// total atomically. CheckConsistency reports drift between the ledger sum
// and the cached total.
type LedgerRecorder interface {
	Record(ctx context.Context, clientID string, amountCents int64, txnType types.TransactionType, date time.Time, description, method string) (*types.Transaction, error)
	CheckConsistency(ctx context.Context, clientID string) error
}

// CreateTransactionRequest is the body for POST /v1/clients/{id}/transactions.
// Date is optional; it defaults to the current instant. Negative amounts are
// valid for adjustment entries only.
type CreateTransactionRequest struct {
	AmountCents int64      `json:"amountCents" validate:"required"`
	Type        string     `json:"type" validate:"required,oneof=payment adjustment"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty" validate:"max=500"`
	Method      string     `json:"method,omitempty" validate:"max=100"`
}

// TransactionHandler serves the thin ledger endpoints of the admin surface.
type TransactionHandler struct {
	clients   ClientReader
	txns      TransactionLister
	ledger    LedgerRecorder
	clock     types.Clock
	validator *core.Validator
	logger    *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(
	clients ClientReader,
	txns TransactionLister,
	ledger LedgerRecorder,
	clock types.Clock,
	v *core.Validator,
	logger *slog.Logger,
) *TransactionHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionHandler{
		clients:   clients,
		txns:      txns,
		ledger:    ledger,
		clock:     clock,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the transaction endpoints.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/clients/{clientID}/transactions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/consistency", h.Consistency)
	})
}

// List handles GET /v1/clients/{clientID}/transactions. Entries come back
// newest first.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if _, err := h.clients.GetByID(r.Context(), clientID); err != nil {
		core.Error(w, r, err)
		return
	}

	txns, err := h.txns.ListByClient(r.Context(), clientID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: txns})
}

// Create handles POST /v1/clients/{clientID}/transactions. Recording a
// payment also advances the client's amount-paid total in the same
// database transaction.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req CreateTransactionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := h.clients.GetByID(r.Context(), clientID); err != nil {
		core.Error(w, r, err)
		return
	}

	date := h.clock.Now()
	if req.Date != nil {
		date = *req.Date
	}

	txn, err := h.ledger.Record(
		r.Context(),
		clientID,
		req.AmountCents,
		types.TransactionType(req.Type),
		date,
		req.Description,
		req.Method,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: txn})
}

// ConsistencyResult reports whether a client's ledger sum matches the
// cached amount-paid total.
type ConsistencyResult struct {
	ClientID   string `json:"client_id"`
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// Consistency handles GET /v1/clients/{clientID}/transactions/consistency.
// Drift is reported in the body, not as an error status; only store
// failures produce a non-200 response.
func (h *TransactionHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if _, err := h.clients.GetByID(r.Context(), clientID); err != nil {
		core.Error(w, r, err)
		return
	}

	result := ConsistencyResult{ClientID: clientID, Consistent: true}
	if err := h.ledger.CheckConsistency(r.Context(), clientID); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			core.Error(w, r, err)
			return
		}
		h.logger.Warn("ledger drift detected",
			slog.String("client_id", clientID),
			slog.String("detail", err.Error()),
		)
		result.Consistent = false
		result.Detail = err.Error()
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}
