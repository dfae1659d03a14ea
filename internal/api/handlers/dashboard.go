package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clientdesk/internal/billing"
	"clientdesk/internal/core"
	"clientdesk/internal/types"
)

// RevenueClientSource lists every client considered for revenue aggregation.
type RevenueClientSource interface {
	ListAll(ctx context.Context) ([]*types.Client, error)
}

// DashboardHandler serves the revenue summary for the back-office dashboard.
type DashboardHandler struct {
	clients RevenueClientSource
	logger  *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(clients RevenueClientSource, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{clients: clients, logger: logger}
}

// RegisterRoutes mounts the dashboard endpoints.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/revenue", h.Revenue)
}

// Revenue handles GET /v1/dashboard/revenue. The summary is computed from a
// fresh client listing on every request; at back-office scale this is
// cheaper than keeping an aggregate in sync.
func (h *DashboardHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListAll(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summary := billing.MonthlyRecurringRevenue(clients, h.logger)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}
