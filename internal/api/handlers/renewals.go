package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clientdesk/internal/core"
	"clientdesk/internal/renewal"
	"clientdesk/internal/types"
)

// maxRenewalWindowDays bounds the ?window= query on the upcoming-renewals
// view. The reminder job has its own configured window.
const maxRenewalWindowDays = 365

// RenewalRunner executes one reminder pass.
type RenewalRunner interface {
	Run(ctx context.Context, asOf time.Time) (renewal.RunReport, error)
}

// RenewalClientSource lists the clients considered by the upcoming-renewals
// view.
type RenewalClientSource interface {
	ListForRenewal(ctx context.Context) ([]*types.Client, error)
}

// RenewalHandler serves the manual reminder trigger and the
// upcoming-renewals dashboard view.
type RenewalHandler struct {
	runner       RenewalRunner
	clients      RenewalClientSource
	clock        types.Clock
	sharedSecret types.SecretString
	devMode      bool
	windowDays   int
	logger       *slog.Logger
}

// NewRenewalHandler creates a RenewalHandler. In dev mode (local
// environment) the shared-secret check on the trigger endpoint is skipped.
func NewRenewalHandler(
	runner RenewalRunner,
	clients RenewalClientSource,
	clock types.Clock,
	sharedSecret types.SecretString,
	devMode bool,
	windowDays int,
	logger *slog.Logger,
) *RenewalHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RenewalHandler{
		runner:       runner,
		clients:      clients,
		clock:        clock,
		sharedSecret: sharedSecret,
		devMode:      devMode,
		windowDays:   windowDays,
		logger:       logger,
	}
}

// RegisterRoutes mounts the renewal endpoints.
func (h *RenewalHandler) RegisterRoutes(r chi.Router) {
	r.Post("/renewals/run", h.TriggerRun)
	r.Get("/dashboard/renewals", h.UpcomingRenewals)
}

// TriggerRun handles POST /v1/renewals/run. Outside dev mode the request
// must carry the operational shared secret as a bearer token. The run is
// synchronous; the report is returned in the response body.
func (h *RenewalHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r); err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.runner.Run(r.Context(), h.clock.Now())
	if err != nil {
		h.logger.Error("manual reminder run failed",
			slog.String("request_id", types.GetRequestID(r.Context())),
			slog.Any("error", err),
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"reminder run failed",
			err,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// authorize enforces the bearer shared secret on the trigger endpoint.
func (h *RenewalHandler) authorize(r *http.Request) error {
	if h.devMode {
		return nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return types.NewAppError(
			types.ErrCodeAuthSecretMissing,
			"missing bearer token",
			nil,
		)
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(h.sharedSecret.Unmask())) != 1 {
		return types.NewAppError(
			types.ErrCodeAuthSecretInvalid,
			"invalid bearer token",
			nil,
		)
	}

	return nil
}

// upcomingRenewalsResponse is the body of GET /v1/dashboard/renewals.
// Subscription renewals and domain expiries are independent tracks and are
// listed separately.
type upcomingRenewalsResponse struct {
	WindowDays     int                    `json:"window_days"`
	AsOf           time.Time              `json:"as_of"`
	Renewals       []upcomingRenewal      `json:"renewals"`
	DomainExpiries []renewal.DomainExpiry `json:"domain_expiries,omitempty"`
}

// upcomingRenewal is one row of the dashboard view: the client reference,
// the renewal schedule, and the amount still owed for the current cycle.
type upcomingRenewal struct {
	Client        types.ClientRef `json:"client"`
	NextDate      time.Time       `json:"next_date"`
	DaysRemaining int             `json:"days_remaining"`
	DueCents      int64           `json:"due_cents"`
}

// UpcomingRenewals handles GET /v1/dashboard/renewals?window=N. The window
// defaults to the configured reminder window and is capped at one year.
func (h *RenewalHandler) UpcomingRenewals(w http.ResponseWriter, r *http.Request) {
	windowDays := h.windowDays
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > maxRenewalWindowDays {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidWindow,
				"window must be an integer between 0 and 365",
				err,
			))
			return
		}
		windowDays = parsed
	}

	clients, err := h.clients.ListForRenewal(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	asOf := h.clock.Now()
	due, _ := renewal.CollectDueRenewals(clients, asOf, windowDays, h.logger)

	rows := make([]upcomingRenewal, 0, len(due))
	for _, d := range due {
		rows = append(rows, upcomingRenewal{
			Client:        types.ClientRef{ID: d.Client.ID, Name: d.Client.Name},
			NextDate:      d.NextDate,
			DaysRemaining: d.DaysRemaining,
			DueCents:      d.Client.DueAmountCents(),
		})
	}

	resp := upcomingRenewalsResponse{
		WindowDays:     windowDays,
		AsOf:           asOf,
		Renewals:       rows,
		DomainExpiries: renewal.CollectDomainExpiries(clients, asOf, windowDays),
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}
