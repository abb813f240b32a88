// internal/lifecycle/handler.go
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"prestamos/internal/auth"
)

type Handler struct {
	service    Service
	secret     string
	runTimeout time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHandler guards the trigger with secret and allows one run per minute.
// A positive runTimeout bounds each triggered run.
func NewHandler(service Service, secret string, runTimeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		service:    service,
		secret:     secret,
		runTimeout: runTimeout,
		limiter:    rate.NewLimiter(rate.Every(time.Minute), 1),
		logger:     logger.Named("trigger"),
	}
}

type triggerResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Summary *Summary `json:"summary,omitempty"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/cron/supervisor", h.HandleTrigger)
	r.Post("/cron/supervisor", h.HandleTrigger)
}

func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if !auth.Authorized(r, h.secret) {
		h.logger.Warn("rejected supervisor trigger", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, triggerResponse{Message: "Unauthorized"})
		return
	}
	if !h.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, triggerResponse{Message: "Supervisor was triggered less than a minute ago"})
		return
	}

	// The run outlives a scheduler that hangs up early.
	ctx := context.WithoutCancel(r.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}
	summary, err := h.service.Run(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeJSON(w, http.StatusConflict, triggerResponse{Message: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Message: err.Error(), Summary: summary})
	default:
		writeJSON(w, http.StatusOK, triggerResponse{
			Success: true,
			Message: fmt.Sprintf("Supervisor completed: %d state changes, %d notifications sent", summary.StateChanges(), summary.NotificationsSent),
			Summary: summary,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
