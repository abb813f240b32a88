// internal/outreach/handler.go
package outreach

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"prestamos/internal/lending"
	"prestamos/internal/store"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("outreach"),
	}
}

// Routes mounts the admin endpoints. Callers wrap r with admin auth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/admin/loans/{loanId}/remind", h.HandleRemind)
	r.Post("/admin/notifications/bulk", h.HandleBulk)
}

func (h *Handler) HandleRemind(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	rem, err := h.service.RemindLoan(r.Context(), chi.URLParam(r, "loanId"), force)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rem)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "loan or borrower not found", http.StatusNotFound)
	case errors.Is(err, ErrNotRemindable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, lending.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("manual reminder", zap.Error(err))
		http.Error(w, "reminder failed", http.StatusInternalServerError)
	}
}

func (h *Handler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.Broadcast(r.Context(), req)
	if err != nil {
		h.logger.Error("bulk notification", zap.Error(err))
		http.Error(w, "bulk notification interrupted", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
