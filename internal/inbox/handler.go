// internal/inbox/handler.go
package inbox

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"prestamos/internal/store"
)

type Handler struct {
	inbox  *Inbox
	logger *zap.Logger
}

func NewHandler(inbox *Inbox, logger *zap.Logger) *Handler {
	return &Handler{inbox: inbox, logger: logger.Named("inbox")}
}

// Routes mounts the inbox under /users/{userId}/notifications.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/users/{userId}/notifications", h.HandleList)
	r.Post("/users/{userId}/notifications/{id}/read", h.HandleMarkRead)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.inbox.List(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		http.Error(w, "could not load notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "notification not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("mark notification read", zap.Error(err))
		http.Error(w, "could not update notification", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
