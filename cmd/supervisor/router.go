// cmd/supervisor/router.go
package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prestamos/internal/auth"
	"prestamos/internal/inbox"
	"prestamos/internal/lifecycle"
	"prestamos/internal/logging"
	"prestamos/internal/outreach"
)

func newRouter(a *app, ring *logging.Ring) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(auth.Require(a.cfg.AdminToken)).Get("/debug/logs", func(w http.ResponseWriter, _ *http.Request) {
		if ring == nil {
			writeJSON(w, http.StatusOK, []logging.Entry{})
			return
		}
		writeJSON(w, http.StatusOK, ring.Entries())
	})

	r.Route("/api", func(api chi.Router) {
		lifecycle.NewHandler(a.supervisor, a.cfg.CronSecret, a.cfg.RunTimeout, a.logger).Routes(api)
		inbox.NewHandler(a.inbox, a.logger).Routes(api)

		api.Group(func(admin chi.Router) {
			admin.Use(auth.Require(a.cfg.AdminToken))
			outreach.NewHandler(a.outreach, a.logger).Routes(admin)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
