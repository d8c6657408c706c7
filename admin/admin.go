// Package admin exposes a small HTTP surface for operating a running
// relay: liveness, hub/plugin status, and a forced-cancel escape hatch
// for a stuck User Hub.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wippy-systems/relay/central"
	"github.com/wippy-systems/relay/metrics"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// CentralView is the narrow surface admin needs from the Central Hub.
// *central.Hub satisfies this.
type CentralView interface {
	MetricsSnapshot() metrics.CentralSnapshot
	UserHubStatuses() []central.UserHubStatus
	Resolve(targetPID string) (transport.Hub, bool)
}

// Server is the admin HTTP surface.
type Server struct {
	central CentralView
	router  *chi.Mux
}

// New constructs a Server and builds its router.
func New(central CentralView) *Server {
	s := &Server{central: central}
	s.router = s.buildRouter()
	return s
}

// Router returns the admin HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/users/{userID}/cancel", s.handleCancelUser)
	})
	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Central  metrics.CentralSnapshot `json:"central"`
	UserHubs []central.UserHubStatus `json:"user_hubs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Central:  s.central.MetricsSnapshot(),
		UserHubs: s.central.UserHubStatuses(),
	})
}

// handleCancelUser issues a ws.cancel to the named user's User Hub,
// triggering its graceful shutdown.
func (s *Server) handleCancelUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	hub, ok := s.central.Resolve("user." + userID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user hub"})
		return
	}
	hub.Dispatch(topic.Cancel, "", nil)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel issued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
