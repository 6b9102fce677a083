package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/application"
)

// Server exposes the operator API over chi. All /api/v1 routes sit behind the
// JWT session middleware.
type Server struct {
	facade *application.OutreachFacade
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(facade *application.OutreachFacade, auth *AuthManager, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{facade: facade, auth: auth, log: &l}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/schedules", s.handleScheduleSingle)
		r.Post("/schedules/batch", s.handleScheduleBatch)
		r.Delete("/schedules/{id}", s.handleCancel)
		r.Get("/schedules/stats", s.handleStats)

		r.Get("/cooldown/{account}", s.handleCooldownStatus)
		r.Post("/cooldown/{account}/sessions", s.handleStartSession)

		r.Post("/experiments", s.handleCreateExperiment)
		r.Get("/experiments/best-practices", s.handleBestPractices)
		r.Get("/experiments/{id}/results", s.handleExperimentResults)
		r.Post("/experiments/{id}/events", s.handleExperimentEvent)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
