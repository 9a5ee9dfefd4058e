package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appDecision "github.com/bookflow/bookflow/internal/application/decision"
	appIntake "github.com/bookflow/bookflow/internal/application/intake"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	intakeSvc   *appIntake.Service
	decisionSvc *appDecision.Service
	logger      zerolog.Logger
}

func NewServer(intakeSvc *appIntake.Service, decisionSvc *appDecision.Service, logger zerolog.Logger) *Server {
	return &Server{
		intakeSvc:   intakeSvc,
		decisionSvc: decisionSvc,
		logger:      logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/webhooks/booking", s.bookingWebhook)
	})

	// Decision links live at the root: they are pasted into emails and
	// clicked by humans.
	r.Get("/accept/{token}", s.acceptDecision)
	r.Get("/deny/{token}", s.denyDecision)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
