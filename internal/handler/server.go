// Package handler exposes the tracker over HTTP. Handlers are thin: they
// decode requests, call the engine or a service, and map domain errors to
// status codes. No business logic lives here.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bosstrack/fieldtrack/internal/consent"
	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/store"
)

// TripEngine is the slice of the lifecycle engine the HTTP layer consumes.
type TripEngine interface {
	StartTrip(ctx context.Context, record domain.ConsentRecord, vehicleRef string) (domain.Trip, error)
	StopTrip(ctx context.Context) (*domain.Trip, error)
	GetCurrentTrip() *domain.Trip
	IsTracking() bool
}

// ConsentService is the slice of the consent service the HTTP layer consumes.
type ConsentService interface {
	RegisterWithConsent(ctx context.Context, reg consent.Registration) (domain.Profile, error)
	Grant(ctx context.Context, subjectID uuid.UUID) (domain.Profile, error)
	Revoke(ctx context.Context, subjectID uuid.UUID) (domain.Profile, error)
	RecordFor(ctx context.Context, subjectID uuid.UUID) (domain.ConsentRecord, error)
}

// Server holds the dependencies shared by all HTTP handlers.
type Server struct {
	engine   TripEngine
	consents ConsentService
	trips    store.TripStore
	log      *slog.Logger
}

// NewServer constructs a Server over the given collaborators.
func NewServer(engine TripEngine, consents ConsentService, trips store.TripStore, log *slog.Logger) *Server {
	return &Server{engine: engine, consents: consents, trips: trips, log: log}
}

// Routes registers every endpoint on a fresh chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/consent", s.RegisterConsent)
		r.Post("/consent/{id}/grant", s.GrantConsent)
		r.Delete("/consent/{id}", s.RevokeConsent)

		r.Post("/trips/start", s.StartTrip)
		r.Post("/trips/stop", s.StopTrip)
		r.Get("/trips/current", s.CurrentTrip)
		r.Get("/trips", s.TripHistory)
	})

	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
