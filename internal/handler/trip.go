package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// startTripRequest is the body of POST /api/v1/trips/start.
type startTripRequest struct {
	DriverID   string `json:"driver_id"`
	VehicleRef string `json:"vehicle_ref,omitempty"`
}

// StartTrip handles POST /api/v1/trips/start.
// It resolves the driver's current consent record and hands it to the
// engine; the engine applies the 24-hour validity rule itself.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	var req startTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "invalid request body")
		return
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "driver_id must be a UUID")
		return
	}

	record, err := s.consents.RecordFor(r.Context(), driverID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	trip, err := s.engine.StartTrip(r.Context(), record, req.VehicleRef)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, trip)
}

// StopTrip handles POST /api/v1/trips/stop.
// Stopping with no active trip is a benign no-op and returns 204.
func (s *Server) StopTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.engine.StopTrip(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if trip == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// CurrentTrip handles GET /api/v1/trips/current.
func (s *Server) CurrentTrip(w http.ResponseWriter, _ *http.Request) {
	trip := s.engine.GetCurrentTrip()
	if trip == nil {
		writeError(w, http.StatusNotFound, "not_found", "no active trip")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// TripHistory handles GET /api/v1/trips?driver_id=&limit=.
// Trips are returned most recent first with their persisted samples
// hydrated, matching what the history screen renders.
func (s *Server) TripHistory(w http.ResponseWriter, r *http.Request) {
	driverID, err := uuid.Parse(r.URL.Query().Get("driver_id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "driver_id must be a UUID")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	trips, err := s.trips.GetTripsForOwner(r.Context(), driverID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	for i := range trips {
		samples, err := s.trips.GetTripLocations(r.Context(), trips[i].ID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		trips[i].Samples = samples
	}

	if trips == nil {
		trips = []domain.Trip{}
	}
	writeJSON(w, http.StatusOK, trips)
}
