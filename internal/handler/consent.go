package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bosstrack/fieldtrack/internal/consent"
)

// registerConsentRequest is the body of POST /api/v1/consent, mirroring the
// consent form presented to drivers.
type registerConsentRequest struct {
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name"`
	CompanyName  string `json:"company_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	VehiclePlate string `json:"vehicle_plate"`
	VehicleType  string `json:"vehicle_type,omitempty"`
}

// RegisterConsent handles POST /api/v1/consent.
func (s *Server) RegisterConsent(w http.ResponseWriter, r *http.Request) {
	var req registerConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "invalid request body")
		return
	}

	profile, err := s.consents.RegisterWithConsent(r.Context(), consent.Registration{
		Email:        req.Email,
		FullName:     req.FullName,
		CompanyName:  req.CompanyName,
		Phone:        req.Phone,
		VehiclePlate: req.VehiclePlate,
		VehicleType:  req.VehicleType,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// GrantConsent handles POST /api/v1/consent/{id}/grant, re-confirming an
// existing driver's consent and restarting its validity window.
func (s *Server) GrantConsent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "id must be a UUID")
		return
	}

	profile, err := s.consents.Grant(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// RevokeConsent handles DELETE /api/v1/consent/{id}.
func (s *Server) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "id must be a UUID")
		return
	}

	profile, err := s.consents.Revoke(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
