package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/store"
)

// Service persists consent decisions against driver profiles and resolves
// the current ConsentRecord for a subject. The pure 24-hour rule lives in
// IsValid; everything here is orchestration around the profile repo.
type Service struct {
	profiles store.ProfileRepo
	log      *slog.Logger
	now      func() time.Time
}

// NewService constructs a consent Service backed by the provided repo.
func NewService(profiles store.ProfileRepo, log *slog.Logger) *Service {
	return &Service{profiles: profiles, log: log, now: time.Now}
}

// Registration is the consent-form input for a new driver.
type Registration struct {
	Email        string
	FullName     string
	CompanyName  string
	Phone        string
	VehiclePlate string
	VehicleType  string
}

// RegisterWithConsent creates a profile with consent granted at the current
// instant. Returns domain.ErrValidation when the driver name or vehicle
// plate is missing, mirroring the required fields of the consent form.
func (s *Service) RegisterWithConsent(ctx context.Context, reg Registration) (domain.Profile, error) {
	if strings.TrimSpace(reg.FullName) == "" {
		return domain.Profile{}, fmt.Errorf("%w: driver name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(reg.VehiclePlate) == "" {
		return domain.Profile{}, fmt.Errorf("%w: vehicle plate is required", domain.ErrValidation)
	}

	grantedAt := s.now().UTC()
	profile := domain.Profile{
		Email:            reg.Email,
		FullName:         reg.FullName,
		CompanyName:      reg.CompanyName,
		Phone:            reg.Phone,
		VehiclePlate:     reg.VehiclePlate,
		VehicleType:      reg.VehicleType,
		ConsentGiven:     true,
		ConsentTimestamp: &grantedAt,
	}

	created, err := s.profiles.Create(ctx, profile)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("consent.Service.RegisterWithConsent: %w", err)
	}

	s.log.Info("driver registered with consent", "profile_id", created.ID, "granted_at", grantedAt)
	return created, nil
}

// Grant re-confirms consent for an existing profile, restarting the 24-hour
// validity window. Returns domain.ErrNotFound for an unknown profile.
func (s *Service) Grant(ctx context.Context, subjectID uuid.UUID) (domain.Profile, error) {
	updated, err := s.profiles.UpdateConsent(ctx, subjectID, true, s.now().UTC())
	if err != nil {
		return domain.Profile{}, fmt.Errorf("consent.Service.Grant: %w", err)
	}
	return updated, nil
}

// Revoke withdraws consent immediately. The recorded timestamp marks when
// the revocation happened, not a new grant.
func (s *Service) Revoke(ctx context.Context, subjectID uuid.UUID) (domain.Profile, error) {
	updated, err := s.profiles.UpdateConsent(ctx, subjectID, false, s.now().UTC())
	if err != nil {
		return domain.Profile{}, fmt.Errorf("consent.Service.Revoke: %w", err)
	}
	s.log.Info("consent revoked", "profile_id", subjectID)
	return updated, nil
}

// RecordFor resolves the current ConsentRecord for a subject.
// Returns domain.ErrNotConsented when the profile has never granted consent
// or has revoked it; validity against the 24-hour window is not checked
// here; that is IsValid's job, evaluated at the moment of use.
func (s *Service) RecordFor(ctx context.Context, subjectID uuid.UUID) (domain.ConsentRecord, error) {
	profile, err := s.profiles.GetByID(ctx, subjectID)
	if err != nil {
		return domain.ConsentRecord{}, fmt.Errorf("consent.Service.RecordFor: %w", err)
	}
	if !profile.ConsentGiven || profile.ConsentTimestamp == nil {
		return domain.ConsentRecord{}, fmt.Errorf("consent.Service.RecordFor: %w", domain.ErrNotConsented)
	}
	return domain.ConsentRecord{SubjectID: profile.ID, GrantedAt: *profile.ConsentTimestamp}, nil
}
