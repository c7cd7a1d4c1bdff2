package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// pgProfileRepo is the Postgres implementation of ProfileRepo.
type pgProfileRepo struct {
	db db
}

// NewProfileRepo constructs a ProfileRepo backed by the provided db connection.
func NewProfileRepo(db db) ProfileRepo {
	return &pgProfileRepo{db: db}
}

// Create inserts a new profile row and returns the full persisted record.
func (r *pgProfileRepo) Create(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const q = `
		INSERT INTO profiles
			(email, full_name, company_name, phone, vehicle_plate, vehicle_type, consent_given, consent_timestamp)
		VALUES
			(@email, @full_name, @company_name, @phone, @vehicle_plate, @vehicle_type, @consent_given, @consent_timestamp)
		RETURNING id, email, full_name, company_name, phone, vehicle_plate, vehicle_type,
		          consent_given, consent_timestamp, created_at, updated_at`

	args := pgx.NamedArgs{
		"email":             p.Email,
		"full_name":         p.FullName,
		"company_name":      p.CompanyName,
		"phone":             p.Phone,
		"vehicle_plate":     p.VehiclePlate,
		"vehicle_type":      p.VehicleType,
		"consent_given":     p.ConsentGiven,
		"consent_timestamp": p.ConsentTimestamp, // nil becomes NULL
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("store.ProfileRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a profile by primary key.
func (r *pgProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	const q = `
		SELECT id, email, full_name, company_name, phone, vehicle_plate, vehicle_type,
		       consent_given, consent_timestamp, created_at, updated_at
		FROM profiles
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("store.ProfileRepo.GetByID: %w", err)
	}
	return result, nil
}

// UpdateConsent records a grant or revocation and returns the updated profile.
func (r *pgProfileRepo) UpdateConsent(ctx context.Context, id uuid.UUID, given bool, at time.Time) (domain.Profile, error) {
	const q = `
		UPDATE profiles
		SET consent_given     = @consent_given,
		    consent_timestamp = @consent_timestamp,
		    updated_at        = now()
		WHERE id = @id
		RETURNING id, email, full_name, company_name, phone, vehicle_plate, vehicle_type,
		          consent_given, consent_timestamp, created_at, updated_at`

	args := pgx.NamedArgs{
		"id":                id,
		"consent_given":     given,
		"consent_timestamp": at,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("store.ProfileRepo.UpdateConsent: %w", err)
	}
	return result, nil
}

// scanProfile maps a single database row into a domain.Profile.
func scanProfile(s scanner) (domain.Profile, error) {
	var (
		p         domain.Profile
		id        pgtype.UUID
		consentAt pgtype.Timestamptz
	)

	err := s.Scan(&id, &p.Email, &p.FullName, &p.CompanyName, &p.Phone, &p.VehiclePlate,
		&p.VehicleType, &p.ConsentGiven, &consentAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	if consentAt.Valid {
		at := consentAt.Time
		p.ConsentTimestamp = &at
	}

	return p, nil
}
