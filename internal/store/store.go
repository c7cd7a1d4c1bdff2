// Package store contains all database access logic for the field tracker.
// Each aggregate has its own file with an interface and a Postgres
// implementation. No business logic lives here, only SQL and type mapping.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TripStore defines the persistence operations the trip lifecycle engine
// consumes. The engine depends on this interface, not the concrete Postgres
// implementation, which allows it to be unit-tested with a mock.
type TripStore interface {
	// CreateTrip inserts an active trip placeholder for the given owner and
	// returns the persisted record. Returns domain.ErrUnauthenticated if the
	// owner id does not resolve to a known profile.
	CreateTrip(ctx context.Context, ownerID uuid.UUID, startTime time.Time, vehicleRef string) (domain.Trip, error)

	// UpdateTrip writes the finalize fields of a trip and returns the updated
	// record. Returns domain.ErrNotFound if no trip with that id exists.
	UpdateTrip(ctx context.Context, id uuid.UUID, upd domain.TripUpdate) (domain.Trip, error)

	// AppendLocations persists a batch of samples for a trip. The call is
	// retry-tolerant: re-sending a batch that already (partially) landed must
	// not duplicate rows. Returns domain.ErrNotFound for an unknown trip id
	// and domain.ErrTransientIO for failures worth retrying.
	AppendLocations(ctx context.Context, tripID uuid.UUID, samples []domain.GeoSample) error

	// GetTripsForOwner returns up to limit trips for the owner, most recent
	// first, without their samples.
	GetTripsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Trip, error)

	// GetTripLocations returns all persisted samples for a trip in timestamp
	// order.
	GetTripLocations(ctx context.Context, tripID uuid.UUID) ([]domain.GeoSample, error)
}

// ProfileRepo defines the persistence operations for driver profiles and
// their consent state.
type ProfileRepo interface {
	// Create inserts a new profile and returns the persisted record.
	Create(ctx context.Context, p domain.Profile) (domain.Profile, error)

	// GetByID retrieves a profile by its UUID primary key.
	// Returns domain.ErrNotFound if no profile with that id exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error)

	// UpdateConsent records a consent grant or revocation and returns the
	// updated profile. Returns domain.ErrNotFound for an unknown id.
	UpdateConsent(ctx context.Context, id uuid.UUID, given bool, at time.Time) (domain.Profile, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}
