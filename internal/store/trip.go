package store

import (
	"errors"
	"fmt"
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// pgTripStore is the Postgres implementation of TripStore.
type pgTripStore struct {
	db db
}

// NewTripStore constructs a TripStore backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripStore(db db) TripStore {
	return &pgTripStore{db: db}
}

// CreateTrip inserts an active trip row owned by the given profile.
// A missing owner surfaces as a foreign key violation, which is mapped to
// domain.ErrUnauthenticated because it means the caller's identity is stale.
func (s *pgTripStore) CreateTrip(ctx context.Context, ownerID uuid.UUID, startTime time.Time, vehicleRef string) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (owner_id, start_time, vehicle_ref, status)
		VALUES (@owner_id, @start_time, @vehicle_ref, @status)
		RETURNING id, owner_id, start_time, end_time, vehicle_ref, status, distance_km, duration_seconds`

	args := pgx.NamedArgs{
		"owner_id":    ownerID,
		"start_time":  startTime,
		"vehicle_ref": vehicleRef,
		"status":      domain.TripActive,
	}

	row := s.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Trip{}, fmt.Errorf("store.TripStore.CreateTrip: %w", domain.ErrUnauthenticated)
		}
		return domain.Trip{}, fmt.Errorf("store.TripStore.CreateTrip: %w", err)
	}
	return result, nil
}

// UpdateTrip writes the finalize fields and returns the updated record.
func (s *pgTripStore) UpdateTrip(ctx context.Context, id uuid.UUID, upd domain.TripUpdate) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET end_time         = @end_time,
		    status           = @status,
		    distance_km      = @distance_km,
		    duration_seconds = @duration_seconds
		WHERE id = @id
		RETURNING id, owner_id, start_time, end_time, vehicle_ref, status, distance_km, duration_seconds`

	args := pgx.NamedArgs{
		"id":               id,
		"end_time":         upd.EndTime,
		"status":           upd.Status,
		"distance_km":      upd.DistanceKm,
		"duration_seconds": upd.DurationSeconds,
	}

	row := s.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("store.TripStore.UpdateTrip: %w", err)
	}
	return result, nil
}

// AppendLocations batch-inserts samples keyed on (trip_id, recorded_at).
// ON CONFLICT DO NOTHING makes re-delivery of an already-landed batch a
// no-op, which is what gives the engine its at-least-once flush semantics.
func (s *pgTripStore) AppendLocations(ctx context.Context, tripID uuid.UUID, samples []domain.GeoSample) error {
	if len(samples) == 0 {
		return nil
	}

	const q = `
		INSERT INTO trip_locations
			(trip_id, latitude, longitude, altitude, accuracy, bearing, speed, recorded_at)
		VALUES
			(@trip_id, @latitude, @longitude, @altitude, @accuracy, @bearing, @speed, @recorded_at)
		ON CONFLICT (trip_id, recorded_at) DO NOTHING`

	batch := &pgx.Batch{}
	for _, loc := range samples {
		batch.Queue(q, pgx.NamedArgs{
			"trip_id":     tripID,
			"latitude":    loc.Latitude,
			"longitude":   loc.Longitude,
			"altitude":    loc.Altitude,
			"accuracy":    loc.Accuracy,
			"bearing":     loc.Bearing,
			"speed":       loc.Speed,
			"recorded_at": loc.Timestamp,
		})
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("store.TripStore.AppendLocations: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("store.TripStore.AppendLocations: %w: %w", domain.ErrTransientIO, err)
		}
	}
	return nil
}

// GetTripsForOwner returns up to limit trips, most recent first.
// Samples are not hydrated here; callers that need them use GetTripLocations.
func (s *pgTripStore) GetTripsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Trip, error) {
	const q = `
		SELECT id, owner_id, start_time, end_time, vehicle_ref, status, distance_km, duration_seconds
		FROM trips
		WHERE owner_id = @owner_id
		ORDER BY start_time DESC
		LIMIT @limit`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("store.TripStore.GetTripsForOwner: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("store.TripStore.GetTripsForOwner: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.TripStore.GetTripsForOwner: rows: %w", err)
	}

	return trips, nil
}

// GetTripLocations returns the persisted samples of a trip in recording order.
func (s *pgTripStore) GetTripLocations(ctx context.Context, tripID uuid.UUID) ([]domain.GeoSample, error) {
	const q = `
		SELECT latitude, longitude, altitude, accuracy, bearing, speed, recorded_at
		FROM trip_locations
		WHERE trip_id = @trip_id
		ORDER BY recorded_at ASC`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("store.TripStore.GetTripLocations: %w", err)
	}
	defer rows.Close()

	var samples []domain.GeoSample
	for rows.Next() {
		var g domain.GeoSample
		err := rows.Scan(&g.Latitude, &g.Longitude, &g.Altitude, &g.Accuracy, &g.Bearing, &g.Speed, &g.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("store.TripStore.GetTripLocations: scan: %w", err)
		}
		samples = append(samples, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.TripStore.GetTripLocations: rows: %w", err)
	}

	return samples, nil
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID and nullable finalize-field conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t       domain.Trip
		id      pgtype.UUID
		ownerID pgtype.UUID
		endTime pgtype.Timestamptz
		distKm  pgtype.Float8
		durSec  pgtype.Int8
	)

	err := s.Scan(&id, &ownerID, &t.StartTime, &endTime, &t.VehicleRef, &t.Status, &distKm, &durSec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OwnerID = uuid.UUID(ownerID.Bytes)
	if endTime.Valid {
		et := endTime.Time
		t.EndTime = &et
	}
	if distKm.Valid {
		d := distKm.Float64
		t.DistanceKm = &d
	}
	if durSec.Valid {
		n := durSec.Int64
		t.DurationSeconds = &n
	}

	return t, nil
}

// isForeignKeyViolation reports whether err is Postgres error 23503.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
