package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/store"
	"github.com/bosstrack/fieldtrack/testutil"
)

// newTestTx opens a transaction against the test database. The transaction is
// rolled back when the test finishes, giving free per-test isolation.
//
// Requires TEST_DATABASE_URL to be set; migrations are applied by TestMain.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		// Rollback discards all changes made during the test.
		_ = tx.Rollback(context.Background())
	})

	return tx
}

// createDriver inserts a consented profile and returns its ID, satisfying
// the trips.owner_id foreign key.
func createDriver(t *testing.T, tx pgx.Tx) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	profile, err := store.NewProfileRepo(tx).Create(context.Background(), domain.Profile{
		FullName:         "Omar Haddad",
		VehiclePlate:     "D-55231",
		ConsentGiven:     true,
		ConsentTimestamp: &now,
	})
	require.NoError(t, err, "create driver profile")
	return profile.ID
}

// sampleAt builds a valid sample at the given coordinates and instant.
func sampleAt(t *testing.T, lat, lon float64, ts time.Time) domain.GeoSample {
	t.Helper()
	s, err := domain.NewGeoSample(lat, lon, ts)
	require.NoError(t, err)
	return s
}

func TestTripStore_CreateTrip(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	got, err := s.CreateTrip(ctx, ownerID, start, "B-TR 1234")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, ownerID, got.OwnerID)
	assert.True(t, got.StartTime.Equal(start), "StartTime mismatch")
	assert.Nil(t, got.EndTime, "a fresh trip has no end time")
	assert.Equal(t, "B-TR 1234", got.VehicleRef)
	assert.Equal(t, domain.TripActive, got.Status)
	assert.Nil(t, got.DistanceKm)
	assert.Nil(t, got.DurationSeconds)
}

func TestTripStore_CreateTrip_UnknownOwner(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	_, err := s.CreateTrip(ctx, uuid.New(), time.Now().UTC(), "")

	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestTripStore_UpdateTrip_Finalize(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	created, err := s.CreateTrip(ctx, ownerID, start, "")
	require.NoError(t, err)

	end := start.Add(5 * time.Minute)

	updated, err := s.UpdateTrip(ctx, created.ID, domain.TripUpdate{
		EndTime:         end,
		Status:          domain.TripCompleted,
		DistanceKm:      3.7,
		DurationSeconds: 300,
	})

	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, domain.TripCompleted, updated.Status)
	require.NotNil(t, updated.EndTime)
	assert.True(t, updated.EndTime.Equal(end))
	require.NotNil(t, updated.DistanceKm)
	assert.InDelta(t, 3.7, *updated.DistanceKm, 1e-9)
	require.NotNil(t, updated.DurationSeconds)
	assert.Equal(t, int64(300), *updated.DurationSeconds)
}

func TestTripStore_UpdateTrip_NotFound(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	end := time.Now().UTC()
	_, err := s.UpdateTrip(ctx, uuid.New(), domain.TripUpdate{
		EndTime: end,
		Status:  domain.TripCancelled,
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripStore_AppendLocations_RoundTrip(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	trip, err := s.CreateTrip(ctx, ownerID, start, "")
	require.NoError(t, err)

	samples := []domain.GeoSample{
		sampleAt(t, 25.276987, 55.296249, start),
		sampleAt(t, 25.277100, 55.296400, start.Add(time.Second)),
		sampleAt(t, 25.277250, 55.296560, start.Add(2*time.Second)),
	}

	require.NoError(t, s.AppendLocations(ctx, trip.ID, samples))

	got, err := s.GetTripLocations(ctx, trip.ID)

	require.NoError(t, err)
	require.Len(t, got, 3)
	// Returned oldest first regardless of insert order.
	for i := range got {
		assert.True(t, got[i].Timestamp.Equal(samples[i].Timestamp), "sample %d timestamp", i)
		assert.InDelta(t, samples[i].Latitude, got[i].Latitude, 1e-9)
		assert.InDelta(t, samples[i].Longitude, got[i].Longitude, 1e-9)
	}
}

func TestTripStore_AppendLocations_Redelivery(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	trip, err := s.CreateTrip(ctx, ownerID, start, "")
	require.NoError(t, err)

	samples := []domain.GeoSample{
		sampleAt(t, 25.276987, 55.296249, start),
		sampleAt(t, 25.277100, 55.296400, start.Add(time.Second)),
	}

	// A flush whose success ack was lost gets retried with the same batch.
	require.NoError(t, s.AppendLocations(ctx, trip.ID, samples))
	require.NoError(t, s.AppendLocations(ctx, trip.ID, samples))

	got, err := s.GetTripLocations(ctx, trip.ID)

	require.NoError(t, err)
	assert.Len(t, got, 2, "re-delivered batch must not duplicate rows")
}

func TestTripStore_AppendLocations_UnknownTrip(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	samples := []domain.GeoSample{sampleAt(t, 0, 0, time.Now().UTC())}

	err := s.AppendLocations(ctx, uuid.New(), samples)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripStore_AppendLocations_EmptyBatch(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	// Empty batches never touch the database, so even a bogus trip ID is fine.
	assert.NoError(t, s.AppendLocations(ctx, uuid.New(), nil))
}

func TestTripStore_GetTripsForOwner(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	otherID := createDriver(t, tx)

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	first, err := s.CreateTrip(ctx, ownerID, start, "")
	require.NoError(t, err)
	second, err := s.CreateTrip(ctx, ownerID, start.Add(time.Hour), "")
	require.NoError(t, err)
	_, err = s.CreateTrip(ctx, otherID, start, "")
	require.NoError(t, err)

	trips, err := s.GetTripsForOwner(ctx, ownerID, 50)

	require.NoError(t, err)
	require.Len(t, trips, 2, "other drivers' trips must not leak in")
	// Most recent first.
	assert.Equal(t, second.ID, trips[0].ID)
	assert.Equal(t, first.ID, trips[1].ID)
}

func TestTripStore_GetTripsForOwner_Limit(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()
	s := store.NewTripStore(tx)

	ownerID := createDriver(t, tx)
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.CreateTrip(ctx, ownerID, start.Add(time.Duration(i)*time.Hour), "")
		require.NoError(t, err)
	}

	trips, err := s.GetTripsForOwner(ctx, ownerID, 2)

	require.NoError(t, err)
	assert.Len(t, trips, 2)
}
