package geo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/geo"
)

// sampleAt builds a validated sample at the given coordinates.
func sampleAt(t *testing.T, lat, lon float64) domain.GeoSample {
	t.Helper()
	s, err := domain.NewGeoSample(lat, lon, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestDistanceKm_Empty(t *testing.T) {
	assert.Zero(t, geo.DistanceKm(nil))
	assert.Zero(t, geo.DistanceKm([]domain.GeoSample{}))
}

func TestDistanceKm_SingleSample(t *testing.T) {
	assert.Zero(t, geo.DistanceKm([]domain.GeoSample{sampleAt(t, 52.52, 13.405)}))
}

func TestDistanceKm_OneDegreeLongitudeAtEquator(t *testing.T) {
	// One degree of longitude at the equator is about 111.19 km.
	got := geo.DistanceKm([]domain.GeoSample{
		sampleAt(t, 0, 0),
		sampleAt(t, 0, 1),
	})
	assert.InDelta(t, 111.19, got, 0.5)
}

func TestDistanceKm_SumsConsecutivePairs(t *testing.T) {
	a := sampleAt(t, 0, 0)
	b := sampleAt(t, 0, 1)
	c := sampleAt(t, 0, 2)

	whole := geo.DistanceKm([]domain.GeoSample{a, b, c})
	firstLeg := geo.DistanceKm([]domain.GeoSample{a, b})
	secondLeg := geo.DistanceKm([]domain.GeoSample{b, c})

	assert.InDelta(t, firstLeg+secondLeg, whole, 1e-9)
}

func TestDistanceKm_IdenticalPoints(t *testing.T) {
	p := sampleAt(t, 48.8566, 2.3522)
	assert.Zero(t, geo.DistanceKm([]domain.GeoSample{p, p, p}))
}

func TestDistanceKm_KnownCityPair(t *testing.T) {
	// Berlin to Paris is roughly 878 km great-circle.
	got := geo.DistanceKm([]domain.GeoSample{
		sampleAt(t, 52.5200, 13.4050),
		sampleAt(t, 48.8566, 2.3522),
	})
	assert.InDelta(t, 878, got, 5)
}
