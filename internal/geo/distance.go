// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the total great-circle distance in kilometres across an
// ordered sequence of samples, summing the haversine distance between each
// consecutive pair. Sequences shorter than two samples yield 0. Altitude is
// ignored; coordinates are trusted because domain.NewGeoSample validates
// their ranges at construction.
func DistanceKm(samples []domain.GeoSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(samples); i++ {
		prev, curr := samples[i-1], samples[i]
		total += haversineKm(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
	}
	return total
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
