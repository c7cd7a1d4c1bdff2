// Package domain contains the core data types for the field tracker.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (store, engine, handler).
package domain

import (
	"fmt"
	"time"
)

// GeoSample is a single timestamped GPS fix with optional kinematic metadata.
// Construct it with NewGeoSample so coordinate ranges are validated once, at
// the boundary; downstream code (distance computation, persistence) trusts
// the values. A GeoSample is never mutated after construction.
type GeoSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"`  // meters
	Accuracy  *float64  `json:"accuracy,omitempty"`  // horizontal error radius, meters
	Bearing   *float64  `json:"bearing,omitempty"`   // degrees 0-360
	Speed     *float64  `json:"speed,omitempty"`     // meters/second, non-negative
	Timestamp time.Time `json:"timestamp"`
}

// NewGeoSample validates coordinates and builds an immutable sample.
// Returns ErrValidation when latitude is outside [-90,90], longitude is
// outside [-180,180], speed is negative, or the timestamp is zero.
func NewGeoSample(lat, lon float64, ts time.Time) (GeoSample, error) {
	if lat < -90 || lat > 90 {
		return GeoSample{}, fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrValidation, lat)
	}
	if lon < -180 || lon > 180 {
		return GeoSample{}, fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrValidation, lon)
	}
	if ts.IsZero() {
		return GeoSample{}, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return GeoSample{Latitude: lat, Longitude: lon, Timestamp: ts}, nil
}

// WithKinematics returns a copy of the sample with the optional metadata set.
// Negative speed is rejected with ErrValidation; any field may be nil.
func (g GeoSample) WithKinematics(altitude, accuracy, bearing, speed *float64) (GeoSample, error) {
	if speed != nil && *speed < 0 {
		return GeoSample{}, fmt.Errorf("%w: speed must be non-negative", ErrValidation)
	}
	g.Altitude = altitude
	g.Accuracy = accuracy
	g.Bearing = bearing
	g.Speed = speed
	return g, nil
}
