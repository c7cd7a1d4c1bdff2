package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a persisted trip record.
type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Trip represents one tracked driving session from start to stop.
// While Status is TripActive, EndTime, DistanceKm, and DurationSeconds are
// nil and Samples is append-only; all three are set exactly once when the
// trip is finalized. At most one trip is active per engine instance.
type Trip struct {
	ID              uuid.UUID   `json:"id"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"` // nil while the trip is in progress
	VehicleRef      string      `json:"vehicle_ref,omitempty"`
	Status          TripStatus  `json:"status"`
	DistanceKm      *float64    `json:"distance_km,omitempty"`
	DurationSeconds *int64      `json:"duration_seconds,omitempty"`
	Samples         []GeoSample `json:"samples,omitempty"`
}

// TripUpdate carries the fields written when a trip leaves the active state.
// The store accepts only this shape for updates, so a finalized trip can
// never be partially rewritten field by field.
type TripUpdate struct {
	EndTime         time.Time
	Status          TripStatus
	DistanceKm      float64
	DurationSeconds int64
}

// Finalized reports whether the trip has left the active state with its
// summary statistics populated.
func (t Trip) Finalized() bool {
	return t.Status == TripCompleted && t.EndTime != nil &&
		t.DistanceKm != nil && t.DurationSeconds != nil
}
