package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsentTTL is how long a granted consent authorizes location collection.
// Drivers must re-confirm once a day.
const ConsentTTL = 24 * time.Hour

// ConsentRecord is a time-bounded authorization to collect location data for
// one driver. Validity is derived from GrantedAt on every check rather than
// stored, so expiry needs no background job.
type ConsentRecord struct {
	SubjectID uuid.UUID `json:"subject_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// Profile is a driver account as stored in the profiles table.
// Consent fields mirror the consent form: ConsentGiven flips to false on
// revoke, and ConsentTimestamp records the most recent grant.
type Profile struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	CompanyName      string     `json:"company_name,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	VehiclePlate     string     `json:"vehicle_plate,omitempty"`
	VehicleType      string     `json:"vehicle_type,omitempty"`
	ConsentGiven     bool       `json:"consent_given"`
	ConsentTimestamp *time.Time `json:"consent_timestamp,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
