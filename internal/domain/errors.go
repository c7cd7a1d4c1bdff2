package domain

import "errors"

// ErrNotFound is returned by store functions when the requested record does
// not exist in the database. Handlers map this to HTTP 404. The engine treats
// it as fatal for the trip it was flushing and abandons further retries.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. coordinate out of range, missing required field).
// Handlers map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnauthenticated is returned by store functions when the owner id does
// not resolve to a known profile. Handlers map this to HTTP 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotConsented is returned by the engine when a trip start is attempted
// without a currently valid consent. User-correctable; never retried.
var ErrNotConsented = errors.New("valid consent required")

// ErrAlreadyTracking is returned by the engine when a trip start is attempted
// while another trip is active. No new trip is created, so a double tap is
// harmless. Handlers map this to HTTP 409.
var ErrAlreadyTracking = errors.New("a trip is already being tracked")

// ErrTrackingStartFailed wraps a location source failure during trip start.
// The underlying reason (permission denied, GPS unavailable) is preserved in
// the chain so callers can decide whether to offer a fallback.
var ErrTrackingStartFailed = errors.New("tracking start failed")

// ErrTransientIO marks a store failure that is expected to succeed on retry.
// The engine recovers it locally (buffer retained, retried next flush tick)
// and never surfaces it to the caller of start or stop.
var ErrTransientIO = errors.New("transient io error")
