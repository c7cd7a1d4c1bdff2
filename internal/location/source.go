// Package location defines the contract the trip lifecycle engine consumes
// for GPS sampling, and a deterministic simulated implementation used when
// no real provider is attached.
package location

import (
	"context"
	"errors"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// AuthorizationState mirrors the platform location-permission states.
type AuthorizationState string

const (
	AuthUndetermined AuthorizationState = "undetermined"
	AuthDenied       AuthorizationState = "denied"
	AuthRestricted   AuthorizationState = "restricted"
	AuthWhenInUse    AuthorizationState = "when_in_use"
	AuthAlways       AuthorizationState = "always"
)

// ErrPermissionDenied is returned by StartStreaming when the current
// authorization does not allow location access.
var ErrPermissionDenied = errors.New("location permission denied")

// ErrUnavailable is returned when the platform location capability is absent
// or the provider cannot deliver fixes at all.
var ErrUnavailable = errors.New("location service unavailable")

// ErrTimeout is returned by CurrentFix when no fix arrives in time.
var ErrTimeout = errors.New("location fix timed out")

// StreamInfo describes an accepted streaming request.
type StreamInfo struct {
	// FrequencyHint is the provider's nominal delivery rate, e.g. "1Hz".
	FrequencyHint string
}

// Handlers is the push-event subscriber set for a source. Any handler may be
// nil. A source delivers events sequentially to one subscriber set at a time.
type Handlers struct {
	// OnSample is invoked for every fix while streaming is active.
	// It must not block; the engine enqueues and returns.
	OnSample func(domain.GeoSample)

	// OnError is invoked for recoverable streaming errors (transient GPS
	// loss, degraded accuracy). Delivery continues afterwards.
	OnError func(err error)

	// OnAuthorizationChanged is invoked when the platform permission state
	// changes while subscribed.
	OnAuthorizationChanged func(state AuthorizationState)
}

// Source is the location-sampling provider contract.
//
// At most one subscriber set is active per engine instance: Subscribe
// replaces any previous set, and UnsubscribeAll is idempotent and safe to
// call when never subscribed.
type Source interface {
	// StartStreaming begins async delivery of samples at the provider's
	// nominal rate. Fails with ErrPermissionDenied when authorization is
	// insufficient or ErrUnavailable when the capability is absent.
	StartStreaming(ctx context.Context) (StreamInfo, error)

	// StopStreaming halts delivery. Idempotent: stopping when not streaming
	// returns stopped=false and no error.
	StopStreaming(ctx context.Context) (stopped bool, err error)

	// CurrentFix returns a single fix without starting a stream.
	// Fails with ErrTimeout or ErrUnavailable.
	CurrentFix(ctx context.Context) (domain.GeoSample, error)

	// Authorization reports the current permission state.
	Authorization(ctx context.Context) AuthorizationState

	// Subscribe installs the handler set that receives push events.
	Subscribe(h Handlers)

	// UnsubscribeAll removes any installed handlers.
	UnsubscribeAll()
}
