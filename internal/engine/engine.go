// Package engine owns the trip lifecycle: the active-trip state machine,
// the location subscription, the upload buffer, and the periodic flush to
// the trip store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/bosstrack/fieldtrack/internal/consent"
	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/geo"
	"github.com/bosstrack/fieldtrack/internal/location"
	"github.com/bosstrack/fieldtrack/internal/metrics"
	"github.com/bosstrack/fieldtrack/internal/store"
)

// state is the engine's lifecycle position. Exactly one trip may be active
// per engine instance; starting is a short-lived guard that makes a
// concurrent double start fail with ErrAlreadyTracking instead of creating
// two trips.
type state int

const (
	stateIdle state = iota
	stateStarting
	stateActive
	stateFinalizing
)

// Publisher broadcasts accepted samples to live subscribers. Best-effort:
// the engine logs publish failures and moves on, because every sample is
// still headed for durable storage through the flush path.
type Publisher interface {
	PublishSample(trip domain.Trip, sample domain.GeoSample) error
}

// Options tunes the engine. Zero values select the production defaults.
type Options struct {
	// FlushInterval is the period of the buffered-sample upload timer.
	// Defaults to 30 seconds.
	FlushInterval time.Duration

	// BufferCap bounds both the upload buffer and the in-memory sample view
	// of the active trip; the oldest entry is trimmed at the cap. Trimming
	// never touches data already flushed to the store. Defaults to 1000.
	BufferCap int

	// StepTimeout bounds each individual shutdown sub-step and each flush
	// call, so a hung store or source cannot stall stop indefinitely.
	// Defaults to 5 seconds.
	StepTimeout time.Duration

	// FinalFlushBackoff is the delay between retries of the last flush
	// during stop. Defaults to 500ms.
	FinalFlushBackoff time.Duration

	// Publisher, when set, receives every accepted sample.
	Publisher Publisher

	// Metrics, when set, records engine instrumentation.
	Metrics *metrics.Collector

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Engine drives a single driver's trips. Every mutating operation, from
// StartTrip through sample arrival and the flush tick to StopTrip, holds the
// engine mutex over its
// shared state (active trip, upload buffer), so none of them can interleave
// destructively. Network calls are made outside the lock; bookkeeping that
// bridges them (flush snapshots, trim counters) is reconciled under it.
type Engine struct {
	source location.Source
	trips  store.TripStore
	log    *slog.Logger
	pub    Publisher
	m      *metrics.Collector

	flushInterval     time.Duration
	bufferCap         int
	stepTimeout       time.Duration
	finalFlushBackoff time.Duration
	clock             func() time.Time

	mu      sync.Mutex
	state   state
	current *domain.Trip

	buffer         []domain.GeoSample
	flushInFlight  bool
	trimmedInFlush int // buffer entries trimmed while a flush snapshot was out
	flushAbandoned bool

	flushCancel context.CancelFunc
	flushDone   chan struct{}
}

// New constructs an engine over the given source and store.
func New(src location.Source, trips store.TripStore, log *slog.Logger, opts Options) *Engine {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	if opts.BufferCap <= 0 {
		opts.BufferCap = 1000
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 5 * time.Second
	}
	if opts.FinalFlushBackoff <= 0 {
		opts.FinalFlushBackoff = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		source:            src,
		trips:             trips,
		log:               log,
		pub:               opts.Publisher,
		m:                 opts.Metrics,
		flushInterval:     opts.FlushInterval,
		bufferCap:         opts.BufferCap,
		stepTimeout:       opts.StepTimeout,
		finalFlushBackoff: opts.FinalFlushBackoff,
		clock:             opts.Clock,
	}
}

// StartTrip creates an active trip for the consent subject and begins
// streaming samples into it.
//
// Fails with domain.ErrNotConsented when the record is expired, with
// domain.ErrAlreadyTracking when a trip is already active, and with
// domain.ErrTrackingStartFailed (wrapping the source reason) when streaming
// cannot begin, in which case the just-created trip record is rolled back
// to cancelled, best-effort.
func (e *Engine) StartTrip(ctx context.Context, record domain.ConsentRecord, vehicleRef string) (domain.Trip, error) {
	e.mu.Lock()
	if e.state != stateIdle {
		e.mu.Unlock()
		return domain.Trip{}, fmt.Errorf("engine.StartTrip: %w", domain.ErrAlreadyTracking)
	}
	if !consent.IsValid(record, e.clock()) {
		e.mu.Unlock()
		return domain.Trip{}, fmt.Errorf("engine.StartTrip: %w", domain.ErrNotConsented)
	}
	e.state = stateStarting
	e.mu.Unlock()

	fail := func(err error) (domain.Trip, error) {
		e.mu.Lock()
		e.state = stateIdle
		e.mu.Unlock()
		return domain.Trip{}, err
	}

	trip, err := e.trips.CreateTrip(ctx, record.SubjectID, e.clock().UTC(), vehicleRef)
	if err != nil {
		return fail(fmt.Errorf("engine.StartTrip: %w", err))
	}

	info, err := e.source.StartStreaming(ctx)
	if err != nil {
		e.rollbackStart(ctx, trip.ID)
		return fail(fmt.Errorf("engine.StartTrip: %w: %w", domain.ErrTrackingStartFailed, err))
	}

	e.mu.Lock()
	trip.Status = domain.TripActive
	e.current = &trip
	e.buffer = nil
	e.flushAbandoned = false
	e.flushInFlight = false
	e.trimmedInFlush = 0
	flushCtx, cancel := context.WithCancel(context.Background())
	e.flushCancel = cancel
	done := make(chan struct{})
	e.flushDone = done
	e.state = stateActive
	e.mu.Unlock()

	e.source.Subscribe(location.Handlers{
		OnSample:               e.handleSample,
		OnError:                e.handleStreamError,
		OnAuthorizationChanged: e.handleAuthorizationChange,
	})
	go e.flushLoop(flushCtx, done)

	if e.m != nil {
		e.m.TripsStarted.Inc()
		e.m.Tracking.Set(1)
	}
	e.log.Info("trip started",
		"trip_id", trip.ID,
		"owner_id", trip.OwnerID,
		"frequency", info.FrequencyHint,
	)

	return trip, nil
}

// StopTrip finalizes the active trip and returns the completed snapshot.
// Calling it with no active trip is a benign no-op returning nil.
//
// The full shutdown sequence always runs: flush timer stopped, streaming
// stopped and unsubscribed, remaining buffer flushed (best-effort, bounded
// retries), stats computed, finalize persisted. Each sub-step is
// independently time-boxed; a failing step is logged and the sequence
// proceeds rather than hanging.
func (e *Engine) StopTrip(ctx context.Context) (*domain.Trip, error) {
	e.mu.Lock()
	if e.state != stateActive {
		e.mu.Unlock()
		return nil, nil
	}
	e.state = stateFinalizing
	cancelFlush := e.flushCancel
	done := e.flushDone
	e.flushCancel, e.flushDone = nil, nil
	trip := e.current
	e.mu.Unlock()

	// Stop the flush timer and wait out any in-flight tick so the final
	// flush below cannot race it over the buffer.
	cancelFlush()
	<-done

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.stepTimeout)
	if _, err := e.source.StopStreaming(stopCtx); err != nil {
		e.log.Warn("failed to stop location streaming", "trip_id", trip.ID, "error", err)
	}
	cancel()
	e.source.UnsubscribeAll()

	e.finalFlush(ctx, trip.ID)

	endTime := e.clock().UTC()
	durationSeconds := int64(endTime.Sub(trip.StartTime) / time.Second)
	distanceKm := geo.DistanceKm(trip.Samples)

	updCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.stepTimeout)
	_, err := e.trips.UpdateTrip(updCtx, trip.ID, domain.TripUpdate{
		EndTime:         endTime,
		Status:          domain.TripCompleted,
		DistanceKm:      distanceKm,
		DurationSeconds: durationSeconds,
	})
	cancel()
	if err != nil {
		e.log.Error("failed to persist trip finalization", "trip_id", trip.ID, "error", err)
	}

	e.mu.Lock()
	trip.EndTime = &endTime
	trip.Status = domain.TripCompleted
	trip.DistanceKm = &distanceKm
	trip.DurationSeconds = &durationSeconds
	snapshot := *trip
	snapshot.Samples = append([]domain.GeoSample(nil), trip.Samples...)
	e.current = nil
	e.buffer = nil
	e.state = stateIdle
	e.mu.Unlock()

	if e.m != nil {
		e.m.TripsCompleted.Inc()
		e.m.Tracking.Set(0)
		e.m.BufferDepth.Set(0)
	}
	e.log.Info("trip completed",
		"trip_id", snapshot.ID,
		"duration_s", durationSeconds,
		"distance_km", distanceKm,
		"samples", len(snapshot.Samples),
	)

	return &snapshot, nil
}

// GetCurrentTrip returns a snapshot of the active trip, or nil when idle.
func (e *Engine) GetCurrentTrip() *domain.Trip {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	snapshot := *e.current
	snapshot.Samples = append([]domain.GeoSample(nil), e.current.Samples...)
	return &snapshot
}

// IsTracking reports whether a trip is currently active.
func (e *Engine) IsTracking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateActive
}

// handleSample appends an arriving fix to the active trip and the upload
// buffer, in arrival order. Enqueue only: persistence happens on the flush
// timer so the source's callback path never blocks on IO.
func (e *Engine) handleSample(sample domain.GeoSample) {
	e.mu.Lock()
	if e.state != stateActive || e.current == nil {
		e.mu.Unlock()
		return
	}

	e.current.Samples = append(e.current.Samples, sample)
	if len(e.current.Samples) > e.bufferCap {
		e.current.Samples = e.current.Samples[1:]
	}

	e.buffer = append(e.buffer, sample)
	trimmed := false
	if len(e.buffer) > e.bufferCap {
		e.buffer = e.buffer[1:]
		trimmed = true
		if e.flushInFlight {
			e.trimmedInFlush++
		}
	}

	depth := len(e.buffer)
	tripRef := domain.Trip{ID: e.current.ID, OwnerID: e.current.OwnerID}
	e.mu.Unlock()

	if e.m != nil {
		e.m.SamplesReceived.Inc()
		e.m.BufferDepth.Set(float64(depth))
		if trimmed {
			e.m.SamplesTrimmed.Inc()
		}
	}
	if trimmed {
		e.log.Warn("upload buffer at cap, oldest sample trimmed", "trip_id", tripRef.ID, "cap", e.bufferCap)
	}

	if e.pub != nil {
		if err := e.pub.PublishSample(tripRef, sample); err != nil {
			e.log.Warn("live position publish failed", "trip_id", tripRef.ID, "error", err)
		}
	}
}

// handleStreamError logs a recoverable streaming error. Transient GPS loss
// is expected during a trip and never stops tracking on its own.
func (e *Engine) handleStreamError(err error) {
	e.log.Warn("location stream error", "error", err)
}

// handleAuthorizationChange logs permission changes observed mid-trip.
func (e *Engine) handleAuthorizationChange(st location.AuthorizationState) {
	e.log.Info("location authorization changed", "state", st)
}

// flushLoop runs the periodic buffer upload until its context is cancelled.
func (e *Engine) flushLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(e.flushInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
			e.flushOnce(fctx)
			cancel()
		}
	}
}

// flushOnce uploads one snapshot of the buffer. On success the flushed
// entries are removed; on failure the buffer is left intact for the next
// attempt (at-least-once delivery; the store dedupes by trip and
// timestamp). A NotFound from the store is fatal for this trip's flushes:
// further attempts are abandoned so an unknown id cannot retry forever.
func (e *Engine) flushOnce(ctx context.Context) error {
	e.mu.Lock()
	if e.current == nil || e.flushAbandoned || len(e.buffer) == 0 {
		e.mu.Unlock()
		return nil
	}
	tripID := e.current.ID
	snapshot := append([]domain.GeoSample(nil), e.buffer...)
	e.flushInFlight = true
	e.trimmedInFlush = 0
	e.mu.Unlock()

	start := time.Now()
	err := e.trips.AppendLocations(ctx, tripID, snapshot)

	e.mu.Lock()
	e.flushInFlight = false
	switch {
	case err == nil:
		// Entries trimmed while the snapshot was out are already gone from
		// the front of the buffer; drop only what is still present.
		drop := len(snapshot) - e.trimmedInFlush
		if drop < 0 {
			drop = 0
		}
		if drop > len(e.buffer) {
			drop = len(e.buffer)
		}
		e.buffer = e.buffer[drop:]
	case errors.Is(err, domain.ErrNotFound):
		e.flushAbandoned = true
		e.buffer = nil
	}
	depth := len(e.buffer)
	e.mu.Unlock()

	if e.m != nil {
		e.m.FlushDuration.Observe(time.Since(start).Seconds())
		e.m.BufferDepth.Set(float64(depth))
	}

	switch {
	case err == nil:
		if e.m != nil {
			e.m.SamplesFlushed.Add(float64(len(snapshot)))
		}
		e.log.Debug("flushed samples", "trip_id", tripID, "count", len(snapshot))
	case errors.Is(err, domain.ErrNotFound):
		if e.m != nil {
			e.m.FlushFailures.Inc()
		}
		e.log.Error("trip unknown to store, abandoning flushes", "trip_id", tripID, "error", err)
	default:
		if e.m != nil {
			e.m.FlushFailures.Inc()
		}
		e.log.Warn("flush failed, buffer retained for retry", "trip_id", tripID, "buffered", depth, "error", err)
	}

	return err
}

// finalFlush drains the buffer during stop with a few bounded retries.
// Best-effort: a persistent failure is logged and finalization proceeds.
func (e *Engine) finalFlush(ctx context.Context, tripID uuid.UUID) {
	backoff := retry.WithMaxRetries(2, retry.NewConstant(e.finalFlushBackoff))
	err := retry.Do(context.WithoutCancel(ctx), backoff, func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
		if err := e.flushOnce(fctx); err != nil {
			if errors.Is(err, domain.ErrTransientIO) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		e.log.Warn("final flush incomplete, buffered samples lost", "trip_id", tripID, "error", err)
	}
}

// rollbackStart marks a just-created trip cancelled after a streaming start
// failure, so no half-started trip is left active in the store. Best-effort:
// a rollback failure is logged, not re-raised.
func (e *Engine) rollbackStart(ctx context.Context, tripID uuid.UUID) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.stepTimeout)
	defer cancel()

	_, err := e.trips.UpdateTrip(rctx, tripID, domain.TripUpdate{
		EndTime: e.clock().UTC(),
		Status:  domain.TripCancelled,
	})
	if err != nil {
		e.log.Error("failed to cancel trip after start failure", "trip_id", tripID, "error", err)
		return
	}
	if e.m != nil {
		e.m.TripsCancelled.Inc()
	}
}
