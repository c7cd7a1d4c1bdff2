package location

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// SimulatorConfig controls the synthetic fix generator.
type SimulatorConfig struct {
	// BaseLat/BaseLon anchor the random walk. Defaults to central Dubai,
	// matching the pilot deployment area.
	BaseLat float64
	BaseLon float64

	// Interval is the delivery period. Defaults to one second (1Hz).
	Interval time.Duration

	// Seed makes the walk reproducible. Zero means seed from the interval
	// start time.
	Seed int64

	// Authorization is the permission state the simulator reports.
	// Defaults to AuthAlways so StartStreaming succeeds out of the box.
	Authorization AuthorizationState
}

// Simulator is a Source that emits fixes along a seeded random walk from a
// base coordinate. It exists so the whole pipeline can run without a device:
// the composition root selects it over a real provider via configuration,
// never by branching inside a call path.
type Simulator struct {
	cfg SimulatorConfig
	log *slog.Logger

	mu        sync.Mutex
	handlers  Handlers
	streaming bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	rng     *rand.Rand
	lat     float64
	lon     float64
	bearing float64
}

// NewSimulator constructs a simulator with defaults applied.
func NewSimulator(cfg SimulatorConfig, log *slog.Logger) *Simulator {
	if cfg.BaseLat == 0 && cfg.BaseLon == 0 {
		cfg.BaseLat, cfg.BaseLon = 25.276987, 55.296249
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Authorization == "" {
		cfg.Authorization = AuthAlways
	}
	return &Simulator{
		cfg: cfg,
		log: log,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		lat: cfg.BaseLat,
		lon: cfg.BaseLon,
	}
}

// compile-time check: Simulator must satisfy Source.
var _ Source = (*Simulator)(nil)

// StartStreaming launches the tick loop. Fails with ErrPermissionDenied when
// the configured authorization state would not allow a real provider to
// stream, so permission failure paths stay testable end to end.
func (s *Simulator) StartStreaming(ctx context.Context) (StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Authorization == AuthDenied || s.cfg.Authorization == AuthRestricted {
		return StreamInfo{}, ErrPermissionDenied
	}
	if s.streaming {
		return StreamInfo{FrequencyHint: frequencyHint(s.cfg.Interval)}, nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.streaming = true
	s.wg.Add(1)
	go s.run(runCtx)

	s.log.Info("simulator streaming started", "interval", s.cfg.Interval, "seed", s.cfg.Seed)
	return StreamInfo{FrequencyHint: frequencyHint(s.cfg.Interval)}, nil
}

// StopStreaming halts the tick loop and waits for it to drain.
// Stopping an idle simulator is a no-op reported via stopped=false.
func (s *Simulator) StopStreaming(_ context.Context) (bool, error) {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return false, nil
	}
	s.streaming = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("simulator streaming stopped")
	return true, nil
}

// CurrentFix returns the next fix on the walk without streaming.
func (s *Simulator) CurrentFix(_ context.Context) (domain.GeoSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Authorization == AuthDenied || s.cfg.Authorization == AuthRestricted {
		return domain.GeoSample{}, ErrPermissionDenied
	}
	return s.nextFixLocked(time.Now().UTC()), nil
}

// Authorization reports the configured permission state.
func (s *Simulator) Authorization(_ context.Context) AuthorizationState {
	return s.cfg.Authorization
}

// Subscribe installs the handler set, replacing any previous one.
func (s *Simulator) Subscribe(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// UnsubscribeAll removes the handler set. Safe to call repeatedly.
func (s *Simulator) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = Handlers{}
}

func (s *Simulator) run(ctx context.Context) {
	defer s.wg.Done()

	tick := time.NewTicker(s.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			s.mu.Lock()
			fix := s.nextFixLocked(now.UTC())
			onSample := s.handlers.OnSample
			s.mu.Unlock()

			if onSample != nil {
				onSample(fix)
			}
		}
	}
}

// nextFixLocked advances the walk one step and returns the resulting fix.
// Steps are ~10-40 m at city driving speeds with a slowly drifting bearing.
func (s *Simulator) nextFixLocked(at time.Time) domain.GeoSample {
	s.bearing += (s.rng.Float64() - 0.5) * 30
	s.bearing = math.Mod(s.bearing+360, 360)

	stepMeters := 10 + s.rng.Float64()*30
	rad := s.bearing * math.Pi / 180
	// 1 degree latitude ~ 111.32 km; longitude shrinks with cos(lat).
	s.lat += stepMeters * math.Cos(rad) / 111320
	s.lon += stepMeters * math.Sin(rad) / (111320 * math.Cos(s.lat*math.Pi/180))

	speed := stepMeters / s.cfg.Interval.Seconds()
	accuracy := 3 + s.rng.Float64()*7
	bearing := s.bearing

	fix, _ := domain.NewGeoSample(s.lat, s.lon, at)
	fix, _ = fix.WithKinematics(nil, &accuracy, &bearing, &speed)
	return fix
}

func frequencyHint(interval time.Duration) string {
	if interval == time.Second {
		return "1Hz"
	}
	return interval.String()
}
