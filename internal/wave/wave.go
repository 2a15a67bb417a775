// Package wave runs the expanding-wavefront simulation attached to each
// active alert: a P and an S circle growing at fixed physical speeds with
// time-based opacity decay, rendered through an abstract map surface.
package wave

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quakewatch/eew-alert-service/internal/observability"
)

// Propagation speeds in metres per second.
const (
	PWaveSpeed = 6000.0
	SWaveSpeed = 4000.0
)

// Initial opacities; both decay linearly to 0 as a front approaches its cap.
const (
	InitialStrokeOpacity = 0.8
	InitialFillOpacity   = 0.2
)

// Handle references a rendered map object owned by the surface.
type Handle string

// Surface is the map capability the simulation draws through. Implementations
// must be safe for concurrent use; the simulation calls them from its own
// goroutine.
type Surface interface {
	PlaceEpicenter(lat, lon float64) Handle
	AddWave(lat, lon float64) Handle
	SetWaveRadius(h Handle, meters float64)
	SetWaveOpacity(h Handle, stroke, fill float64)
	RemoveMapObjects(hs ...Handle)
	FitViewTo(hs []Handle, padding int)
	ResetView(lat, lon float64, zoom int)
}

// Config bounds a simulation in time and anchors the baseline view.
type Config struct {
	DisplayDuration time.Duration // growth window; fronts cap at speed × this
	FrameInterval   time.Duration
	FitInterval     time.Duration // minimum spacing between view fits
	FitPadding      int
	HomeLat         float64
	HomeLon         float64
	HomeZoom        int
}

// Driver starts simulations. One driver is shared by all alerts.
type Driver struct {
	clock   clockwork.Clock
	surface Surface
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDriver creates a Driver rendering through surface.
func NewDriver(clock clockwork.Clock, surface Surface, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{clock: clock, surface: surface, cfg: cfg, logger: logger, metrics: metrics}
}

// Start places the epicenter marker and wave circles and begins the frame
// loop. The returned simulation runs until both fronts reach their cap or
// Stop is called.
func (d *Driver) Start(lat, lon float64) *Simulation {
	s := &Simulation{
		clock:   d.clock,
		surface: d.surface,
		cfg:     d.cfg,
		logger:  d.logger,
		metrics: d.metrics,
		lat:     lat,
		lon:     lon,
		start:   d.clock.Now(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.epicenter = d.surface.PlaceEpicenter(lat, lon)
	s.pFront = d.surface.AddWave(lat, lon)
	s.sFront = d.surface.AddWave(lat, lon)
	s.lastFit = s.start.Add(-d.cfg.FitInterval) // allow an immediate first fit

	if d.metrics != nil {
		d.metrics.WavesActive.Inc()
	}
	d.logger.Debug("wave simulation started", "lat", lat, "lon", lon)
	go s.run()
	return s
}

// Simulation is one pair of expanding wavefronts. It is owned by exactly one
// alert and must be stopped before a replacement is started for the same
// event.
type Simulation struct {
	clock   clockwork.Clock
	surface Surface
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics

	lat, lon  float64
	epicenter Handle
	pFront    Handle
	sFront    Handle

	start   time.Time
	lastFit time.Time
	pRadius float64
	sRadius float64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Stop cancels the frame loop and removes the simulation's map objects.
// It blocks until the loop has exited and is safe to call repeatedly,
// including after the simulation finished on its own.
func (s *Simulation) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

func (s *Simulation) run() {
	defer close(s.done)
	defer func() {
		if s.metrics != nil {
			s.metrics.WavesActive.Dec()
		}
	}()

	ticker := s.clock.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.surface.RemoveMapObjects(s.pFront, s.sFront, s.epicenter)
			return
		case <-ticker.Chan():
			if s.advance(s.clock.Now()) {
				// Both fronts capped: tear down and restore the baseline view.
				s.surface.RemoveMapObjects(s.pFront, s.sFront, s.epicenter)
				s.surface.ResetView(s.cfg.HomeLat, s.cfg.HomeLon, s.cfg.HomeZoom)
				s.logger.Debug("wave simulation finished", "lat", s.lat, "lon", s.lon)
				return
			}
		}
	}
}

// advance renders one frame at the given wall-clock instant and reports
// whether both fronts have reached their cap. Elapsed time comes from clock
// deltas, so frame-rate jitter never changes the physical speed.
func (s *Simulation) advance(now time.Time) bool {
	elapsed := now.Sub(s.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	window := s.cfg.DisplayDuration.Seconds()

	pr := Radius(PWaveSpeed, elapsed, window)
	sr := Radius(SWaveSpeed, elapsed, window)
	// Radii never shrink, even if the wall clock steps backwards.
	if pr < s.pRadius {
		pr = s.pRadius
	}
	if sr < s.sRadius {
		sr = s.sRadius
	}
	s.pRadius, s.sRadius = pr, sr

	s.surface.SetWaveRadius(s.pFront, pr)
	s.surface.SetWaveRadius(s.sFront, sr)
	s.surface.SetWaveOpacity(s.pFront,
		Opacity(InitialStrokeOpacity, pr, PWaveSpeed*window),
		Opacity(InitialFillOpacity, pr, PWaveSpeed*window))
	s.surface.SetWaveOpacity(s.sFront,
		Opacity(InitialStrokeOpacity, sr, SWaveSpeed*window),
		Opacity(InitialFillOpacity, sr, SWaveSpeed*window))

	if now.Sub(s.lastFit) >= s.cfg.FitInterval {
		s.surface.FitViewTo([]Handle{s.pFront, s.sFront, s.epicenter}, s.cfg.FitPadding)
		s.lastFit = now
	}

	return pr >= PWaveSpeed*window && sr >= SWaveSpeed*window
}

// Radius returns speed × elapsed seconds, capped at speed × window seconds.
func Radius(speed, elapsed, window float64) float64 {
	if elapsed > window {
		elapsed = window
	}
	return speed * elapsed
}

// Opacity decays initial linearly to 0 as radius approaches max, clamped at 0.
func Opacity(initial, radius, max float64) float64 {
	if max <= 0 {
		return 0
	}
	o := initial * (1 - radius/max)
	if o < 0 {
		return 0
	}
	return o
}
