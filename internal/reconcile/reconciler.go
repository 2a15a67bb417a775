// Package reconcile derives the set of currently active alerts from repeated,
// redundant feed snapshots. It owns the alert map, the per-alert expiry
// timers, and the binding between an alert and its wavefront simulation.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/observability"
)

// BannerHandle is an opaque reference to a rendered alert banner, owned by
// the presentation sink.
type BannerHandle string

// PresentationSink renders alert banners and the earthquake list. The
// reconciler never reads presentation state back.
type PresentationSink interface {
	RenderAlertBanner(eventID string, fields domain.AlertFields) BannerHandle
	UpdateBannerContent(h BannerHandle, fields domain.AlertFields)
	HideAndRemoveBanner(h BannerHandle)
	RenderEarthquakeList(entries []domain.HistoryEntry)
}

// ViewResetter restores the baseline map view when an alert is removed.
type ViewResetter interface {
	ResetView(lat, lon float64, zoom int)
}

// WaveSim is a running wavefront simulation owned by one alert.
type WaveSim interface {
	Stop()
}

// WaveDriver launches a wavefront simulation at an epicenter.
type WaveDriver interface {
	Start(lat, lon float64) WaveSim
}

// AlertEvent is a lifecycle notification for the optional event publisher.
type AlertEvent struct {
	Type    string             `json:"type"` // created, updated, removed
	Reason  string             `json:"reason,omitempty"`
	EventID string             `json:"event_id"`
	Source  domain.SourceKind  `json:"source"`
	Fields  domain.AlertFields `json:"fields"`
	At      time.Time          `json:"at"`
}

// EventPublisher receives lifecycle events. May be nil on the reconciler.
type EventPublisher interface {
	PublishAlertEvent(ctx context.Context, ev AlertEvent) error
}

// Removal reasons, also used as the metric label.
const (
	ReasonCancelled = "cancelled"
	ReasonFinal     = "final"
	ReasonExpired   = "expired"
	ReasonCycleMiss = "cycle-miss"
)

// Config holds the reconciler's tunables.
type Config struct {
	DisplayDuration time.Duration // alert lifetime without further reports
	HomeLat         float64
	HomeLon         float64
	HomeZoom        int
}

// Reconciler maintains the authoritative map of active alerts keyed by event
// identifier. All state transitions are serialized by a single mutex: poll
// cycles, expiry timer callbacks, and manual injections all pass through it,
// which stands in for the original single-threaded timeline.
type Reconciler struct {
	clock     clockwork.Clock
	sink      PresentationSink
	view      ViewResetter
	waves     WaveDriver
	publisher EventPublisher // may be nil
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       Config

	mu     sync.Mutex
	alerts map[string]*activeAlert
}

type activeAlert struct {
	id        string
	source    domain.SourceKind
	fields    domain.AlertFields
	lat, lon  float64
	createdAt time.Time
	updatedAt time.Time
	expiry    clockwork.Timer
	banner    BannerHandle
	sim       WaveSim // nil only when the driver declined to start one
}

// New creates a Reconciler. publisher may be nil to disable lifecycle events.
func New(clock clockwork.Clock, sink PresentationSink, view ViewResetter, waves WaveDriver,
	publisher EventPublisher, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Reconciler {
	return &Reconciler{
		clock:     clock,
		sink:      sink,
		view:      view,
		waves:     waves,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		alerts:    make(map[string]*activeAlert),
	}
}

// Apply feeds one normalized snapshot through the lifecycle state machine.
// Within a polling cycle snapshots are applied in feed order, so the last
// writer wins when two feeds ever share an identifier.
func (r *Reconciler) Apply(ctx context.Context, snap domain.Snapshot) {
	if !snap.Source.Valid() {
		r.logger.Warn("snapshot from unrecognized source dropped", "source", string(snap.Source), "event_id", snap.EventID)
		r.countSnapshot(snap.Source, "unknown-source")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.alerts[snap.EventID]

	// Explicit termination beats everything else in the snapshot.
	if snap.Cancel || snap.Final {
		if current != nil {
			reason := ReasonFinal
			if snap.Cancel {
				reason = ReasonCancelled
			}
			r.removeLocked(ctx, current, reason)
		}
		r.countSnapshot(snap.Source, "terminated")
		return
	}

	if !snap.Locatable() {
		// Not enough data to place an alert; any existing alert is left
		// untouched pending its own timer.
		r.countSnapshot(snap.Source, "noop")
		return
	}

	fields := domain.DeriveFields(snap)
	if current == nil {
		r.createLocked(ctx, snap, fields)
		return
	}
	r.updateLocked(ctx, current, snap, fields)
}

func (r *Reconciler) createLocked(ctx context.Context, snap domain.Snapshot, fields domain.AlertFields) {
	now := r.clock.Now()
	a := &activeAlert{
		id:        snap.EventID,
		source:    snap.Source,
		fields:    fields,
		lat:       snap.Lat,
		lon:       snap.Lon,
		createdAt: now,
		updatedAt: now,
	}
	a.banner = r.sink.RenderAlertBanner(a.id, fields)
	a.sim = r.waves.Start(a.lat, a.lon)
	a.expiry = r.clock.AfterFunc(r.cfg.DisplayDuration, func() { r.expire(a.id) })
	r.alerts[a.id] = a

	r.logger.Info("alert created",
		"event_id", a.id,
		"source", string(a.source),
		"place", fields.Place,
		"magnitude", fields.Magnitude,
		"intensity", fields.IntensityLabel(),
	)
	r.countSnapshot(snap.Source, "created")
	if r.metrics != nil {
		r.metrics.AlertsCreated.Inc()
		r.metrics.AlertsActive.Set(float64(len(r.alerts)))
	}
	r.publish(ctx, AlertEvent{Type: "created", EventID: a.id, Source: a.source, Fields: fields, At: now})
}

func (r *Reconciler) updateLocked(ctx context.Context, a *activeAlert, snap domain.Snapshot, fields domain.AlertFields) {
	now := r.clock.Now()
	changed := fields != a.fields || snap.Lat != a.lat || snap.Lon != a.lon

	// The feed is still reporting this event, so push the deadline out
	// whether or not anything changed.
	a.expiry.Reset(r.cfg.DisplayDuration)
	a.updatedAt = now

	if !changed {
		r.countSnapshot(snap.Source, "refreshed")
		return
	}

	a.fields = fields
	a.lat, a.lon = snap.Lat, snap.Lon
	r.sink.UpdateBannerContent(a.banner, fields)

	// A revised report supersedes the wave already propagated: restart the
	// simulation from radius zero, never letting two overlap.
	if a.sim != nil {
		a.sim.Stop()
	}
	a.sim = r.waves.Start(a.lat, a.lon)

	r.logger.Info("alert updated",
		"event_id", a.id,
		"source", string(a.source),
		"report_no", fields.ReportNo,
		"magnitude", fields.Magnitude,
	)
	r.countSnapshot(snap.Source, "updated")
	if r.metrics != nil {
		r.metrics.AlertsUpdated.Inc()
	}
	r.publish(ctx, AlertEvent{Type: "updated", EventID: a.id, Source: a.source, Fields: fields, At: now})
}

// FinishCycle evicts active alerts whose identifier was not reported by any
// feed this cycle. Drill alerts are exempt; they are governed solely by their
// own expiry timer.
func (r *Reconciler) FinishCycle(ctx context.Context, seen map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.alerts {
		if a.source == domain.SourceTest {
			continue
		}
		if _, ok := seen[id]; !ok {
			r.removeLocked(ctx, a, ReasonCycleMiss)
		}
	}
}

// expire is the deadline callback scheduled at creation and pushed out on
// every update.
func (r *Reconciler) expire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return
	}
	r.removeLocked(context.Background(), a, ReasonExpired)
}

// removeLocked tears an alert down: timer, banner, wave simulation, baseline
// view. Timer and simulation stops are safe against already-fired state.
func (r *Reconciler) removeLocked(ctx context.Context, a *activeAlert, reason string) {
	a.expiry.Stop()
	r.sink.HideAndRemoveBanner(a.banner)
	if a.sim != nil {
		a.sim.Stop()
	}
	r.view.ResetView(r.cfg.HomeLat, r.cfg.HomeLon, r.cfg.HomeZoom)
	delete(r.alerts, a.id)

	r.logger.Info("alert removed", "event_id", a.id, "source", string(a.source), "reason", reason)
	if r.metrics != nil {
		r.metrics.AlertsRemoved.WithLabelValues(reason).Inc()
		r.metrics.AlertsActive.Set(float64(len(r.alerts)))
	}
	r.publish(ctx, AlertEvent{Type: "removed", Reason: reason, EventID: a.id, Source: a.source, Fields: a.fields, At: r.clock.Now()})
}

// AlertView is a read-only projection of an active alert.
type AlertView struct {
	ID        string             `json:"id"`
	Source    domain.SourceKind  `json:"source"`
	Fields    domain.AlertFields `json:"fields"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ActiveAlerts returns a stable-ordered view of the current alerts.
func (r *Reconciler) ActiveAlerts() []AlertView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]AlertView, 0, len(r.alerts))
	for _, a := range r.alerts {
		views = append(views, AlertView{
			ID:        a.id,
			Source:    a.source,
			Fields:    a.fields,
			CreatedAt: a.createdAt,
			UpdatedAt: a.updatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (r *Reconciler) countSnapshot(source domain.SourceKind, outcome string) {
	if r.metrics != nil {
		r.metrics.Snapshots.WithLabelValues(string(source), outcome).Inc()
	}
}

func (r *Reconciler) publish(ctx context.Context, ev AlertEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishAlertEvent(ctx, ev); err != nil {
		r.logger.Warn("publish alert event failed", "event_id", ev.EventID, "type", ev.Type, "error", err)
	}
}
