package reconcile_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/reconcile"
)

// --- mocks ---

type fakeSink struct {
	mu       sync.Mutex
	rendered []string
	updated  []reconcile.BannerHandle
	removed  []reconcile.BannerHandle
	lists    [][]domain.HistoryEntry
	fields   map[reconcile.BannerHandle]domain.AlertFields
}

func newFakeSink() *fakeSink {
	return &fakeSink{fields: make(map[reconcile.BannerHandle]domain.AlertFields)}
}

func (s *fakeSink) RenderAlertBanner(eventID string, f domain.AlertFields) reconcile.BannerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = append(s.rendered, eventID)
	h := reconcile.BannerHandle("banner-" + eventID)
	s.fields[h] = f
	return h
}

func (s *fakeSink) UpdateBannerContent(h reconcile.BannerHandle, f domain.AlertFields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, h)
	s.fields[h] = f
}

func (s *fakeSink) HideAndRemoveBanner(h reconcile.BannerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, h)
}

func (s *fakeSink) RenderEarthquakeList(entries []domain.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, entries)
}

type fakeView struct {
	mu     sync.Mutex
	resets int
}

func (v *fakeView) ResetView(lat, lon float64, zoom int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
}

func (v *fakeView) resetCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

type fakeSim struct {
	mu      sync.Mutex
	stopped bool
}

func (s *fakeSim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeSim) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeWaves struct {
	mu   sync.Mutex
	sims []*fakeSim
}

func (w *fakeWaves) Start(lat, lon float64) reconcile.WaveSim {
	w.mu.Lock()
	defer w.mu.Unlock()
	sim := &fakeSim{}
	w.sims = append(w.sims, sim)
	return sim
}

func (w *fakeWaves) started() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sims)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []reconcile.AlertEvent
}

func (p *fakePublisher) PublishAlertEvent(_ context.Context, ev reconcile.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// --- harness ---

type harness struct {
	clock *clockwork.FakeClock
	sink  *fakeSink
	view  *fakeView
	waves *fakeWaves
	pub   *fakePublisher
	rec   *reconcile.Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: clockwork.NewFakeClock(),
		sink:  newFakeSink(),
		view:  &fakeView{},
		waves: &fakeWaves{},
		pub:   &fakePublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.rec = reconcile.New(h.clock, h.sink, h.view, h.waves, h.pub, logger, nil, reconcile.Config{
		DisplayDuration: 600 * time.Second,
		HomeLat:         30.66,
		HomeLon:         104.07,
		HomeZoom:        7,
	})
	return h
}

func validSnapshot(id string) domain.Snapshot {
	return domain.Snapshot{
		EventID:           id,
		Source:            domain.SourceSichuanEEW,
		Place:             "Wenchuan, Sichuan",
		Lat:               31.0,
		Lon:               103.0,
		Magnitude:         6.8,
		Depth:             20,
		OriginTime:        "2026-08-30 12:34:56",
		ReportNo:          1,
		SuppliedIntensity: domain.IntensityUnknown,
	}
}

// --- tests ---

func TestReconcilerCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))

	alerts := h.rec.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "E1", alerts[0].ID)
	assert.Equal(t, 9, alerts[0].Fields.Intensity) // round(1.5*6.8+3-3.5*log10(20))
	assert.Equal(t, []string{"E1"}, h.sink.rendered)
	assert.Equal(t, 1, h.waves.started())
	assert.Equal(t, []string{"created"}, h.pub.types())
}

func TestReconcilerSingleAlertPerIdentifier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		snap := validSnapshot("E1")
		snap.ReportNo = i
		snap.Magnitude = 6.0 + float64(i)*0.1
		h.rec.Apply(ctx, snap)
	}

	alerts := h.rec.ActiveAlerts()
	require.Len(t, alerts, 1)
	// Displayed fields always reflect the most recently processed snapshot.
	assert.Equal(t, 5, alerts[0].Fields.ReportNo)
	assert.InDelta(t, 6.5, alerts[0].Fields.Magnitude, 1e-9)
	// One banner rendered, four in-place updates, no flicker re-creation.
	assert.Equal(t, []string{"E1"}, h.sink.rendered)
	assert.Len(t, h.sink.updated, 4)
}

func TestReconcilerUpdateRestartsWave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))
	require.Equal(t, 1, h.waves.started())

	revised := validSnapshot("E1")
	revised.ReportNo = 2
	revised.Magnitude = 7.0
	h.rec.Apply(ctx, revised)

	// Old simulation stopped before the replacement started.
	require.Equal(t, 2, h.waves.started())
	assert.True(t, h.waves.sims[0].isStopped())
	assert.False(t, h.waves.sims[1].isStopped())
}

func TestReconcilerIdenticalSnapshotRefreshesWithoutRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))
	h.clock.Advance(300 * time.Second)

	// Same report again: feed still sees the event, nothing revised.
	h.rec.Apply(ctx, validSnapshot("E1"))

	assert.Equal(t, 1, h.waves.started(), "unrevised report must not restart the wave")
	assert.Empty(t, h.sink.updated)

	// The deadline was pushed out: alive at t+899s, gone at t+900s.
	h.clock.Advance(599 * time.Second)
	assert.Len(t, h.rec.ActiveAlerts(), 1)
	h.clock.Advance(time.Second)
	assert.Empty(t, h.rec.ActiveAlerts())
}

func TestReconcilerCancelAndFinal(t *testing.T) {
	for _, tt := range []struct {
		name   string
		cancel bool
		final  bool
		reason string
	}{
		{"cancel", true, false, reconcile.ReasonCancelled},
		{"final report", false, true, reconcile.ReasonFinal},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			h.rec.Apply(ctx, validSnapshot("E1"))
			term := domain.Snapshot{EventID: "E1", Source: domain.SourceSichuanEEW, Cancel: tt.cancel, Final: tt.final,
				Lat: math.NaN(), Lon: math.NaN(), Magnitude: math.NaN()}
			h.rec.Apply(ctx, term)

			assert.Empty(t, h.rec.ActiveAlerts())
			assert.Len(t, h.sink.removed, 1)
			assert.True(t, h.waves.sims[0].isStopped())
			assert.Equal(t, 1, h.view.resetCount())

			events := h.pub.events
			require.Len(t, events, 2)
			assert.Equal(t, "removed", events[1].Type)
			assert.Equal(t, tt.reason, events[1].Reason)

			// The expiry timer was cancelled: advancing past the deadline
			// must not remove anything twice.
			h.clock.Advance(700 * time.Second)
			assert.Len(t, h.sink.removed, 1)
		})
	}
}

func TestReconcilerExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))

	h.clock.Advance(599 * time.Second)
	assert.Len(t, h.rec.ActiveAlerts(), 1)

	h.clock.Advance(time.Second)
	assert.Empty(t, h.rec.ActiveAlerts())
	assert.Len(t, h.sink.removed, 1)
	assert.True(t, h.waves.sims[0].isStopped())
	assert.Equal(t, 1, h.view.resetCount())
}

func TestReconcilerCycleMiss(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))

	drill := validSnapshot("drill-1")
	drill.Source = domain.SourceTest
	h.rec.Apply(ctx, drill)

	other := validSnapshot("E2")
	h.rec.Apply(ctx, other)

	// E2 was seen this cycle, E1 was not; the drill is exempt either way.
	h.rec.FinishCycle(ctx, map[string]struct{}{"E2": {}})

	alerts := h.rec.ActiveAlerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, "E2", alerts[0].ID)
	assert.Equal(t, "drill-1", alerts[1].ID)

	// The drill still dies by its own timer.
	h.clock.Advance(600 * time.Second)
	assert.Empty(t, h.rec.ActiveAlerts())
}

func TestReconcilerInvalidSnapshotIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	incomplete := domain.Snapshot{EventID: "E1", Source: domain.SourceICLEEW,
		Lat: math.NaN(), Lon: math.NaN(), Magnitude: math.NaN(), Depth: 10}
	h.rec.Apply(ctx, incomplete)
	assert.Empty(t, h.rec.ActiveAlerts())

	// An invalid snapshot must also leave an existing alert untouched.
	h.rec.Apply(ctx, validSnapshot("E2"))
	incomplete.EventID = "E2"
	h.rec.Apply(ctx, incomplete)

	require.Len(t, h.rec.ActiveAlerts(), 1)
	assert.Equal(t, 1, h.waves.started())
	assert.Empty(t, h.sink.removed)
}

func TestReconcilerUnknownSourceDropped(t *testing.T) {
	h := newHarness(t)

	snap := validSnapshot("E1")
	snap.Source = domain.SourceKind("jma-eew")
	h.rec.Apply(context.Background(), snap)

	assert.Empty(t, h.rec.ActiveAlerts())
	assert.Empty(t, h.sink.rendered)
}

func TestReconcilerEndToEnd(t *testing.T) {
	// Inject E1 at (31.0, 103.0) M6.8 depth 20, then let the display window
	// elapse with no further reports.
	h := newHarness(t)
	ctx := context.Background()

	h.rec.Apply(ctx, validSnapshot("E1"))

	alerts := h.rec.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, 9, alerts[0].Fields.Intensity)
	assert.Equal(t, "Sichuan EEW", alerts[0].Fields.Agency)
	assert.Equal(t, 1, h.waves.started())
	assert.Equal(t, []string{"E1"}, h.sink.rendered)

	h.clock.Advance(600 * time.Second)

	assert.Empty(t, h.rec.ActiveAlerts())
	assert.Len(t, h.sink.removed, 1)
	assert.True(t, h.waves.sims[0].isStopped())
	assert.Equal(t, 1, h.view.resetCount(), "view restored to default center/zoom")
}
