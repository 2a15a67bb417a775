// Package poller drives the fetch-join-reconcile cycle over the fixed list
// of feed sources.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/observability"
	"github.com/quakewatch/eew-alert-service/internal/reconcile"
)

// Source is one polled feed endpoint. Fetch returns the feed's latest report
// (nil when the feed has nothing active) and, for catalog feeds, the recent
// quake list. Errors are reported but never abort a cycle.
type Source interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context) (*domain.Snapshot, []domain.HistoryEntry, error)
}

// ListSink receives the merged earthquake list once per cycle.
type ListSink interface {
	RenderEarthquakeList(entries []domain.HistoryEntry)
}

// Poller fetches all sources in parallel each cycle, joins the results, and
// hands them to the reconciler in feed-list order.
type Poller struct {
	sources      []Source
	rec          *reconcile.Reconciler
	list         ListSink
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
	interval     time.Duration
	fetchTimeout time.Duration
	ready        atomic.Bool
}

// New creates a Poller over the given sources.
func New(sources []Source, rec *reconcile.Reconciler, list ListSink, clock clockwork.Clock,
	logger *slog.Logger, metrics *observability.Metrics, interval, fetchTimeout time.Duration) *Poller {
	return &Poller{
		sources:      sources,
		rec:          rec,
		list:         list,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		interval:     interval,
		fetchTimeout: fetchTimeout,
	}
}

// CheckReadiness returns nil once at least one polling cycle has completed.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no polling cycle has completed yet")
	}
	return nil
}

// Run polls immediately, then on every interval tick until the context is
// cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "sources", len(p.sources), "interval", p.interval)

	p.runCycle(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.runCycle(ctx)
		}
	}
}

type fetchResult struct {
	snapshot *domain.Snapshot
	history  []domain.HistoryEntry
	err      error
}

// runCycle dispatches all fetches in parallel and joins them before any
// reconciliation runs, so cycle-miss eviction sees one consistent cycle.
func (p *Poller) runCycle(ctx context.Context) {
	start := p.clock.Now()

	results := make([]fetchResult, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
			defer cancel()
			snap, history, err := src.Fetch(fctx)
			results[i] = fetchResult{snapshot: snap, history: history, err: err}
		}(i, src)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	seen := make(map[string]struct{})
	var entries []domain.HistoryEntry
	for i, res := range results {
		kind := p.sources[i].Kind()
		if res.err != nil {
			// A failed fetch means "no data from this feed this cycle"; the
			// next cycle retries naturally.
			p.logger.Warn("feed fetch failed", "source", string(kind), "error", res.err)
			if p.metrics != nil {
				p.metrics.FetchErrors.WithLabelValues(string(kind)).Inc()
			}
			continue
		}
		entries = append(entries, res.history...)
		if res.snapshot == nil {
			continue
		}
		seen[res.snapshot.EventID] = struct{}{}
		p.rec.Apply(ctx, *res.snapshot)
	}

	p.rec.FinishCycle(ctx, seen)

	if len(entries) > 0 && p.list != nil {
		p.list.RenderEarthquakeList(entries)
	}

	if p.metrics != nil {
		p.metrics.PollCycles.Inc()
		p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	}
	p.ready.Store(true)
}
