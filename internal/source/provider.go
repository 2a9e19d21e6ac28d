// Package source keeps the current list of dial events up to date.
//
// A Provider fetches every configured calendar feed, expands recurrences
// into the look-ahead window and publishes the result as an immutable
// snapshot. Readers (the renderer, the HTTP API) only ever see complete
// snapshots; a refresh swaps the pointer once it is done.
package source

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"piedial/internal/config"
	"piedial/internal/ics"
	appLog "piedial/internal/log"
	"piedial/internal/model"
)

// Snapshot is one published event list plus the window it covers.
type Snapshot struct {
	Events     []model.Event `json:"-"`
	RangeStart time.Time     `json:"range_start"`
	RangeEnd   time.Time     `json:"range_end"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Truncated  []string      `json:"truncated_uids,omitempty"`
	Excluded   int           `json:"excluded"`
}

// Provider owns the feed pipeline: fetch, parse, expand, publish.
type Provider struct {
	sources  []ics.Source
	fetcher  *ics.Fetcher
	expand   ics.ExpandConfig
	window   time.Duration
	schedule string
	static   bool

	now func() time.Time

	refreshMu sync.Mutex
	lastGood  map[string][]ics.ParsedEvent // by source ID, guarded by refreshMu

	snap atomic.Pointer[Snapshot]
}

// New builds a Provider for the sources in cfg. Nothing is fetched until
// Refresh or Start is called; until then Snapshot is empty.
func New(cfg *config.Config) *Provider {
	colors := make(map[string]color.NRGBA, len(cfg.Sources))
	sources := make([]ics.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Path: s.Path})
		if s.Color != "" {
			colors[s.ID] = model.ColorOrDefault(s.Color)
		}
	}

	p := &Provider{
		sources: sources,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		expand: ics.ExpandConfig{
			DisplayLocation: cfg.Location(),
			ExcludeTitles:   cfg.ExcludeTitles,
			Colors:          colors,
			DefaultColor:    model.ColorOrDefault(cfg.DefaultColor),
		},
		window:   time.Duration(cfg.WindowHours) * time.Hour,
		schedule: cfg.RefreshCron,
		now:      time.Now,
		lastGood: make(map[string][]ics.ParsedEvent),
	}
	p.snap.Store(&Snapshot{Events: []model.Event{}})
	return p
}

// NewStatic returns a Provider that always serves events. Refresh is a
// no-op; it backs demo mode and tests.
func NewStatic(events []model.Event) *Provider {
	p := &Provider{static: true, now: time.Now}
	p.snap.Store(&Snapshot{Events: ics.Dedup(events), UpdatedAt: time.Now()})
	return p
}

// SetClock replaces the time source used for the look-ahead window.
func (p *Provider) SetClock(now func() time.Time) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	p.now = now
}

// Snapshot returns the current event list. The slice is shared and must
// not be modified.
func (p *Provider) Snapshot() []model.Event {
	return p.snap.Load().Events
}

// Current returns the full current snapshot.
func (p *Provider) Current() Snapshot {
	return *p.snap.Load()
}

// Refresh runs one fetch/parse/expand cycle and publishes the result.
//
// A source that fails to fetch or parse keeps contributing the events of
// its last successful cycle. The returned error joins all per-source
// failures; the snapshot is still replaced.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.static {
		return nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := time.Now()
	now := p.now()

	results, errs := p.fetcher.FetchAll(ctx, p.sources)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("source parse failed; keeping previous events", err, "id", res.Source.ID)
			errs = errors.Join(errs, err)
			continue
		}
		p.lastGood[res.Source.ID] = events
	}

	var parsed []ics.ParsedEvent
	for _, src := range p.sources {
		parsed = append(parsed, p.lastGood[src.ID]...)
	}

	cfg := p.expand
	cfg.RangeStart = now
	cfg.RangeEnd = now.Add(p.window)
	res, err := ics.Expand(parsed, cfg)
	if err != nil {
		return fmt.Errorf("source: expand: %w", err)
	}

	p.snap.Store(&Snapshot{
		Events:     res.Events,
		RangeStart: cfg.RangeStart,
		RangeEnd:   cfg.RangeEnd,
		UpdatedAt:  now,
		Truncated:  res.TruncatedEvents,
		Excluded:   res.Excluded,
	})

	appLog.Info("source refresh completed",
		"sources", len(p.sources),
		"events", len(res.Events),
		"excluded", res.Excluded,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return errs
}

func (p *Provider) refreshLogged(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if err := p.Refresh(ctx); err != nil {
		appLog.Error("source refresh had errors", err, "trigger", trigger)
	}
}

// Start refreshes once, then keeps refreshing on the configured cron
// schedule and whenever a local .ics source changes on disk. It blocks
// until ctx is done.
func (p *Provider) Start(ctx context.Context) error {
	if p.static {
		<-ctx.Done()
		return nil
	}

	sched := cron.New(cron.WithLocation(p.expand.DisplayLocation))
	if _, err := sched.AddFunc(p.schedule, func() { p.refreshLogged(ctx, "cron") }); err != nil {
		return fmt.Errorf("source: refresh schedule %q: %w", p.schedule, err)
	}

	p.refreshLogged(ctx, "startup")

	var paths []string
	for _, src := range p.sources {
		if src.Path != "" {
			paths = append(paths, src.Path)
		}
	}
	if len(paths) > 0 {
		w, err := newFileWatcher(func(path string) {
			appLog.Debug("source file changed", "path", path)
			p.refreshLogged(ctx, "file")
		})
		if err != nil {
			appLog.Error("file watcher unavailable; relying on schedule", err)
		} else {
			defer w.Close()
			for _, path := range paths {
				if err := w.AddFile(path); err != nil {
					appLog.Error("cannot watch source file", err, "path", path)
				}
			}
		}
	}

	sched.Start()
	appLog.Info("source scheduler started", "refresh", p.schedule, "watched_files", len(paths))

	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}
