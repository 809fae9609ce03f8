// Package poller drives the pipeline on an interval and on demand.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
)

const defaultInterval = 30 * time.Minute

// Source produces results for every tracked team. *pipeline.Pipeline implements it.
type Source interface {
	Results(ctx context.Context) []match.TeamResult
	RefreshAll(ctx context.Context) []match.TeamResult
}

// Sink receives the results of each cycle.
type Sink func(results []match.TeamResult, forced bool)

// Poller calls Source.Results every interval and Source.RefreshAll when triggered.
type Poller struct {
	source   Source
	sink     Sink
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	trigger  chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	statusMu sync.RWMutex
	status   Status
}

// Status describes recent poller activity.
type Status struct {
	Cycles      int       `json:"cycles"`
	Refreshes   int       `json:"refreshes"`
	LastCycle   time.Time `json:"last_cycle"`
	LastRefresh time.Time `json:"last_refresh"`
	Teams       int       `json:"teams"`
}

// New creates a Poller. A nil sink discards results.
func New(source Source, sink Sink, log *logger.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = logger.Default()
	}
	if sink == nil {
		sink = func([]match.TeamResult, bool) {}
	}
	return &Poller{
		source:   source,
		sink:     sink,
		log:      log,
		interval: interval,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Start runs one cycle immediately and then polls until ctx is cancelled or
// Stop is called. Calling Start again has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	p.startMu.Unlock()

	go p.loop(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.exited)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("Poller started", logger.Fields{"interval": p.interval.String()})
	p.cycle(ctx, false)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Poller stopped", nil)
			return
		case <-p.done:
			p.log.Info("Poller stopped", nil)
			return
		case <-ticker.C:
			p.cycle(ctx, false)
		case <-p.trigger:
			p.cycle(ctx, true)
			ticker.Reset(p.interval)
		}
	}
}

// Trigger requests an immediate refresh of every team, bypassing cache TTLs.
// It does not block; presses made while a refresh is pending are merged.
// It reports whether a new refresh was queued.
func (p *Poller) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Refresh runs a forced refresh now, outside the loop, and returns its results.
// Status and the sink see it like a triggered refresh.
func (p *Poller) Refresh(ctx context.Context) []match.TeamResult {
	return p.cycle(ctx, true)
}

// Stop halts the loop and waits for an in-flight cycle to finish or ctx to end.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.done)
	})

	p.startMu.Lock()
	started := p.started
	p.startMu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) cycle(ctx context.Context, forced bool) []match.TeamResult {
	start := p.now()
	var results []match.TeamResult
	if forced {
		results = p.source.RefreshAll(ctx)
	} else {
		results = p.source.Results(ctx)
	}

	p.statusMu.Lock()
	if forced {
		p.status.Refreshes++
		p.status.LastRefresh = start
	} else {
		p.status.Cycles++
		p.status.LastCycle = start
	}
	p.status.Teams = len(results)
	p.statusMu.Unlock()

	p.log.Info("Poll cycle complete", logger.Fields{
		"teams":       len(results),
		"forced":      forced,
		"duration_ms": p.now().Sub(start).Milliseconds(),
	})
	p.sink(results, forced)
	return results
}

// Status returns a snapshot of recent activity.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}
