// Package pipeline composes fetching, extraction, normalization and caching into
// one next/last result per tracked team.
package pipeline

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sourcegraph/conc/pool"

	"github.com/pfrederiksen/liquipedia-cs/internal/cache"
	"github.com/pfrederiksen/liquipedia-cs/internal/extract"
	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/metrics"
	"github.com/pfrederiksen/liquipedia-cs/internal/timezone"
)

const fixturesKey = "fixtures"

// Fetcher retrieves parsed upstream pages. *scraper.Client implements it.
type Fetcher interface {
	FetchTeamMatches(ctx context.Context, page string) (*goquery.Document, error)
	FetchFixtures(ctx context.Context) (*goquery.Document, error)
	TeamPath(page string) string
}

// Options configures a Pipeline. Fetcher is required.
type Options struct {
	Fetcher  Fetcher
	Teams    []match.Team
	TTL      time.Duration
	Location *time.Location
	Workers  int
	Logger   *logger.Logger
	Recorder *metrics.Recorder
}

// Pipeline produces TeamResults. It is safe for concurrent use.
type Pipeline struct {
	fetcher  Fetcher
	teams    []match.Team
	ttl      time.Duration
	workers  int
	log      *logger.Logger
	norm     normalizer
	lasts    *cache.Cache[match.MatchFact]
	fixtures *cache.Cache[extract.FixturesSnapshot]
}

// New creates a Pipeline with its own caches.
func New(opts Options) *Pipeline {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Pipeline{
		fetcher:  opts.Fetcher,
		teams:    append([]match.Team(nil), opts.Teams...),
		ttl:      opts.TTL,
		workers:  opts.Workers,
		log:      opts.Logger,
		norm:     normalizer{resolver: timezone.NewResolver(opts.Logger), loc: opts.Location},
		lasts:    cache.New[match.MatchFact]("team", opts.Logger, opts.Recorder),
		fixtures: cache.New[extract.FixturesSnapshot]("fixtures", opts.Logger, opts.Recorder),
	}
}

// Teams returns the tracked teams in configuration order.
func (p *Pipeline) Teams() []match.Team {
	return append([]match.Team(nil), p.teams...)
}

// Team returns the tracked team for page. Untracked pages get a team whose
// display name is the page itself.
func (p *Pipeline) Team(page string) (match.Team, bool) {
	for _, t := range p.teams {
		if t.Page == page {
			return t, true
		}
	}
	return match.Team{Page: page, Name: page}, false
}

// GetTeamResult returns the next and last match of the team on page. It never
// fails: halves that cannot be obtained come back with absent or unknown fields.
func (p *Pipeline) GetTeamResult(ctx context.Context, page string) match.TeamResult {
	team, _ := p.Team(page)
	return match.TeamResult{
		Team: team,
		Next: p.next(ctx, team),
		Last: p.last(ctx, team),
	}
}

func (p *Pipeline) last(ctx context.Context, team match.Team) match.MatchFact {
	fact, status := p.lasts.GetOrFetch(ctx, team.Page, p.ttl, func(ctx context.Context) (match.MatchFact, error) {
		doc, err := p.fetcher.FetchTeamMatches(ctx, team.Page)
		if err != nil {
			return match.MatchFact{}, err
		}
		raw, err := extract.ExtractLast(doc)
		if err != nil {
			return match.MatchFact{}, err
		}
		if !raw.Complete {
			p.log.Debug("Latest result row is incomplete", logger.Fields{"team": team.Page})
		}
		return p.norm.last(team, raw), nil
	})
	if !status.Usable() {
		return match.NewUnknownLast(team.Name)
	}
	return fact
}

func (p *Pipeline) next(ctx context.Context, team match.Team) match.MatchFact {
	snap, status := p.fixtures.GetOrFetch(ctx, fixturesKey, p.ttl, func(ctx context.Context) (extract.FixturesSnapshot, error) {
		doc, err := p.fetcher.FetchFixtures(ctx)
		if err != nil {
			return extract.FixturesSnapshot{}, err
		}
		snap := extract.ExtractFixtures(doc)
		p.log.Debug("Parsed fixtures page", logger.Fields{"teams": snap.Len()})
		return snap, nil
	})
	if !status.Usable() {
		return match.NewUnavailableNext(team.Name)
	}
	return p.norm.next(team, snap.Lookup(p.fetcher.TeamPath(team.Page)))
}

// Results returns every tracked team's result, serving cached values where fresh.
func (p *Pipeline) Results(ctx context.Context) []match.TeamResult {
	return p.collect(ctx)
}

// RefreshAll expires every cached page and recomputes all tracked teams.
// Values are kept, so a team whose refresh fails still gets its previous result.
func (p *Pipeline) RefreshAll(ctx context.Context) []match.TeamResult {
	p.lasts.ExpireAll()
	p.fixtures.ExpireAll()
	p.log.Info("Refreshing all teams", logger.Fields{"teams": len(p.teams)})
	return p.collect(ctx)
}

func (p *Pipeline) collect(ctx context.Context) []match.TeamResult {
	results := make([]match.TeamResult, len(p.teams))
	workers := pool.New().WithMaxGoroutines(p.workers)
	for i, team := range p.teams {
		workers.Go(func() {
			results[i] = p.GetTeamResult(ctx, team.Page)
		})
	}
	workers.Wait()
	return results
}
