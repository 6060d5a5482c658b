package sources

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"factcheck/backend/internal/brave"
	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/logger"
	"factcheck/backend/internal/metrics"
)

const (
	DefaultMaxClaims      = 3
	DefaultPerClaim       = 3
	DefaultMaxSources     = 3
	defaultMaxConcurrency = 64
	searchResultsPerClaim = 3
	searchSiteLimit       = 8
)

// Searcher finds pages about a claim. The brave client satisfies it.
type Searcher interface {
	Search(ctx context.Context, q brave.Query) ([]brave.SearchResult, error)
}

type ExpanderConfig struct {
	MaxClaims   int
	PerClaim    int
	MaxSources  int
	Concurrency int
}

type Expander struct {
	dir      Directory
	prober   Prober
	searcher Searcher
	cfg      ExpanderConfig
	log      logger.Logger
	metrics  *metrics.Metrics
}

type ExpanderOption func(*Expander)

// WithSearcher adds search hits on trusted domains ahead of each claim's
// template candidates.
func WithSearcher(s Searcher) ExpanderOption {
	return func(e *Expander) { e.searcher = s }
}

func WithLogger(log logger.Logger) ExpanderOption {
	return func(e *Expander) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) ExpanderOption {
	return func(e *Expander) { e.metrics = m }
}

func NewExpander(dir Directory, prober Prober, cfg ExpanderConfig, opts ...ExpanderOption) *Expander {
	if cfg.MaxClaims <= 0 {
		cfg.MaxClaims = DefaultMaxClaims
	}
	if cfg.PerClaim <= 0 {
		cfg.PerClaim = DefaultPerClaim
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultMaxSources
	}
	e := &Expander{dir: dir, prober: prober, cfg: cfg, log: logger.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Expander) Directory() Directory {
	return e.dir
}

// claimBatch tracks probe outcomes for one claim. Once the first PerClaim
// settled candidates in order are all reachable, the rest are cancelled.
type claimBatch struct {
	candidates []factcheck.Source
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	state    []probeState
	accepted []factcheck.Source
}

type probeState int8

const (
	probePending probeState = iota
	probeReachable
	probeUnreachable
)

func (b *claimBatch) settle(i int, reachable bool, quota int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reachable {
		b.state[i] = probeReachable
	} else {
		b.state[i] = probeUnreachable
	}

	accepted := 0
	for _, s := range b.state {
		if s == probePending {
			return
		}
		if s == probeReachable {
			accepted++
			if accepted == quota {
				b.cancel()
				return
			}
		}
	}
}

func (b *claimBatch) result(quota int) []factcheck.Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]factcheck.Source, 0, quota)
	for i, s := range b.state {
		if s != probeReachable {
			continue
		}
		out = append(out, b.candidates[i])
		if len(out) == quota {
			break
		}
	}
	return out
}

// Expand never fails: probe and search failures only shrink the citation
// set. The verdict's own sources always come first.
func (e *Expander) Expand(ctx context.Context, v factcheck.Verdict) factcheck.Verdict {
	claims := selectClaims(v.KeyClaims, e.cfg.MaxClaims)

	batches := make([]*claimBatch, len(claims))
	searchHits := e.searchAll(ctx, claims)
	total := 0
	for i, claim := range claims {
		candidates := append(searchHits[i], Candidates(claim, e.dir)...)
		claimCtx, cancel := context.WithCancel(ctx)
		batches[i] = &claimBatch{
			candidates: candidates,
			ctx:        claimCtx,
			cancel:     cancel,
			state:      make([]probeState, len(candidates)),
		}
		total += len(candidates)
	}

	limit := e.cfg.Concurrency
	if limit <= 0 || limit > total {
		limit = min(total, defaultMaxConcurrency)
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, batch := range batches {
		batch := batch
		for i, candidate := range batch.candidates {
			i, candidate := i, candidate
			g.Go(func() error {
				reachable := false
				if batch.ctx.Err() == nil && e.prober != nil {
					reachable = e.prober.Probe(batch.ctx, candidate.URL)
					e.metrics.ObserveProbe(reachable)
				}
				batch.settle(i, reachable, e.cfg.PerClaim)
				return nil
			})
		}
	}
	_ = g.Wait()

	groups := make([][]factcheck.Source, 0, len(batches)+1)
	groups = append(groups, v.Sources)
	for i, batch := range batches {
		batch.cancel()
		accepted := batch.result(e.cfg.PerClaim)
		e.log.Debug("claim sources validated",
			logger.Int("claim_index", i),
			logger.Int("candidates", len(batch.candidates)),
			logger.Int("accepted", len(accepted)),
		)
		groups = append(groups, accepted)
	}

	out := v
	out.Sources = Merge(e.cfg.MaxSources, groups...)
	return out
}

func selectClaims(keyClaims []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, claim := range keyClaims {
		claim = strings.TrimSpace(claim)
		if claim == "" {
			continue
		}
		out = append(out, claim)
		if len(out) == limit {
			break
		}
	}
	return out
}

// searchAll runs one search per claim concurrently and keeps only hits on
// directory domains.
func (e *Expander) searchAll(ctx context.Context, claims []string) [][]factcheck.Source {
	hits := make([][]factcheck.Source, len(claims))
	if e.searcher == nil || len(claims) == 0 {
		return hits
	}

	sites := e.dir.Domains()
	if len(sites) > searchSiteLimit {
		sites = sites[:searchSiteLimit]
	}

	var g errgroup.Group
	for i, claim := range claims {
		i, claim := i, claim
		g.Go(func() error {
			results, err := e.searcher.Search(ctx, brave.Query{Claim: claim, Sites: sites, Count: searchResultsPerClaim})
			if err != nil {
				e.log.Warn("source search failed", logger.Int("claim_index", i), logger.Error(err))
				return nil
			}
			for _, result := range results {
				parsed, err := url.Parse(result.URL)
				if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
					continue
				}
				entry, ok := e.dir.Lookup(parsed.Hostname())
				if !ok {
					continue
				}
				hits[i] = append(hits[i], factcheck.Source{
					Title:     result.Title,
					URL:       result.URL,
					Relevance: entry.Name + " coverage of: " + claim,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return hits
}
