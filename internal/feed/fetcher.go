package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cyclarb/internal/graph"
	"cyclarb/internal/infra/metrics"
)

type FetcherConfig struct {
	MaxConcurrency int
	SourceTimeout  time.Duration
	RatePerSec     float64 // 0 = unlimited
	RateBurst      int
}

// Fetcher fans Fetch calls out across all registered sources. One failing
// source never discards the batches the others returned.
type Fetcher struct {
	cfg     FetcherConfig
	sources []Source
	limits  map[string]*rate.Limiter
	log     zerolog.Logger
}

type FetchStats struct {
	Sources  int
	Failed   int
	Ingested int
	Errors   map[string]string
}

func NewFetcher(cfg FetcherConfig, sources []Source, log zerolog.Logger) *Fetcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	limits := make(map[string]*rate.Limiter, len(sources))
	if cfg.RatePerSec > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		for _, s := range sources {
			limits[s.Name()] = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
		}
	}
	return &Fetcher{cfg: cfg, sources: sources, limits: limits, log: log}
}

// FetchAll runs one fan-out round and returns every quote the sources
// produced, concatenated in registration order.
func (f *Fetcher) FetchAll(ctx context.Context) ([]graph.Quote, FetchStats) {
	start := time.Now()
	stats := FetchStats{Sources: len(f.sources), Errors: map[string]string{}}
	batches := make([][]graph.Quote, len(f.sources))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxConcurrency)
	for i, src := range f.sources {
		i, src := i, src
		g.Go(func() error {
			if lim := f.limits[src.Name()]; lim != nil {
				if err := lim.Wait(gctx); err != nil {
					mu.Lock()
					stats.Failed++
					stats.Errors[src.Name()] = err.Error()
					mu.Unlock()
					return nil
				}
			}
			sctx := gctx
			if f.cfg.SourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, f.cfg.SourceTimeout)
				defer cancel()
			}
			quotes, err := src.Fetch(sctx)
			mu.Lock()
			defer mu.Unlock()
			batches[i] = quotes
			if err != nil {
				stats.Failed++
				stats.Errors[src.Name()] = err.Error()
				metrics.FeedErrorsTotal.WithLabelValues(src.Name()).Inc()
				f.log.Warn().Err(err).Str("source", src.Name()).Msg("source fetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []graph.Quote
	for _, b := range batches {
		out = append(out, b...)
	}
	stats.Ingested = len(out)
	metrics.QuotesIngestedTotal.Add(float64(len(out)))
	metrics.FetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	return out, stats
}
