// Package engine drives the discovery loop: fetch quotes, rebuild the price
// graph, enumerate and score cycles, admit survivors through the guard and
// hand the ranked result to the execution collaborator.
package engine

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cyclarb/internal/config"
	"cyclarb/internal/cycle"
	"cyclarb/internal/feed"
	"cyclarb/internal/graph"
	"cyclarb/internal/guard"
	"cyclarb/internal/infra/metrics"
	"cyclarb/internal/profit"
	"cyclarb/internal/rank"
)

type Engine struct {
	cfg     config.Config
	fetcher *feed.Fetcher
	calc    *profit.Calculator
	guard   *guard.Guard
	exec    Executor
	log     zerolog.Logger

	onTick func(TickReport)

	mu   sync.RWMutex
	last TickReport
}

// New wires the discovery pipeline. exec may be nil when execution is
// disabled; emitted opportunities then wait for external ApplyFeedback calls.
func New(cfg config.Config, sources []feed.Source, store guard.Store, exec Executor, log zerolog.Logger) *Engine {
	impact, ok := profit.ImpactByName(cfg.Profit.ImpactModel, cfg.Profit.ImpactCoef)
	if !ok {
		impact = profit.ConstantProduct
	}
	calc := profit.NewCalculator(profit.Config{
		Impact:            impact,
		SizingPolicy:      cfg.Profit.SizingPolicy,
		TradeSizes:        cfg.Profit.TradeSizes,
		MinSize:           cfg.Profit.MinSize,
		MaxSize:           cfg.Profit.MaxSize,
		FixedNetworkCost:  cfg.Profit.FixedNetworkCost,
		MEVProtectionCost: cfg.Profit.MEVProtectionCost,
		LiquidityWeight:   cfg.Profit.LiquidityWeight,
		FreshnessWeight:   cfg.Profit.FreshnessWeight,
		DiversityWeight:   cfg.Profit.DiversityWeight,
		StalenessTTL:      cfg.StalenessTTL(),
	})
	fetcher := feed.NewFetcher(feed.FetcherConfig{
		MaxConcurrency: cfg.Feed.MaxConcurrency,
		SourceTimeout:  cfg.SourceTimeout(),
		RatePerSec:     cfg.Feed.SourceRatePerSec,
		RateBurst:      cfg.Feed.SourceRateBurst,
	}, sources, log)
	grd := guard.New(store, guard.Config{
		MaxSameTokenRepeats: cfg.Guard.MaxSameTokenRepeats,
		Cooldown:            cfg.CooldownWindow(),
		Oscillation:         cfg.OscillationWindow(),
		Retention:           cfg.RetentionWindow(),
	})
	return &Engine{cfg: cfg, fetcher: fetcher, calc: calc, guard: grd, exec: exec, log: log}
}

// OnTick registers a callback invoked after every completed tick. Set it
// before Run starts.
func (e *Engine) OnTick(fn func(TickReport)) { e.onTick = fn }

// LastReport returns the most recent tick summary.
func (e *Engine) LastReport() TickReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// LedgerSize reports the current number of ledger entries.
func (e *Engine) LedgerSize(ctx context.Context) int {
	return e.guard.LedgerSize(ctx)
}

// ApplyFeedback settles a reserved ledger entry after the consumer reports
// the execution outcome. A failed execution reopens the path immediately.
func (e *Engine) ApplyFeedback(ctx context.Context, pathKey string, success bool) error {
	if err := e.guard.Feedback(ctx, pathKey, success); err != nil {
		return err
	}
	if !success {
		metrics.LedgerRollbacksTotal.Inc()
	}
	return nil
}

// Run executes ticks on the configured interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.cfg.TickInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			tctx, cancel := context.WithTimeout(ctx, e.cfg.CycleTimeout())
			rep := e.Tick(tctx, time.Now())
			cancel()
			e.log.Info().
				Int("edges", rep.Edges).
				Int("cycles", rep.CyclesEnumerated).
				Int("emitted", len(rep.Emitted)).
				Int64("duration_ms", rep.DurationMs).
				Msg("tick complete")
		}
	}
}

// Tick runs one full discovery pass. The same quotes and ledger state always
// produce the same report, byte for byte apart from opportunity IDs.
func (e *Engine) Tick(ctx context.Context, now time.Time) TickReport {
	start := time.Now()
	rep := TickReport{At: now}

	quotes, fstats := e.fetcher.FetchAll(ctx)
	rep.Sources = fstats.Sources
	rep.SourceFailures = fstats.Failed
	rep.QuotesIngested = fstats.Ingested

	g, bstats := graph.Build(quotes, now, graph.BuildConfig{
		StalenessTTL: e.cfg.StalenessTTL(),
		MinLiquidity: e.cfg.Feed.MinLiquidity,
	})
	rep.QuotesDropped = bstats.Dropped
	rep.Edges = len(g.Edges)
	for reason, n := range bstats.Dropped {
		metrics.QuotesDroppedTotal.WithLabelValues(reason).Add(float64(n))
	}
	metrics.EdgesActive.Set(float64(len(g.Edges)))

	cycles, estats := cycle.Enumerate(g, cycle.EnumConfig{
		BaseAssets:      e.cfg.Discovery.BaseAssets,
		MinHops:         e.cfg.Discovery.MinHops,
		MaxHops:         e.cfg.Discovery.MaxHops,
		MaxOutDegree:    e.cfg.Discovery.MaxOutDegree,
		SourceDiversity: e.cfg.Discovery.SourceDiversity,
	})
	rep.CyclesEnumerated = estats.CyclesFound
	rep.EnumTruncations = estats.Truncations
	metrics.CyclesEnumeratedTotal.Add(float64(estats.CyclesFound))
	metrics.EnumTruncationsTotal.Add(float64(estats.Truncations))

	candidates, dropped := e.score(ctx, g, cycles, now)
	rep.CandidatesScored = len(cycles)
	rep.CandidatesDropped = dropped
	metrics.CandidatesScoredTotal.Add(float64(len(cycles)))
	for reason, n := range dropped {
		metrics.CandidatesDroppedTotal.WithLabelValues(reason).Add(float64(n))
	}

	ranked, rstats := rank.Rank(candidates, rank.Config{
		MinNetProfit:  e.cfg.Ranking.MinNetProfit,
		MinConfidence: e.cfg.Ranking.MinConfidence,
		MaxEmitted:    e.cfg.Ranking.MaxEmitted,
	})
	rep.RankDropped = rstats.Dropped

	rep.GuardRejections = map[string]int{}
	emitted := make([]profit.Opportunity, 0, len(ranked))
	for _, opp := range ranked {
		reason, err := e.guard.Admit(ctx, opp, now)
		if err != nil {
			e.log.Error().Err(err).Str("path", opp.PathKey).Msg("ledger reserve failed")
			continue
		}
		if reason != "" {
			rep.GuardRejections[reason]++
			metrics.GuardRejectionsTotal.WithLabelValues(reason).Inc()
			continue
		}
		emitted = append(emitted, opp)
		metrics.OpportunitiesEmittedTotal.Inc()
		metrics.OpportunityNetProfit.Observe(opp.NetProfit)
		metrics.OpportunityConfidence.Observe(opp.Confidence)
	}
	rep.Emitted = emitted

	if e.cfg.Execution.Enabled && e.exec != nil {
		e.dispatch(ctx, emitted, &rep)
	}

	if _, err := e.guard.PruneExpired(ctx, now); err != nil {
		e.log.Warn().Err(err).Msg("ledger prune failed")
	}
	rep.LedgerSize = e.guard.LedgerSize(ctx)
	metrics.LedgerEntries.Set(float64(rep.LedgerSize))

	rep.DurationMs = time.Since(start).Milliseconds()
	metrics.TickDurationMs.Observe(float64(rep.DurationMs))

	e.mu.Lock()
	e.last = rep
	e.mu.Unlock()
	if e.onTick != nil {
		e.onTick(rep)
	}
	return rep
}

// score evaluates every cycle across the worker pool. Results land in a
// slice indexed by cycle position, so candidate order only depends on
// enumeration order.
func (e *Engine) score(ctx context.Context, g *graph.Graph, cycles []cycle.Cycle, now time.Time) ([]profit.Opportunity, map[string]int) {
	type scored struct {
		opp    profit.Opportunity
		reason string
	}
	results := make([]scored, len(cycles))

	workers := e.cfg.Discovery.ScoreWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	wg, _ := errgroup.WithContext(ctx)
	wg.SetLimit(workers)
	for i := range cycles {
		i := i
		wg.Go(func() error {
			opp, reason := e.calc.Evaluate(g, cycles[i], now)
			results[i] = scored{opp: opp, reason: reason}
			return nil
		})
	}
	_ = wg.Wait()

	dropped := map[string]int{}
	out := make([]profit.Opportunity, 0, len(cycles))
	for _, r := range results {
		if r.reason != "" {
			dropped[r.reason]++
			continue
		}
		out = append(out, r.opp)
	}
	return out, dropped
}

func (e *Engine) dispatch(ctx context.Context, emitted []profit.Opportunity, rep *TickReport) {
	for _, opp := range emitted {
		res, err := e.exec.Execute(ctx, opp)
		success := err == nil && res.Success
		if ferr := e.ApplyFeedback(ctx, opp.PathKey, success); ferr != nil {
			e.log.Error().Err(ferr).Str("path", opp.PathKey).Msg("ledger feedback failed")
		}
		if success {
			rep.Executed++
			rep.RealizedProfit += res.Realized
			metrics.ExecutionsTotal.WithLabelValues("success").Inc()
			metrics.RealizedNetProfit.Add(res.Realized)
		} else {
			rep.ExecFailed++
			metrics.ExecutionsTotal.WithLabelValues("failure").Inc()
			if err != nil {
				e.log.Warn().Err(err).Str("path", opp.PathKey).Msg("execution failed")
			}
		}
	}
}
