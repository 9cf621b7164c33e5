package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	TickDurationMs  = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "tick_duration_ms", Help: "Full discovery tick latency", Buckets: prometheus.LinearBuckets(5, 25, 20)})
	FetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "fetch_duration_ms", Help: "Quote fan-out latency", Buckets: prometheus.LinearBuckets(5, 25, 20)})

	QuotesIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "quotes_ingested_total", Help: "Raw quotes received from feed sources"})
	QuotesDroppedTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quotes_dropped_total", Help: "Quotes rejected at the graph boundary by reason"}, []string{"reason"})
	FeedErrorsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_errors_total", Help: "Source fetch failures by source"}, []string{"source"})
	EdgesActive         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "edges_active", Help: "Validated edges in the current tick graph"})

	CyclesEnumeratedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "cycles_enumerated_total", Help: "Closed cycles produced by the enumerator"})
	EnumTruncationsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "enum_truncations_total", Help: "Times the out-degree cap truncated the walk"})
	CandidatesScoredTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "candidates_scored_total", Help: "Cycles evaluated by the profit calculator"})
	CandidatesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "candidates_dropped_total", Help: "Scored candidates dropped before ranking by reason"}, []string{"reason"})

	GuardRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "guard_rejections_total", Help: "Anti-circular guard rejections by rule"}, []string{"rule"})
	LedgerEntries        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "ledger_entries", Help: "Live entries in the opportunity ledger"})
	LedgerRollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_rollbacks_total", Help: "Provisional ledger entries rolled back on failed execution"})

	OpportunitiesEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "opportunities_emitted_total", Help: "Opportunities surviving guard and ranking"})
	OpportunityNetProfit      = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "opportunity_net_profit", Help: "Net profit per emitted opportunity (base units)", Buckets: prometheus.ExponentialBuckets(0.001, 2, 16)})
	OpportunityConfidence     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "opportunity_confidence", Help: "Confidence score per emitted opportunity", Buckets: prometheus.LinearBuckets(0, 0.05, 21)})

	ExecutionsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "executions_total", Help: "Execution feedback by outcome"}, []string{"outcome"})
	RealizedNetProfit = prometheus.NewGauge(prometheus.GaugeOpts{Name: "realized_net_profit", Help: "Cumulative realized net profit reported by the executor"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		TickDurationMs, FetchDurationMs,
		QuotesIngestedTotal, QuotesDroppedTotal, FeedErrorsTotal, EdgesActive,
		CyclesEnumeratedTotal, EnumTruncationsTotal, CandidatesScoredTotal, CandidatesDroppedTotal,
		GuardRejectionsTotal, LedgerEntries, LedgerRollbacksTotal,
		OpportunitiesEmittedTotal, OpportunityNetProfit, OpportunityConfidence,
		ExecutionsTotal, RealizedNetProfit,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
