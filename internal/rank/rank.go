// Package rank filters and orders guarded opportunities into the final
// per-tick sequence.
package rank

import (
	"sort"

	"cyclarb/internal/profit"
)

type Config struct {
	MinNetProfit  float64
	MinConfidence float64
	MaxEmitted    int // 0 = unlimited
}

// Drop reasons for ranked-out candidates.
const (
	DropBelowMinProfit     = "below_min_profit"
	DropBelowMinConfidence = "below_min_confidence"
)

type Stats struct {
	In      int
	Out     int
	Dropped map[string]int
}

// Rank produces a deterministic sequence: net profit desc, confidence desc,
// fewer hops first, path key as the final tiebreak.
func Rank(opps []profit.Opportunity, cfg Config) ([]profit.Opportunity, Stats) {
	stats := Stats{In: len(opps), Dropped: map[string]int{}}
	kept := make([]profit.Opportunity, 0, len(opps))
	for _, o := range opps {
		switch {
		case o.NetProfit < cfg.MinNetProfit:
			stats.Dropped[DropBelowMinProfit]++
		case o.Confidence < cfg.MinConfidence:
			stats.Dropped[DropBelowMinConfidence]++
		default:
			kept = append(kept, o)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.NetProfit != b.NetProfit {
			return a.NetProfit > b.NetProfit
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.HopCount() != b.HopCount() {
			return a.HopCount() < b.HopCount()
		}
		return a.PathKey < b.PathKey
	})

	if cfg.MaxEmitted > 0 && len(kept) > cfg.MaxEmitted {
		kept = kept[:cfg.MaxEmitted]
	}
	stats.Out = len(kept)
	return kept, stats
}
