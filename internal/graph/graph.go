package graph

import (
	"math"
	"sort"
	"time"
)

// Quote is the raw, untrusted record a feed source returns. Nothing beyond
// shape is guaranteed; Build validates or drops each one.
type Quote struct {
	SourceID      string
	TokenIn       string
	TokenOut      string
	Price         float64
	FeeBps        float64
	Liquidity     float64
	FetchedAt     time.Time
	Bidirectional bool // source prices both directions with the same book
}

// Edge is the validated, directed form of a Quote.
type Edge struct {
	SourceID  string
	From      string
	To        string
	Price     float64
	FeeBps    float64
	Liquidity float64
	FetchedAt time.Time
}

// Graph is the per-tick adjacency view. Edges lives in insertion-stable
// sorted order so downstream walks are deterministic; Adjacency holds
// indices into Edges.
type Graph struct {
	Edges     []Edge
	Adjacency map[string][]int
}

// Drop reasons counted per tick.
const (
	DropEmptyToken   = "empty_token"
	DropSelfLoop     = "self_loop"
	DropBadPrice     = "bad_price"
	DropBadFee       = "bad_fee"
	DropBadLiquidity = "bad_liquidity"
	DropStale        = "stale"
	DropIlliquid     = "illiquid"
	DropDuplicate    = "duplicate_older"
)

type BuildConfig struct {
	StalenessTTL time.Duration
	MinLiquidity float64
}

type BuildStats struct {
	Ingested int
	Accepted int
	Dropped  map[string]int
}

func (s *BuildStats) drop(reason string) {
	if s.Dropped == nil {
		s.Dropped = map[string]int{}
	}
	s.Dropped[reason]++
}

// Build turns raw quotes into a validated directed graph. Malformed quotes
// are dropped and counted, never fatal. Bidirectional quotes contribute a
// synthetic reverse edge at 1/price. Duplicate (from,to,source) keys keep the
// freshest quote only.
func Build(quotes []Quote, now time.Time, cfg BuildConfig) (*Graph, BuildStats) {
	stats := BuildStats{Ingested: len(quotes), Dropped: map[string]int{}}

	type edgeKey struct{ from, to, source string }
	best := make(map[edgeKey]Edge, len(quotes))

	admit := func(e Edge) {
		k := edgeKey{e.From, e.To, e.SourceID}
		if prev, ok := best[k]; ok {
			if !e.FetchedAt.After(prev.FetchedAt) {
				stats.drop(DropDuplicate)
				return
			}
			stats.drop(DropDuplicate)
		}
		best[k] = e
	}

	for _, q := range quotes {
		e, reason := validate(q, now, cfg)
		if reason != "" {
			stats.drop(reason)
			continue
		}
		admit(e)
		if q.Bidirectional {
			admit(Edge{
				SourceID:  e.SourceID,
				From:      e.To,
				To:        e.From,
				Price:     1 / e.Price,
				FeeBps:    e.FeeBps,
				Liquidity: e.Liquidity,
				FetchedAt: e.FetchedAt,
			})
		}
	}

	g := &Graph{Adjacency: make(map[string][]int)}
	g.Edges = make([]Edge, 0, len(best))
	for _, e := range best {
		g.Edges = append(g.Edges, e)
	}
	// Deterministic edge order regardless of map iteration.
	sort.Slice(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.SourceID < b.SourceID
	})
	for i, e := range g.Edges {
		g.Adjacency[e.From] = append(g.Adjacency[e.From], i)
	}
	stats.Accepted = len(g.Edges)
	return g, stats
}

func validate(q Quote, now time.Time, cfg BuildConfig) (Edge, string) {
	if q.TokenIn == "" || q.TokenOut == "" {
		return Edge{}, DropEmptyToken
	}
	if q.TokenIn == q.TokenOut {
		return Edge{}, DropSelfLoop
	}
	if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return Edge{}, DropBadPrice
	}
	if q.FeeBps < 0 || q.FeeBps > 10000 || math.IsNaN(q.FeeBps) {
		return Edge{}, DropBadFee
	}
	if q.Liquidity < 0 || math.IsNaN(q.Liquidity) || math.IsInf(q.Liquidity, 0) {
		return Edge{}, DropBadLiquidity
	}
	if cfg.StalenessTTL > 0 && now.Sub(q.FetchedAt) > cfg.StalenessTTL {
		return Edge{}, DropStale
	}
	if q.Liquidity < cfg.MinLiquidity {
		return Edge{}, DropIlliquid
	}
	return Edge{
		SourceID:  q.SourceID,
		From:      q.TokenIn,
		To:        q.TokenOut,
		Price:     q.Price,
		FeeBps:    q.FeeBps,
		Liquidity: q.Liquidity,
		FetchedAt: q.FetchedAt,
	}, ""
}

// Out returns the outgoing edge indices for a token.
func (g *Graph) Out(token string) []int {
	return g.Adjacency[token]
}

// Age of the stalest edge among the given indices, relative to now.
func (g *Graph) StalestAge(idx []int, now time.Time) time.Duration {
	var worst time.Duration
	for _, i := range idx {
		if age := now.Sub(g.Edges[i].FetchedAt); age > worst {
			worst = age
		}
	}
	return worst
}
