// Package profit scores enumerated cycles with a fee and slippage aware
// model and assigns a confidence score to each surviving candidate.
package profit

import (
	"time"

	"github.com/google/uuid"

	"cyclarb/internal/cycle"
	"cyclarb/internal/graph"
)

// Hop is one executed trade within an opportunity, carried downstream so the
// execution collaborator knows which source to route each leg to.
type Hop struct {
	From      string
	To        string
	SourceID  string
	Price     float64
	FeeBps    float64
	Liquidity float64
}

// Opportunity only exists with NetProfit > 0 and Confidence in [0,1].
type Opportunity struct {
	ID           string
	PathKey      string
	ReverseKey   string
	Hops         []Hop
	TradeSize    float64
	GrossProfit  float64
	TotalFees    float64
	NetProfit    float64
	Confidence   float64
	DiscoveredAt time.Time
}

func (o Opportunity) HopCount() int { return len(o.Hops) }

// Drop reasons for scored candidates.
const (
	DropUnprofitable = "unprofitable"
	DropNoSize       = "no_viable_size"
)

type Config struct {
	Impact            ImpactFunc
	SizingPolicy      string // "sweep" or "search"
	TradeSizes        []float64
	MinSize           float64
	MaxSize           float64
	FixedNetworkCost  float64
	MEVProtectionCost float64
	LiquidityWeight   float64
	FreshnessWeight   float64
	DiversityWeight   float64
	StalenessTTL      time.Duration
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.Impact == nil {
		cfg.Impact = ConstantProduct
	}
	return &Calculator{cfg: cfg}
}

// FinalOutput simulates the full cycle at the given trade size and returns
// the base-asset amount coming out of the last hop, fees and impact applied
// per hop.
func (c *Calculator) FinalOutput(g *graph.Graph, cyc cycle.Cycle, size float64) float64 {
	return c.simulate(g, cyc, size, true)
}

func (c *Calculator) simulate(g *graph.Graph, cyc cycle.Cycle, size float64, withFees bool) float64 {
	amount := size
	for _, i := range cyc.EdgeIdx {
		e := g.Edges[i]
		amount *= e.Price
		if withFees {
			amount *= 1 - e.FeeBps/10000
			amount *= 1 - c.cfg.Impact(size, e.Liquidity)
		}
		if amount <= 0 {
			return 0
		}
	}
	return amount
}

// NetAtSize returns net profit for the cycle at one trade size.
func (c *Calculator) NetAtSize(g *graph.Graph, cyc cycle.Cycle, size float64) float64 {
	gross := c.FinalOutput(g, cyc, size) - size
	return gross - c.cfg.FixedNetworkCost - c.cfg.MEVProtectionCost
}

// Evaluate scores a cycle under the configured sizing policy. The second
// return is a drop reason when no positive-net opportunity exists.
func (c *Calculator) Evaluate(g *graph.Graph, cyc cycle.Cycle, now time.Time) (Opportunity, string) {
	size, net, ok := c.bestSize(g, cyc)
	if !ok {
		return Opportunity{}, DropNoSize
	}
	if net <= 0 {
		return Opportunity{}, DropUnprofitable
	}

	gross := c.FinalOutput(g, cyc, size) - size
	feeFree := c.simulate(g, cyc, size, false) - size
	hopFees := feeFree - gross // fee+impact cost expressed in base units
	if hopFees < 0 {
		hopFees = 0
	}

	hops := make([]Hop, 0, cyc.Hops())
	for _, i := range cyc.EdgeIdx {
		e := g.Edges[i]
		hops = append(hops, Hop{
			From:      e.From,
			To:        e.To,
			SourceID:  e.SourceID,
			Price:     e.Price,
			FeeBps:    e.FeeBps,
			Liquidity: e.Liquidity,
		})
	}

	return Opportunity{
		ID:           uuid.NewString(),
		PathKey:      cyc.Key(),
		ReverseKey:   cyc.ReverseKey(),
		Hops:         hops,
		TradeSize:    size,
		GrossProfit:  gross,
		TotalFees:    hopFees + c.cfg.FixedNetworkCost + c.cfg.MEVProtectionCost,
		NetProfit:    net,
		Confidence:   c.confidence(g, cyc, size, now),
		DiscoveredAt: now,
	}, ""
}

func (c *Calculator) bestSize(g *graph.Graph, cyc cycle.Cycle) (size, net float64, ok bool) {
	switch c.cfg.SizingPolicy {
	case "search":
		return c.searchSize(g, cyc)
	default:
		return c.sweepSize(g, cyc)
	}
}

func (c *Calculator) sweepSize(g *graph.Graph, cyc cycle.Cycle) (float64, float64, bool) {
	bestNet := 0.0
	bestSize := 0.0
	found := false
	for _, s := range c.cfg.TradeSizes {
		if s <= 0 {
			continue
		}
		n := c.NetAtSize(g, cyc, s)
		if !found || n > bestNet {
			bestNet, bestSize, found = n, s, true
		}
	}
	return bestSize, bestNet, found
}

// searchSize ternary-searches the unimodal net-profit curve over
// [MinSize, MaxSize].
func (c *Calculator) searchSize(g *graph.Graph, cyc cycle.Cycle) (float64, float64, bool) {
	lo, hi := c.cfg.MinSize, c.cfg.MaxSize
	if lo <= 0 || hi <= lo {
		return 0, 0, false
	}
	for i := 0; i < 100 && hi-lo > 1e-9*hi; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if c.NetAtSize(g, cyc, m1) < c.NetAtSize(g, cyc, m2) {
			lo = m1
		} else {
			hi = m2
		}
	}
	size := (lo + hi) / 2
	return size, c.NetAtSize(g, cyc, size), true
}

// confidence combines liquidity headroom, edge freshness and source
// diversity with the configured weights, each term clamped to [0,1].
func (c *Calculator) confidence(g *graph.Graph, cyc cycle.Cycle, size float64, now time.Time) float64 {
	liq := 1.0
	for _, i := range cyc.EdgeIdx {
		if h := 1 - c.cfg.Impact(size, g.Edges[i].Liquidity); h < liq {
			liq = h
		}
	}

	fresh := 1.0
	if c.cfg.StalenessTTL > 0 {
		age := g.StalestAge(cyc.EdgeIdx, now)
		fresh = 1 - float64(age)/float64(c.cfg.StalenessTTL)
	}

	div := float64(len(cyc.Sources(g))) / float64(cyc.Hops())

	wSum := c.cfg.LiquidityWeight + c.cfg.FreshnessWeight + c.cfg.DiversityWeight
	if wSum <= 0 {
		return 0
	}
	score := (c.cfg.LiquidityWeight*clamp01(liq) +
		c.cfg.FreshnessWeight*clamp01(fresh) +
		c.cfg.DiversityWeight*clamp01(div)) / wSum
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
