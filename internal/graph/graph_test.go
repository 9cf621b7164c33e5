package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func validQuote(src, in, out string, price float64) Quote {
	return Quote{
		SourceID:  src,
		TokenIn:   in,
		TokenOut:  out,
		Price:     price,
		FeeBps:    25,
		Liquidity: 100000,
		FetchedAt: t0,
	}
}

func buildCfg() BuildConfig {
	return BuildConfig{StalenessTTL: 10 * time.Second, MinLiquidity: 1000}
}

func TestBuildAcceptsValidQuotes(t *testing.T) {
	quotes := []Quote{
		validQuote("raydium", "SOL", "USDC", 150),
		validQuote("orca", "USDC", "SOL", 1.0/150),
	}
	g, stats := Build(quotes, t0, buildCfg())
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 2, stats.Ingested)
	assert.Equal(t, 2, stats.Accepted)
	assert.Len(t, g.Out("SOL"), 1)
	assert.Len(t, g.Out("USDC"), 1)
}

func TestBuildDropsMalformed(t *testing.T) {
	bad := []Quote{
		{SourceID: "x", TokenIn: "", TokenOut: "USDC", Price: 1, FetchedAt: t0},
		{SourceID: "x", TokenIn: "SOL", TokenOut: "SOL", Price: 1, FetchedAt: t0},
		{SourceID: "x", TokenIn: "SOL", TokenOut: "USDC", Price: -5, FetchedAt: t0},
		{SourceID: "x", TokenIn: "SOL", TokenOut: "USDC", Price: math.NaN(), FetchedAt: t0},
		{SourceID: "x", TokenIn: "SOL", TokenOut: "USDC", Price: 1, FeeBps: 10001, FetchedAt: t0},
		{SourceID: "x", TokenIn: "SOL", TokenOut: "USDC", Price: 1, Liquidity: -1, FetchedAt: t0},
	}
	g, stats := Build(bad, t0, BuildConfig{})
	assert.Empty(t, g.Edges)
	assert.Equal(t, 1, stats.Dropped[DropEmptyToken])
	assert.Equal(t, 1, stats.Dropped[DropSelfLoop])
	assert.Equal(t, 2, stats.Dropped[DropBadPrice])
	assert.Equal(t, 1, stats.Dropped[DropBadFee])
	assert.Equal(t, 1, stats.Dropped[DropBadLiquidity])
}

func TestBuildDropsStaleAndIlliquid(t *testing.T) {
	stale := validQuote("raydium", "SOL", "USDC", 150)
	stale.FetchedAt = t0.Add(-time.Minute)
	thin := validQuote("orca", "SOL", "RAY", 60)
	thin.Liquidity = 10

	g, stats := Build([]Quote{stale, thin}, t0, buildCfg())
	assert.Empty(t, g.Edges)
	assert.Equal(t, 1, stats.Dropped[DropStale])
	assert.Equal(t, 1, stats.Dropped[DropIlliquid])
}

func TestBuildDedupeKeepsFreshest(t *testing.T) {
	older := validQuote("raydium", "SOL", "USDC", 149)
	older.FetchedAt = t0.Add(-2 * time.Second)
	newer := validQuote("raydium", "SOL", "USDC", 151)

	g, stats := Build([]Quote{older, newer}, t0, buildCfg())
	require.Len(t, g.Edges, 1)
	assert.Equal(t, 151.0, g.Edges[0].Price)
	assert.Equal(t, 1, stats.Dropped[DropDuplicate])

	// Same pair from a different source is not a duplicate.
	other := validQuote("orca", "SOL", "USDC", 150)
	g, _ = Build([]Quote{newer, other}, t0, buildCfg())
	assert.Len(t, g.Edges, 2)
}

func TestBuildBidirectionalSynthesizesReverse(t *testing.T) {
	q := validQuote("raydium", "SOL", "USDC", 150)
	q.Bidirectional = true
	g, _ := Build([]Quote{q}, t0, buildCfg())
	require.Len(t, g.Edges, 2)

	rev := g.Edges[g.Out("USDC")[0]]
	assert.Equal(t, "SOL", rev.To)
	assert.InDelta(t, 1.0/150, rev.Price, 1e-12)
	assert.Equal(t, q.FeeBps, rev.FeeBps)
}

func TestBuildDeterministicOrder(t *testing.T) {
	quotes := []Quote{
		validQuote("orca", "USDC", "RAY", 0.4),
		validQuote("raydium", "SOL", "USDC", 150),
		validQuote("jupiter", "SOL", "USDC", 150.2),
		validQuote("raydium", "RAY", "SOL", 0.016),
	}
	g1, _ := Build(quotes, t0, buildCfg())

	// Reversed input order must produce the identical edge slice.
	rev := make([]Quote, len(quotes))
	for i, q := range quotes {
		rev[len(quotes)-1-i] = q
	}
	g2, _ := Build(rev, t0, buildCfg())
	assert.Equal(t, g1.Edges, g2.Edges)
}

func TestStalestAge(t *testing.T) {
	fresh := validQuote("a", "SOL", "USDC", 150)
	old := validQuote("b", "USDC", "SOL", 1.0/150)
	old.FetchedAt = t0.Add(-5 * time.Second)
	g, _ := Build([]Quote{fresh, old}, t0, buildCfg())
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 5*time.Second, g.StalestAge([]int{0, 1}, t0))
}
