package cycle

import (
	"cyclarb/internal/graph"
)

type EnumConfig struct {
	BaseAssets      []string
	MinHops         int
	MaxHops         int
	MaxOutDegree    int
	SourceDiversity bool // no source may appear on more than one hop
}

type EnumStats struct {
	CyclesFound int
	Truncations int // times the out-degree cap cut a neighbor list
}

// Enumerate walks the graph from each base asset and returns all closed 2-hop
// and 3-hop cycles within the configured bounds. The walk visits edges in the
// graph's sorted order, so identical edge sets yield identical output. Two
// base assets on the same loop reach the same cycle as rotations of each
// other; only the first-walked rotation is kept.
func Enumerate(g *graph.Graph, cfg EnumConfig) ([]Cycle, EnumStats) {
	var stats EnumStats
	var out []Cycle

	seen := make(map[[3]int]struct{})
	emit := func(c Cycle) {
		sig := edgeSetSig(c.EdgeIdx)
		if _, ok := seen[sig]; ok {
			return
		}
		seen[sig] = struct{}{}
		out = append(out, c)
	}

	for _, base := range cfg.BaseAssets {
		first := capped(g.Out(base), cfg.MaxOutDegree, &stats)
		for _, i1 := range first {
			e1 := g.Edges[i1]
			mid := e1.To
			if mid == base {
				continue
			}

			// Direct 2-hop close: base -> mid -> base.
			if cfg.MinHops <= 2 {
				for _, i2 := range capped(g.Out(mid), cfg.MaxOutDegree, &stats) {
					e2 := g.Edges[i2]
					if e2.To != base {
						continue
					}
					if cfg.SourceDiversity && e2.SourceID == e1.SourceID {
						continue
					}
					emit(Cycle{
						EdgeIdx: []int{i1, i2},
						Tokens:  []string{base, mid, base},
					})
				}
			}

			if cfg.MaxHops < 3 {
				continue
			}

			// Triangular close: base -> mid -> second -> base, second being a
			// distinct, non-base token.
			for _, i2 := range capped(g.Out(mid), cfg.MaxOutDegree, &stats) {
				e2 := g.Edges[i2]
				second := e2.To
				if second == base || second == mid {
					continue
				}
				for _, i3 := range capped(g.Out(second), cfg.MaxOutDegree, &stats) {
					e3 := g.Edges[i3]
					if e3.To != base {
						continue
					}
					if repeatsEdge(e1, e2, e3) {
						continue
					}
					if cfg.SourceDiversity && !diverse(e1.SourceID, e2.SourceID, e3.SourceID) {
						continue
					}
					emit(Cycle{
						EdgeIdx: []int{i1, i2, i3},
						Tokens:  []string{base, mid, second, base},
					})
				}
			}
		}
	}
	stats.CyclesFound = len(out)
	return out, stats
}

// edgeSetSig is the rotation-invariant identity of a cycle: its edge indices
// in ascending order, padded with -1 for 2-hop cycles.
func edgeSetSig(idx []int) [3]int {
	sig := [3]int{-1, -1, -1}
	copy(sig[:], idx)
	if sig[0] > sig[1] {
		sig[0], sig[1] = sig[1], sig[0]
	}
	if sig[1] > sig[2] && sig[2] != -1 {
		sig[1], sig[2] = sig[2], sig[1]
	}
	if sig[0] > sig[1] {
		sig[0], sig[1] = sig[1], sig[0]
	}
	return sig
}

// capped truncates a neighbor list at the out-degree limit. The list is
// already sorted, so truncation is deterministic.
func capped(idx []int, limit int, stats *EnumStats) []int {
	if limit > 0 && len(idx) > limit {
		stats.Truncations++
		return idx[:limit]
	}
	return idx
}

// repeatsEdge rejects any repeated (token, direction) pair within a cycle.
// With distinct interior tokens this is mostly a safety net against aliasing
// in malformed graphs.
func repeatsEdge(edges ...graph.Edge) bool {
	type dir struct{ from, to string }
	seen := make(map[dir]struct{}, len(edges))
	for _, e := range edges {
		d := dir{e.From, e.To}
		if _, ok := seen[d]; ok {
			return true
		}
		seen[d] = struct{}{}
	}
	return false
}

func diverse(sources ...string) bool {
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			return false
		}
		seen[s] = struct{}{}
	}
	return true
}
