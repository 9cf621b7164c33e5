// Package cycle enumerates closed 2-hop and 3-hop trading cycles over the
// per-tick price graph.
package cycle

import (
	"strings"

	"cyclarb/internal/graph"
)

// Cycle is an ordered list of edge indices into the tick's graph arena.
// Tokens holds the full token sequence including the closing base, so a
// 2-hop cycle is [base, mid, base] and a triangle [base, m1, m2, base].
type Cycle struct {
	EdgeIdx []int
	Tokens  []string
}

func (c Cycle) Hops() int { return len(c.EdgeIdx) }

// Key is the canonical, direction-sensitive path signature. Rotations of
// the same loop share one key: the sequence is rooted at its
// lexicographically smallest token, so SOL>USDC>SOL and USDC>SOL>USDC both
// name the loop SOL>USDC>SOL.
func (c Cycle) Key() string {
	return canonicalKey(c.Tokens[:len(c.Tokens)-1])
}

// ReverseKey is the signature of the same loop walked in the opposite
// direction, used by the oscillation rule. For 2-hop loops the reverse walk
// is a rotation of the forward one, so ReverseKey equals Key there.
func (c Cycle) ReverseKey() string {
	loop := c.Tokens[:len(c.Tokens)-1]
	rev := make([]string, len(loop))
	rev[0] = loop[0]
	for i := 1; i < len(loop); i++ {
		rev[i] = loop[len(loop)-i]
	}
	return canonicalKey(rev)
}

// canonicalKey rotates the open loop to start at its smallest token, closes
// it and joins with ">". Interior tokens are unique, so the root is
// unambiguous.
func canonicalKey(loop []string) string {
	root := 0
	for i, t := range loop {
		if t < loop[root] {
			root = i
		}
	}
	out := make([]string, 0, len(loop)+1)
	out = append(out, loop[root:]...)
	out = append(out, loop[:root]...)
	out = append(out, loop[root])
	return strings.Join(out, ">")
}

// Sources returns the distinct source ids used across hops.
func (c Cycle) Sources(g *graph.Graph) map[string]struct{} {
	out := make(map[string]struct{}, len(c.EdgeIdx))
	for _, i := range c.EdgeIdx {
		out[g.Edges[i].SourceID] = struct{}{}
	}
	return out
}
