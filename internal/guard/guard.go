package guard

import (
	"context"
	"sync"
	"time"

	"cyclarb/internal/profit"
)

// Rejection reasons, exposed in per-tick summaries.
const (
	RejectTokenRepeat = "token_repeat"
	RejectCooldown    = "path_cooldown"
	RejectOscillation = "oscillation"
)

type Config struct {
	MaxSameTokenRepeats int
	Cooldown            time.Duration
	Oscillation         time.Duration
	Retention           time.Duration
}

// Guard applies the anti-circular rules against an injected ledger store.
// Admit both checks and reserves under one lock, so a burst of same-tick
// opportunities cannot collectively slip past the cooldown.
type Guard struct {
	mu    sync.Mutex
	store Store
	cfg   Config
}

func New(store Store, cfg Config) *Guard {
	return &Guard{store: store, cfg: cfg}
}

// Admit returns an empty reason and writes a provisional ledger entry when
// the opportunity passes all rules; otherwise it returns the rule that fired.
func (g *Guard) Admit(ctx context.Context, opp profit.Opportunity, now time.Time) (string, error) {
	if reason := g.checkTokenRepeats(opp); reason != "" {
		return reason, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	path, ok, err := g.store.Get(ctx, opp.PathKey)
	if err != nil {
		return "", err
	}
	if ok && now.Sub(path.LastSeen) < g.cfg.Cooldown {
		return RejectCooldown, nil
	}

	if opp.ReverseKey == opp.PathKey {
		// A 2-hop loop walked backwards is a rotation of itself and shares
		// the canonical path key, so the reversal window applies to the
		// path's own entry.
		if ok && now.Sub(path.LastSeen) < g.cfg.Oscillation {
			return RejectOscillation, nil
		}
	} else if e, ok, err := g.store.Get(ctx, opp.ReverseKey); err != nil {
		return "", err
	} else if ok && now.Sub(e.LastSeen) < g.cfg.Oscillation {
		return RejectOscillation, nil
	}

	if err := g.store.Reserve(ctx, opp.PathKey, now); err != nil {
		return "", err
	}
	return "", nil
}

// checkTokenRepeats is the safety net: no non-base token may appear more
// than the configured number of times inside the cycle.
func (g *Guard) checkTokenRepeats(opp profit.Opportunity) string {
	if len(opp.Hops) == 0 {
		return RejectTokenRepeat
	}
	base := opp.Hops[0].From
	counts := make(map[string]int, len(opp.Hops))
	for _, h := range opp.Hops[1:] {
		if h.From == base {
			continue
		}
		counts[h.From]++
		if counts[h.From] > g.cfg.MaxSameTokenRepeats {
			return RejectTokenRepeat
		}
	}
	return ""
}

// Feedback settles the provisional entry for a path: confirmed on success,
// rolled back on failure so the path becomes proposable again.
func (g *Guard) Feedback(ctx context.Context, pathKey string, success bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if success {
		return g.store.Commit(ctx, pathKey)
	}
	return g.store.Rollback(ctx, pathKey)
}

// PruneExpired drops entries not seen within the retention window.
func (g *Guard) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Prune(ctx, now.Add(-g.cfg.Retention))
}

// LedgerSize reports the live entry count for metrics.
func (g *Guard) LedgerSize(ctx context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.store.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}
