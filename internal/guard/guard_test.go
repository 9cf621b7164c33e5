package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclarb/internal/profit"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func guardCfg() Config {
	return Config{
		MaxSameTokenRepeats: 1,
		Cooldown:            30 * time.Second,
		Oscillation:         30 * time.Second,
		Retention:           10 * time.Minute,
	}
}

func opp(tokens ...string) profit.Opportunity {
	hops := make([]profit.Hop, 0, len(tokens)-1)
	for i := 0; i < len(tokens)-1; i++ {
		hops = append(hops, profit.Hop{From: tokens[i], To: tokens[i+1], SourceID: "alpha"})
	}
	key := tokens[0]
	for _, t := range tokens[1:] {
		key += ">" + t
	}
	rev := tokens[len(tokens)-1]
	for i := len(tokens) - 2; i >= 0; i-- {
		rev += ">" + tokens[i]
	}
	return profit.Opportunity{PathKey: key, ReverseKey: rev, Hops: hops, NetProfit: 1, Confidence: 1}
}

func TestAdmitThenCooldownReject(t *testing.T) {
	g := New(NewMemoryStore(), guardCfg())
	ctx := context.Background()

	o := opp("SOL", "USDC", "RAY", "SOL")
	reason, err := g.Admit(ctx, o, t0)
	require.NoError(t, err)
	assert.Empty(t, reason)

	// Same path a moment later is inside the cooldown window.
	reason, err = g.Admit(ctx, o, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectCooldown, reason)

	// Past the window it is proposable again.
	reason, err = g.Admit(ctx, o, t0.Add(31*time.Second))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

func TestAdmitRejectsOscillation(t *testing.T) {
	g := New(NewMemoryStore(), guardCfg())
	ctx := context.Background()

	fwd := opp("SOL", "USDC", "RAY", "SOL")
	reason, err := g.Admit(ctx, fwd, t0)
	require.NoError(t, err)
	require.Empty(t, reason)

	rev := opp("SOL", "RAY", "USDC", "SOL")
	reason, err = g.Admit(ctx, rev, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectOscillation, reason)

	reason, err = g.Admit(ctx, rev, t0.Add(31*time.Second))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

// A 2-hop loop reversed is the same canonical path, so proposing the
// reversal inside the oscillation window is rejected even once the cooldown
// has lapsed.
func TestAdmitRejectsTwoHopReversal(t *testing.T) {
	cfg := guardCfg()
	cfg.Cooldown = 5 * time.Second
	cfg.Oscillation = 30 * time.Second
	g := New(NewMemoryStore(), cfg)
	ctx := context.Background()

	fwd := opp("SOL", "USDC", "SOL")
	require.Equal(t, fwd.PathKey, fwd.ReverseKey)
	reason, err := g.Admit(ctx, fwd, t0)
	require.NoError(t, err)
	require.Empty(t, reason)

	// the reversed walk carries the identical canonical keys
	reason, err = g.Admit(ctx, fwd, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectCooldown, reason)

	reason, err = g.Admit(ctx, fwd, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectOscillation, reason)

	reason, err = g.Admit(ctx, fwd, t0.Add(31*time.Second))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

func TestAdmitRejectsTokenRepeats(t *testing.T) {
	g := New(NewMemoryStore(), guardCfg())

	// Interior token appearing twice trips the safety net.
	bad := profit.Opportunity{
		PathKey:    "SOL>USDC>USDC>SOL",
		ReverseKey: "SOL>USDC>USDC>SOL",
		Hops: []profit.Hop{
			{From: "SOL", To: "USDC"},
			{From: "USDC", To: "USDC"},
			{From: "USDC", To: "SOL"},
		},
	}
	reason, err := g.Admit(context.Background(), bad, t0)
	require.NoError(t, err)
	assert.Equal(t, RejectTokenRepeat, reason)
}

func TestFailureFeedbackRollsBackCooldown(t *testing.T) {
	g := New(NewMemoryStore(), guardCfg())
	ctx := context.Background()
	o := opp("SOL", "USDC", "SOL")

	reason, err := g.Admit(ctx, o, t0)
	require.NoError(t, err)
	require.Empty(t, reason)

	// Failed execution rolls the provisional entry back; the path may be
	// proposed again immediately.
	require.NoError(t, g.Feedback(ctx, o.PathKey, false))
	reason, err = g.Admit(ctx, o, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

func TestSuccessFeedbackKeepsCooldown(t *testing.T) {
	g := New(NewMemoryStore(), guardCfg())
	ctx := context.Background()
	o := opp("SOL", "USDC", "SOL")

	_, err := g.Admit(ctx, o, t0)
	require.NoError(t, err)
	require.NoError(t, g.Feedback(ctx, o.PathKey, true))

	reason, err := g.Admit(ctx, o, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectCooldown, reason)
}

func TestRollbackRestoresPreviousState(t *testing.T) {
	store := NewMemoryStore()
	g := New(store, guardCfg())
	ctx := context.Background()
	o := opp("SOL", "USDC", "SOL")

	// First acceptance confirmed.
	_, err := g.Admit(ctx, o, t0)
	require.NoError(t, err)
	require.NoError(t, g.Feedback(ctx, o.PathKey, true))

	// Second acceptance after cooldown, then rolled back: the entry must
	// revert to the first acceptance, not disappear.
	_, err = g.Admit(ctx, o, t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, g.Feedback(ctx, o.PathKey, false))

	e, ok, err := store.Get(ctx, o.PathKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, e.Count)
	assert.Equal(t, t0, e.LastSeen)
}

func TestPruneExpired(t *testing.T) {
	store := NewMemoryStore()
	g := New(store, guardCfg())
	ctx := context.Background()

	_, err := g.Admit(ctx, opp("SOL", "USDC", "SOL"), t0)
	require.NoError(t, err)
	_, err = g.Admit(ctx, opp("SOL", "RAY", "SOL"), t0.Add(5*time.Minute))
	require.NoError(t, err)

	// Retention is 10 minutes; at t0+11m only the first entry expires.
	n, err := g.PruneExpired(ctx, t0.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, g.LedgerSize(ctx))
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	path := t.TempDir() + "/ledger.db"
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "SOL>USDC>SOL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Reserve(ctx, "SOL>USDC>SOL", t0))
	e, ok, err := store.Get(ctx, "SOL>USDC>SOL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, e.Count)
	assert.Equal(t, t0.UnixMilli(), e.LastSeen.UnixMilli())

	// Rollback of a fresh reservation removes the entry.
	require.NoError(t, store.Rollback(ctx, "SOL>USDC>SOL"))
	_, ok, err = store.Get(ctx, "SOL>USDC>SOL")
	require.NoError(t, err)
	assert.False(t, ok)

	// Reserve, commit, re-reserve, rollback: previous state restored.
	require.NoError(t, store.Reserve(ctx, "SOL>USDC>SOL", t0))
	require.NoError(t, store.Commit(ctx, "SOL>USDC>SOL"))
	require.NoError(t, store.Reserve(ctx, "SOL>USDC>SOL", t0.Add(time.Minute)))
	require.NoError(t, store.Rollback(ctx, "SOL>USDC>SOL"))
	e, ok, err = store.Get(ctx, "SOL>USDC>SOL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, e.Count)
	assert.Equal(t, t0.UnixMilli(), e.LastSeen.UnixMilli())

	n, err := store.Prune(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	total, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGuardWithSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir() + "/ledger.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := New(store, guardCfg())
	ctx := context.Background()
	o := opp("SOL", "USDC", "RAY", "SOL")

	reason, err := g.Admit(ctx, o, t0)
	require.NoError(t, err)
	assert.Empty(t, reason)

	reason, err = g.Admit(ctx, o, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, RejectCooldown, reason)
}
