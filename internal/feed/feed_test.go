package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclarb/internal/graph"
)

type fakeSource struct {
	name   string
	quotes []graph.Quote
	err    error
	delay  time.Duration
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]graph.Quote, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.quotes, f.err
}

func q(in, out string, price float64) graph.Quote {
	return graph.Quote{TokenIn: in, TokenOut: out, Price: price, FeeBps: 30, Liquidity: 1e5, FetchedAt: time.Now()}
}

func TestFetchAllPartialFailure(t *testing.T) {
	srcs := []Source{
		&fakeSource{name: "alpha", quotes: []graph.Quote{q("SOL", "USDC", 150)}},
		&fakeSource{name: "broken", err: errors.New("boom")},
		&fakeSource{name: "beta", quotes: []graph.Quote{q("USDC", "RAY", 0.5), q("RAY", "SOL", 1.2)}},
	}
	f := NewFetcher(FetcherConfig{MaxConcurrency: 2}, srcs, zerolog.Nop())
	quotes, stats := f.FetchAll(context.Background())

	require.Len(t, quotes, 3)
	assert.Equal(t, 3, stats.Sources)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Ingested)
	assert.Contains(t, stats.Errors["broken"], "boom")
	// batches come back in registration order regardless of goroutine timing
	assert.Equal(t, "SOL", quotes[0].TokenIn)
	assert.Equal(t, "USDC", quotes[1].TokenIn)
}

func TestFetchAllSourceTimeout(t *testing.T) {
	srcs := []Source{
		&fakeSource{name: "slow", delay: 200 * time.Millisecond, quotes: []graph.Quote{q("A", "B", 1)}},
		&fakeSource{name: "fast", quotes: []graph.Quote{q("C", "D", 2)}},
	}
	f := NewFetcher(FetcherConfig{MaxConcurrency: 4, SourceTimeout: 20 * time.Millisecond}, srcs, zerolog.Nop())
	quotes, stats := f.FetchAll(context.Background())

	require.Len(t, quotes, 1)
	assert.Equal(t, "C", quotes[0].TokenIn)
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, stats.Errors, "slow")
}

func TestStaticSourceStamps(t *testing.T) {
	s := NewStaticSource("static", []graph.Quote{q("SOL", "USDC", 150)})
	fixed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	quotes, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "static", quotes[0].SourceID)
	assert.Equal(t, fixed, quotes[0].FetchedAt)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	data := "token_in,token_out,price,fee_bps,liquidity,bidirectional\n" +
		"SOL,USDC,150,30,100000,true\n" +
		"USDC,RAY,0.5,30,50000\n" +
		"bad,row\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s := NewCSVSource("replay", path)
	quotes, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "replay", quotes[0].SourceID)
	assert.Equal(t, "SOL", quotes[0].TokenIn)
	assert.True(t, quotes[0].Bidirectional)
	assert.False(t, quotes[1].Bidirectional)
	assert.InDelta(t, 0.5, quotes[1].Price, 1e-12)
}

func TestCSVSourceMissingFile(t *testing.T) {
	s := NewCSVSource("replay", filepath.Join(t.TempDir(), "absent.csv"))
	_, err := s.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"token_in":"SOL","token_out":"USDC","price":150,"fee_bps":25,"liquidity":100000,"bidirectional":true},
			{"token_in":"USDC","token_out":"RAY","price":0.5,"liquidity":50000}
		]`))
	}))
	defer srv.Close()

	s := NewHTTPSource("venue", srv.URL, 30)
	quotes, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 25.0, quotes[0].FeeBps)
	assert.Equal(t, 30.0, quotes[1].FeeBps) // default applied when omitted
	assert.Equal(t, "venue", quotes[1].SourceID)
}

func TestHTTPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSource("venue", srv.URL, 30)
	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
