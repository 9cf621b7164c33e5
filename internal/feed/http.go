package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cyclarb/internal/graph"
	"cyclarb/internal/infra/network"
)

// HTTPSource pulls a JSON quote batch from a REST endpoint:
//
//	[{"token_in":"SOL","token_out":"USDC","price":150,
//	  "fee_bps":30,"liquidity":100000,"bidirectional":true}, ...]
//
// fee_bps may be omitted per row; the source-level default then applies.
type HTTPSource struct {
	name          string
	url           string
	defaultFeeBps float64
	http          *http.Client
	now           func() time.Time
}

type httpQuote struct {
	TokenIn       string   `json:"token_in"`
	TokenOut      string   `json:"token_out"`
	Price         float64  `json:"price"`
	FeeBps        *float64 `json:"fee_bps"`
	Liquidity     float64  `json:"liquidity"`
	Bidirectional bool     `json:"bidirectional"`
}

func NewHTTPSource(name, url string, defaultFeeBps float64) *HTTPSource {
	return &HTTPSource{name: name, url: url, defaultFeeBps: defaultFeeBps, http: network.NewHTTPClient(), now: time.Now}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context) ([]graph.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", network.UserAgent)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", s.name, resp.StatusCode)
	}
	var rows []httpQuote
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", s.name, err)
	}
	now := s.now()
	out := make([]graph.Quote, 0, len(rows))
	for _, r := range rows {
		fee := s.defaultFeeBps
		if r.FeeBps != nil {
			fee = *r.FeeBps
		}
		out = append(out, graph.Quote{
			SourceID:      s.name,
			TokenIn:       r.TokenIn,
			TokenOut:      r.TokenOut,
			Price:         r.Price,
			FeeBps:        fee,
			Liquidity:     r.Liquidity,
			FetchedAt:     now,
			Bidirectional: r.Bidirectional,
		})
	}
	return out, nil
}
