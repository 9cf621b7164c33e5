package feed

import (
	"context"
	"time"

	"cyclarb/internal/graph"
)

// StaticSource serves a fixed quote set, stamping FetchedAt on every call.
// Used for paper runs and tests.
type StaticSource struct {
	name   string
	quotes []graph.Quote
	now    func() time.Time
}

func NewStaticSource(name string, quotes []graph.Quote) *StaticSource {
	return &StaticSource{name: name, quotes: quotes, now: time.Now}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(ctx context.Context) ([]graph.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]graph.Quote, len(s.quotes))
	for i, q := range s.quotes {
		q.SourceID = s.name
		q.FetchedAt = now
		out[i] = q
	}
	return out, nil
}
