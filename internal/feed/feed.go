// Package feed collects raw quotes from pluggable sources and fans the
// fetches out with bounded concurrency. Sources return untrusted quotes;
// validation happens in graph.Build.
package feed

import (
	"context"

	"cyclarb/internal/graph"
)

// Source is a single quote provider. Fetch must honor ctx cancellation and
// may return a partial batch alongside an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]graph.Quote, error)
}
