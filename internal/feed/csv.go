package feed

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cyclarb/internal/graph"
)

// CSVSource replays quote snapshots from a file, one quote per row:
//
//	token_in,token_out,price,fee_bps,liquidity[,bidirectional]
//
// A header row is skipped when the third column does not parse as a number.
// Rows are stamped with the fetch time so replayed data passes staleness
// checks.
type CSVSource struct {
	name string
	path string
	now  func() time.Time
}

func NewCSVSource(name, path string) *CSVSource {
	return &CSVSource{name: name, path: path, now: time.Now}
}

func (s *CSVSource) Name() string { return s.name }

func (s *CSVSource) Fetch(ctx context.Context) ([]graph.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	now := s.now()
	var out []graph.Quote
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(rec) < 5 {
			continue
		}
		price, perr := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if perr != nil {
			continue // header or junk row
		}
		p := func(s string) float64 { v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64); return v }
		q := graph.Quote{
			SourceID:  s.name,
			TokenIn:   strings.TrimSpace(rec[0]),
			TokenOut:  strings.TrimSpace(rec[1]),
			Price:     price,
			FeeBps:    p(rec[3]),
			Liquidity: p(rec[4]),
			FetchedAt: now,
		}
		if len(rec) > 5 {
			q.Bidirectional, _ = strconv.ParseBool(strings.TrimSpace(rec[5]))
		}
		out = append(out, q)
	}
	return out, nil
}
