// Package report renders tick summaries for the console. JSON consumers use
// the status endpoint instead.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"cyclarb/internal/engine"
)

// WriteTick prints the emitted opportunities of one tick as a table, with a
// one-line funnel summary underneath.
func WriteTick(w io.Writer, rep engine.TickReport) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Path", "Size", "Gross", "Fees", "Net", "Conf", "Sources")
	for i, opp := range rep.Emitted {
		srcs := make([]string, 0, len(opp.Hops))
		seen := map[string]bool{}
		for _, h := range opp.Hops {
			if !seen[h.SourceID] {
				seen[h.SourceID] = true
				srcs = append(srcs, h.SourceID)
			}
		}
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			opp.PathKey,
			fmt.Sprintf("%.4f", opp.TradeSize),
			fmt.Sprintf("%.6f", opp.GrossProfit),
			fmt.Sprintf("%.6f", opp.TotalFees),
			fmt.Sprintf("%.6f", opp.NetProfit),
			fmt.Sprintf("%.3f", opp.Confidence),
			strings.Join(srcs, ","),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "quotes=%d edges=%d cycles=%d scored=%d emitted=%d rejected=%s dur=%dms\n",
		rep.QuotesIngested, rep.Edges, rep.CyclesEnumerated, rep.CandidatesScored,
		len(rep.Emitted), reasonSummary(rep.GuardRejections), rep.DurationMs)
	return err
}

func reasonSummary(m map[string]int) string {
	if len(m) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
