package engine

import (
	"time"

	"cyclarb/internal/profit"
)

// TickReport summarizes one discovery pass. The rejected and dropped maps
// carry the same reason strings the per-stage metrics use.
type TickReport struct {
	At         time.Time `json:"at"`
	DurationMs int64     `json:"duration_ms"`

	Sources        int `json:"sources"`
	SourceFailures int `json:"source_failures"`
	QuotesIngested int `json:"quotes_ingested"`

	QuotesDropped map[string]int `json:"quotes_dropped,omitempty"`
	Edges         int            `json:"edges"`

	CyclesEnumerated int `json:"cycles_enumerated"`
	EnumTruncations  int `json:"enum_truncations"`

	CandidatesScored  int            `json:"candidates_scored"`
	CandidatesDropped map[string]int `json:"candidates_dropped,omitempty"`
	RankDropped       map[string]int `json:"rank_dropped,omitempty"`
	GuardRejections   map[string]int `json:"guard_rejections,omitempty"`

	LedgerSize int `json:"ledger_size"`

	Emitted []profit.Opportunity `json:"emitted"`

	Executed       int     `json:"executed,omitempty"`
	ExecFailed     int     `json:"exec_failed,omitempty"`
	RealizedProfit float64 `json:"realized_profit,omitempty"`
}
