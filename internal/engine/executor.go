package engine

import (
	"context"

	"github.com/rs/zerolog"

	"cyclarb/internal/profit"
)

// ExecResult is the execution collaborator's feedback for one opportunity.
type ExecResult struct {
	Success  bool
	Realized float64 // realized net profit in base units, 0 on failure
}

// Executor carries an emitted opportunity to completion. Implementations
// report success or failure so the ledger can settle the reservation.
type Executor interface {
	Execute(ctx context.Context, opp profit.Opportunity) (ExecResult, error)
}

// PaperExecutor fills every opportunity at its modeled profit. It stands in
// for a real execution venue during paper runs.
type PaperExecutor struct {
	log zerolog.Logger
}

func NewPaperExecutor(log zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{log: log}
}

func (p *PaperExecutor) Execute(ctx context.Context, opp profit.Opportunity) (ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}
	p.log.Info().
		Str("id", opp.ID).
		Str("path", opp.PathKey).
		Float64("size", opp.TradeSize).
		Float64("net", opp.NetProfit).
		Msg("paper fill")
	return ExecResult{Success: true, Realized: opp.NetProfit}, nil
}
