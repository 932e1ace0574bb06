package scheduler

import (
	"context"

	"github.com/antonkoetzler/arbihawk/internal/tradecycle"
)

// tradeCyclerAdapter adapts a *tradecycle.Service to the scheduler's
// TradeCycler interface, so this package depends on tradecycle's
// concrete Result shape in exactly one place.
type tradeCyclerAdapter struct {
	service *tradecycle.Service
}

// NewTradeCycler wraps the trade-cycle collaborator for the
// trading_cycle task (spec §4.8).
func NewTradeCycler(service *tradecycle.Service) TradeCycler {
	return tradeCyclerAdapter{service: service}
}

func (a tradeCyclerAdapter) RunCycle(ctx context.Context) (TradeCycleResult, error) {
	result, err := a.service.RunCycle(ctx)
	if err != nil {
		return TradeCycleResult{}, err
	}
	return TradeCycleResult{
		PositionsClosed:  result.PositionsClosed,
		SignalsGenerated: result.SignalsGenerated,
		PositionsOpened:  result.PositionsOpened,
	}, nil
}
