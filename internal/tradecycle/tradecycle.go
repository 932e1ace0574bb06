// Package tradecycle implements the trade service the trading_cycle
// task delegates to: refresh position prices, check stop-loss/
// take-profit triggers, generate signals, open new positions, and
// record a portfolio snapshot (spec §4.8). Grounded on
// internal/tradesignal for the signal gate and internal/store for all
// position/portfolio persistence.
package tradecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/store"
	"github.com/antonkoetzler/arbihawk/internal/tradesignal"
)

// Watchlist is the universe of symbols a cycle considers.
type Watchlist struct {
	Stocks []string
	Crypto []string
}

// Config tunes position sizing.
type Config struct {
	Strategy         tradesignal.Strategy
	PositionStakeUSD float64
	StartingCash     float64
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = tradesignal.StrategyMomentum
	}
	if c.PositionStakeUSD <= 0 {
		c.PositionStakeUSD = 100
	}
	if c.StartingCash <= 0 {
		c.StartingCash = 10000
	}
}

// Result summarises one cycle (mirrors scheduler.TradeCycleResult
// without importing the scheduler package).
type Result struct {
	PositionsClosed  int
	SignalsGenerated int
	PositionsOpened  int
}

// Service is the trade-cycle collaborator.
type Service struct {
	store     *store.Store
	signals   *tradesignal.Engine
	watchlist Watchlist
	cfg       Config
	log       zerolog.Logger
}

// New constructs a Service.
func New(s *store.Store, signals *tradesignal.Engine, watchlist Watchlist, cfg Config, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{store: s, signals: signals, watchlist: watchlist, cfg: cfg, log: log.With().Str("component", "tradecycle").Logger()}
}

// RunCycle executes one full iteration (spec §4.8).
func (s *Service) RunCycle(ctx context.Context) (Result, error) {
	var result Result

	positions, err := s.store.GetOpenPositions()
	if err != nil {
		return result, fmt.Errorf("tradecycle: list open positions: %w", err)
	}

	closed, freedCash, realizedThisCycle, stillOpen, err := s.refreshAndCheckExits(positions)
	if err != nil {
		return result, err
	}
	result.PositionsClosed = closed

	candidates := s.generateSignals(stillOpen)
	result.SignalsGenerated = len(candidates)

	cash, err := s.availableCash()
	if err != nil {
		return result, err
	}
	cash += freedCash
	opened, remainingCash := s.openPositions(candidates, cash)
	result.PositionsOpened = opened

	if err := s.snapshotPortfolio(remainingCash, realizedThisCycle); err != nil {
		return result, err
	}

	return result, nil
}

// refreshAndCheckExits re-prices every open position from the latest
// stored bar and closes any that have crossed their stop-loss or
// take-profit level. It returns the count closed, the cash freed by
// those closes (entry notional plus realized P&L), the realized P&L
// alone, and the positions that remain open.
func (s *Service) refreshAndCheckExits(positions []store.Position) (closed int, freedCash, realized float64, stillOpen []store.Position, err error) {
	for _, p := range positions {
		bars, err := s.store.GetPriceHistory(p.Symbol, p.AssetType, 1)
		if err != nil {
			return closed, freedCash, realized, stillOpen, fmt.Errorf("tradecycle: latest price for %s: %w", p.Symbol, err)
		}
		if len(bars) == 0 {
			stillOpen = append(stillOpen, p)
			continue
		}

		price := bars[0].Close
		p.CurrentPrice = price
		p.UnrealizedPnL = (price - p.AvgEntryPrice) * p.Quantity

		if s.shouldExit(p, price) {
			returned, gain, err := s.closePosition(p, price)
			if err != nil {
				return closed, freedCash, realized, stillOpen, err
			}
			closed++
			freedCash += returned
			realized += gain
			continue
		}

		if err := s.store.UpsertPosition(p); err != nil {
			return closed, freedCash, realized, stillOpen, fmt.Errorf("tradecycle: refresh position %s: %w", p.Symbol, err)
		}
		stillOpen = append(stillOpen, p)
	}
	return closed, freedCash, realized, stillOpen, nil
}

// shouldExit reports whether price has crossed the position's
// stop-loss or take-profit level. Quantity's sign carries direction:
// positive is long, negative is short (spec §4.6: "entry ∓ k·ATR,
// direction-dependent").
func (s *Service) shouldExit(p store.Position, price float64) bool {
	long := p.Quantity >= 0
	if p.StopLoss != nil {
		if long && price <= *p.StopLoss {
			return true
		}
		if !long && price >= *p.StopLoss {
			return true
		}
	}
	if p.TakeProfit != nil {
		if long && price >= *p.TakeProfit {
			return true
		}
		if !long && price <= *p.TakeProfit {
			return true
		}
	}
	return false
}

// closePosition records the exit trade and clears the position row,
// returning the cash freed (entry notional plus realized P&L) and the
// realized P&L alone.
func (s *Service) closePosition(p store.Position, exitPrice float64) (freedCash, realized float64, err error) {
	realized = (exitPrice - p.AvgEntryPrice) * p.Quantity
	tradeType := "sell"
	if p.Quantity < 0 {
		tradeType = "buy"
	}

	if _, err := s.store.InsertTrade(store.Trade{
		Symbol: p.Symbol, AssetType: p.AssetType, TradeType: tradeType,
		Quantity: p.Quantity, Price: exitPrice, TotalCost: exitPrice * p.Quantity,
		Strategy: p.Strategy, RealizedPnL: &realized,
	}); err != nil {
		return 0, 0, fmt.Errorf("tradecycle: record exit trade for %s: %w", p.Symbol, err)
	}
	if err := s.store.ClosePosition(p.Symbol, p.AssetType); err != nil {
		return 0, 0, fmt.Errorf("tradecycle: close position %s: %w", p.Symbol, err)
	}
	s.log.Info().Str("symbol", p.Symbol).Float64("realized_pnl", realized).Msg("position closed")

	notional := p.AvgEntryPrice * p.Quantity
	if notional < 0 {
		notional = -notional
	}
	return notional + realized, realized, nil
}

// generateSignals evaluates the watchlist, skipping symbols that
// already carry an open position (spec §4.6: one position per symbol).
func (s *Service) generateSignals(open []store.Position) []tradesignal.Candidate {
	held := make(map[string]bool, len(open))
	for _, p := range open {
		held[p.Symbol+"/"+p.AssetType] = true
	}

	var candidates []tradesignal.Candidate
	for _, symbol := range s.watchlist.Stocks {
		if held[symbol+"/stocks"] {
			continue
		}
		if c, err := s.signals.Evaluate(symbol, "stocks", s.cfg.Strategy); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("signal evaluation failed")
		} else if c != nil {
			candidates = append(candidates, *c)
		}
	}
	for _, symbol := range s.watchlist.Crypto {
		if held[symbol+"/crypto"] {
			continue
		}
		if c, err := s.signals.Evaluate(symbol, "crypto", s.cfg.Strategy); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("signal evaluation failed")
		} else if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}

// openPositions opens one position per surviving candidate until cash
// runs out, sizing each at PositionStakeUSD. Returns the count opened
// and the cash remaining afterward.
func (s *Service) openPositions(candidates []tradesignal.Candidate, cash float64) (opened int, remaining float64) {
	for _, c := range candidates {
		if cash < s.cfg.PositionStakeUSD {
			break
		}
		quantity := s.cfg.PositionStakeUSD / c.Entry
		if c.Direction == "short" {
			quantity = -quantity
		}

		if _, err := s.store.InsertTrade(store.Trade{
			Symbol: c.Symbol, AssetType: c.AssetType, TradeType: "buy",
			Quantity: quantity, Price: c.Entry, TotalCost: s.cfg.PositionStakeUSD, Strategy: string(c.Strategy),
		}); err != nil {
			s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("failed to record entry trade")
			continue
		}

		stopLoss, takeProfit := c.StopLoss, c.TakeProfit
		if err := s.store.UpsertPosition(store.Position{
			Symbol: c.Symbol, AssetType: c.AssetType, Quantity: quantity,
			AvgEntryPrice: c.Entry, CurrentPrice: c.Entry, Strategy: string(c.Strategy),
			StopLoss: &stopLoss, TakeProfit: &takeProfit,
		}); err != nil {
			s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("failed to open position")
			continue
		}

		cash -= s.cfg.PositionStakeUSD
		opened++
		s.log.Info().Str("symbol", c.Symbol).Str("direction", c.Direction).Msg("position opened")
	}
	return opened, cash
}

// availableCash derives spendable cash from the latest portfolio
// snapshot, or the configured starting balance if none exists yet.
func (s *Service) availableCash() (float64, error) {
	snap, err := s.store.LatestPortfolioSnapshot()
	if err != nil {
		return 0, fmt.Errorf("tradecycle: latest portfolio snapshot: %w", err)
	}
	if snap == nil {
		return s.cfg.StartingCash, nil
	}
	return snap.CashBalance, nil
}

// snapshotPortfolio values every open position at its current price
// and appends a portfolio row (spec §4.8: "records a portfolio
// snapshot"). cash is the balance after this cycle's opens; realized
// is the P&L this cycle's closes contributed, added to the running
// cumulative total.
func (s *Service) snapshotPortfolio(cash, realizedThisCycle float64) error {
	positions, err := s.store.GetOpenPositions()
	if err != nil {
		return fmt.Errorf("tradecycle: list positions for snapshot: %w", err)
	}

	var totalPositionValue, unrealizedPnL float64
	for _, p := range positions {
		totalPositionValue += p.CurrentPrice * p.Quantity
		unrealizedPnL += p.UnrealizedPnL
	}

	cumulativeRealized := realizedThisCycle
	if prior, err := s.store.LatestPortfolioSnapshot(); err != nil {
		return fmt.Errorf("tradecycle: prior snapshot: %w", err)
	} else if prior != nil {
		cumulativeRealized += prior.RealizedPnL
	}

	return s.store.InsertPortfolioSnapshot(store.PortfolioSnapshot{
		CashBalance:         cash,
		TotalPositionValue:  totalPositionValue,
		TotalPortfolioValue: cash + totalPositionValue,
		UnrealizedPnL:       unrealizedPnL,
		RealizedPnL:         cumulativeRealized,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	})
}
