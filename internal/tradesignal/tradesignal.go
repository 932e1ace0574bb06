// Package tradesignal computes expected-value-gated trade candidates
// from technical indicators and an active model's probability (spec
// §4.6). Indicators are computed with go-talib over stored price
// history; confidence features are normalised with gonum/stat.
package tradesignal

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// Strategy identifies a trading style (spec §4.6).
type Strategy string

const (
	StrategyMomentum   Strategy = "momentum"
	StrategySwing      Strategy = "swing"
	StrategyVolatility Strategy = "volatility"
)

// ProbabilitySource supplies the active model's probability for a
// symbol under a strategy. Model training/inference internals are an
// out-of-scope collaborator (spec §1).
type ProbabilitySource interface {
	Probability(symbol string, strategy Strategy) (float64, error)
}

// Config tunes the signal gate (spec §4.6).
type Config struct {
	ATRMultiple        float64 // stop-loss distance in ATRs, e.g. 2.0
	RiskRewardMultiple float64 // take-profit distance relative to stop, e.g. 2.0
	MinRiskReward      float64
	StrategyMinConfidence map[Strategy]float64
}

// TechnicalContext carries the flags the engine derives from
// indicators (spec §4.6: "RSI regime, MACD crossover, Bollinger
// squeeze").
type TechnicalContext struct {
	RSI             float64
	RSIOverbought   bool
	RSIOversold     bool
	MACDBullCross   bool
	MACDBearCross   bool
	BollingerSqueeze bool
	ATR             float64
}

// Candidate is a trade the engine recommends opening.
type Candidate struct {
	Symbol       string
	AssetType    string
	Strategy     Strategy
	Direction    string // long, short
	Entry        float64
	StopLoss     float64
	TakeProfit   float64
	EV           float64
	RiskReward   float64
	Confidence   float64
	Context      TechnicalContext
}

// Engine computes trade candidates per symbol/strategy (spec §4.6).
type Engine struct {
	store *store.Store
	probs ProbabilitySource
	cfg   Config
}

// New constructs a trade-signal Engine.
func New(s *store.Store, probs ProbabilitySource, cfg Config) *Engine {
	if cfg.ATRMultiple == 0 {
		cfg.ATRMultiple = 2.0
	}
	if cfg.RiskRewardMultiple == 0 {
		cfg.RiskRewardMultiple = 2.0
	}
	if cfg.MinRiskReward == 0 {
		cfg.MinRiskReward = 1.5
	}
	return &Engine{store: s, probs: probs, cfg: cfg}
}

// minBarsForIndicators is the shortest price-history window that
// still gives go-talib enough lead-in to warm up RSI/MACD/ATR without
// leading NaNs dominating the most recent bar.
const minBarsForIndicators = 40

// Evaluate computes the current feature vector and technical context
// for one symbol/strategy pair and returns a candidate if it clears
// the EV, risk/reward, and confidence gates (spec §4.6).
func (e *Engine) Evaluate(symbol, assetType string, strategyName Strategy) (*Candidate, error) {
	bars, err := e.store.GetPriceHistory(symbol, assetType, 200)
	if err != nil {
		return nil, fmt.Errorf("tradesignal: price history for %s: %w", symbol, err)
	}
	if len(bars) < minBarsForIndicators {
		return nil, nil
	}

	ctx := computeTechnicalContext(bars)
	if err := e.persistIndicators(symbol, assetType, bars[len(bars)-1].Timestamp, ctx); err != nil {
		return nil, fmt.Errorf("tradesignal: persist indicators for %s: %w", symbol, err)
	}

	probability, err := e.probs.Probability(symbol, strategyName)
	if err != nil {
		return nil, fmt.Errorf("tradesignal: probability for %s/%s: %w", symbol, strategyName, err)
	}

	entry := bars[len(bars)-1].Close
	direction := "long"
	if ctx.RSIOverbought || ctx.MACDBearCross {
		direction = "short"
	}

	stopLoss, takeProfit := stopLossAndTakeProfit(entry, ctx.ATR, direction, e.cfg.ATRMultiple, e.cfg.RiskRewardMultiple)
	risk := absPct(entry, stopLoss)
	expectedReturn := absPct(entry, takeProfit)
	if risk == 0 {
		return nil, nil
	}

	ev := probability*expectedReturn - (1-probability)*risk
	riskReward := expectedReturn / risk
	confidence := confidenceFromContext(bars, ctx)

	minConfidence := 0.5
	if e.cfg.StrategyMinConfidence != nil {
		if v, ok := e.cfg.StrategyMinConfidence[strategyName]; ok {
			minConfidence = v
		}
	}

	if ev < 0 || riskReward < e.cfg.MinRiskReward || confidence < minConfidence {
		return nil, nil
	}

	return &Candidate{
		Symbol: symbol, AssetType: assetType, Strategy: strategyName, Direction: direction,
		Entry: entry, StopLoss: stopLoss, TakeProfit: takeProfit,
		EV: ev, RiskReward: riskReward, Confidence: confidence, Context: ctx,
	}, nil
}

// EvaluateWatchlist runs Evaluate over a watchlist, ordering surviving
// candidates by EV descending (spec §4.6), and collecting per-symbol
// errors without aborting the batch.
func (e *Engine) EvaluateWatchlist(symbols []string, assetType string, strategyName Strategy) ([]Candidate, []error) {
	var candidates []Candidate
	var errs []error
	for _, symbol := range symbols {
		candidate, err := e.Evaluate(symbol, assetType, strategyName)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}
	sortByEVDescending(candidates)
	return candidates, errs
}

func sortByEVDescending(candidates []Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].EV > candidates[j-1].EV; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

func absPct(entry, target float64) float64 {
	if entry == 0 {
		return 0
	}
	diff := target - entry
	if diff < 0 {
		diff = -diff
	}
	return diff / entry
}

// stopLossAndTakeProfit computes ATR-based levels, direction-dependent
// (spec §4.6: "entry ∓ k·ATR").
func stopLossAndTakeProfit(entry, atr float64, direction string, atrMultiple, riskRewardMultiple float64) (stopLoss, takeProfit float64) {
	distance := atr * atrMultiple
	if direction == "long" {
		stopLoss = entry - distance
		takeProfit = entry + distance*riskRewardMultiple
	} else {
		stopLoss = entry + distance
		takeProfit = entry - distance*riskRewardMultiple
	}
	return stopLoss, takeProfit
}

// computeTechnicalContext derives RSI/MACD/Bollinger/ATR flags from a
// symbol's recent price bars via go-talib.
func computeTechnicalContext(bars []store.PricePoint) TechnicalContext {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	rsi := talib.Rsi(closes, 14)
	macd, signal, _ := talib.Macd(closes, 12, 26, 9)
	upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	atr := talib.Atr(highs, lows, closes, 14)

	last := len(closes) - 1
	ctx := TechnicalContext{
		RSI:           rsi[last],
		RSIOverbought: rsi[last] >= 70,
		RSIOversold:   rsi[last] <= 30,
		ATR:           atr[last],
	}
	if last > 0 {
		ctx.MACDBullCross = macd[last-1] <= signal[last-1] && macd[last] > signal[last]
		ctx.MACDBearCross = macd[last-1] >= signal[last-1] && macd[last] < signal[last]
	}
	if upper[last] > 0 {
		bandWidth := (upper[last] - lower[last]) / upper[last]
		ctx.BollingerSqueeze = bandWidth < 0.05
	}
	return ctx
}

// confidenceFromContext folds recent return volatility (normalised via
// gonum/stat) into a [0,1] confidence score: tighter, more consistent
// recent moves raise confidence.
func confidenceFromContext(bars []store.PricePoint, ctx TechnicalContext) float64 {
	window := bars
	if len(window) > 20 {
		window = window[len(window)-20:]
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-window[i-1].Close)/window[i-1].Close)
	}
	if len(returns) == 0 {
		return 0.5
	}

	mean := stat.Mean(returns, nil)
	stdDev := stat.StdDev(returns, nil)

	confidence := 0.5
	if stdDev > 0 {
		confidence = 0.5 + clamp(mean/stdDev, -0.5, 0.5)
	}
	if ctx.BollingerSqueeze {
		confidence += 0.1
	}
	return clamp(confidence, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// persistIndicators writes the computed indicator snapshot into the
// store's generic name/value indicators table (spec §3).
func (e *Engine) persistIndicators(symbol, assetType, timestamp string, ctx TechnicalContext) error {
	rows := []store.Indicator{
		{Symbol: symbol, AssetType: assetType, Name: "rsi", Value: ctx.RSI, Timestamp: timestamp},
		{Symbol: symbol, AssetType: assetType, Name: "atr", Value: ctx.ATR, Timestamp: timestamp},
	}
	return e.store.InsertIndicators(rows)
}
