package scheduler

import "github.com/antonkoetzler/arbihawk/internal/valuebet"

// valuebetAdapter adapts a *valuebet.Engine to the scheduler's narrow
// ValuebetSource interface, so this package depends on valuebet's
// concrete Candidate shape in exactly one place.
type valuebetAdapter struct {
	engine *valuebet.Engine
}

// NewValuebetSource wraps a market's value-bet engine for the betting
// task (spec §4.6/§4.8).
func NewValuebetSource(engine *valuebet.Engine) ValuebetSource {
	return valuebetAdapter{engine: engine}
}

func (a valuebetAdapter) Evaluate(fixtureID, market, asOf string) ([]ValuebetCandidate, error) {
	candidates, err := a.engine.Evaluate(fixtureID, market, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]ValuebetCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = ValuebetCandidate{
			FixtureID: c.FixtureID, MarketID: c.MarketID, MarketName: c.MarketName,
			OutcomeID: c.OutcomeID, OutcomeName: c.OutcomeName, Odds: c.Odds, Stake: c.Stake,
		}
	}
	return out, nil
}
