package ingestion

import (
	"fmt"
	"time"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// dispatch writes a validated payload into the store according to its
// source kind (spec §4.3 Dispatch) and returns the number of records
// written.
func (p *Pipeline) dispatch(source SourceKind, payload interface{}) (int, error) {
	switch source {
	case SourceBetano:
		return p.dispatchBetano(payload)
	case SourceFlashscore:
		return p.dispatchScores(payload, string(SourceFlashscore))
	case SourceLivescore:
		return p.dispatchScores(payload, string(SourceLivescore))
	case SourceStocks:
		return p.dispatchPrices(payload, "stocks")
	case SourceCrypto:
		return p.dispatchPrices(payload, "crypto")
	}
	return 0, fmt.Errorf("ingestion: unknown source kind %q", source)
}

// dispatchBetano iterates leagues (or a single league object) →
// fixtures, upserting each fixture and batch-inserting its odds rows
// stamped with bookmaker "betano".
func (p *Pipeline) dispatchBetano(payload interface{}) (int, error) {
	leagues, ok := payload.([]interface{})
	if !ok {
		leagues = []interface{}{payload}
	}

	records := 0
	for _, l := range leagues {
		league, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		fixtures, _ := league["fixtures"].([]interface{})
		for _, f := range fixtures {
			fx, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			fixture := store.Fixture{
				FixtureID:      str(fx["fixture_id"]),
				TournamentID:   str(league["league_id"]),
				TournamentName: str(league["league_name"]),
				HomeTeamID:     str(fx["home_team_id"]),
				HomeTeamName:   str(fx["home_team_name"]),
				AwayTeamID:     str(fx["away_team_id"]),
				AwayTeamName:   str(fx["away_team_name"]),
				StartTime:      parseTime(str(fx["start_time"])),
				Status:         str(fx["status"]),
			}
			if fixture.FixtureID == "" {
				continue
			}
			if err := p.store.UpsertFixture(fixture); err != nil {
				return records, fmt.Errorf("upsert fixture %s: %w", fixture.FixtureID, err)
			}
			records++

			oddsList, _ := fx["odds"].([]interface{})
			var batch []store.Odds
			for _, o := range oddsList {
				row, ok := o.(map[string]interface{})
				if !ok {
					continue
				}
				batch = append(batch, store.Odds{
					FixtureID:     fixture.FixtureID,
					BookmakerID:   "betano",
					BookmakerName: "Betano",
					MarketID:      str(row["market_id"]),
					MarketName:    str(row["market_name"]),
					OutcomeID:     str(row["outcome_id"]),
					OutcomeName:   str(row["outcome_name"]),
					OddsValue:     num(row["odds_value"]),
				})
			}
			if len(batch) > 0 {
				if err := p.store.InsertOddsBatch(batch); err != nil {
					return records, fmt.Errorf("insert odds for fixture %s: %w", fixture.FixtureID, err)
				}
				records += len(batch)
			}
		}
	}
	return records, nil
}

// dispatchScores iterates completed matches (both home_score and
// away_score present), resolves each to a fixture via the Matcher,
// and upserts the score under the real fixture id when resolved, or a
// synthetic id otherwise (spec §4.3).
func (p *Pipeline) dispatchScores(payload interface{}, source string) (int, error) {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("expected object root for %s payload", source)
	}
	matches, _ := root["matches"].([]interface{})

	records := 0
	for _, m := range matches {
		match, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		homeScoreV, hasHome := match["home_score"]
		awayScoreV, hasAway := match["away_score"]
		if !hasHome || !hasAway || homeScoreV == nil || awayScoreV == nil {
			continue
		}

		homeTeam := firstNonEmpty(str(match["home_team_name"]), str(match["home_team"]))
		awayTeam := firstNonEmpty(str(match["away_team_name"]), str(match["away_team"]))
		matchTime := firstNonEmpty(str(match["start_time"]), str(match["match_date"]))

		homeScore := int(num(homeScoreV))
		awayScore := int(num(awayScoreV))

		fixtureID := ""
		if p.matcher != nil {
			fixtureID = p.matcher.MatchScore(homeTeam, awayTeam, matchTime)
		}
		if fixtureID == "" {
			fixtureID = fmt.Sprintf("%s_%s_%s_%s", source, underscored(homeTeam), underscored(awayTeam), dateOnly(matchTime))
		}

		if err := p.store.UpsertScore(store.Score{
			FixtureID: fixtureID,
			HomeScore: intPtr(homeScore),
			AwayScore: intPtr(awayScore),
			Status:    firstNonEmpty(str(match["status"]), "finished"),
		}); err != nil {
			return records, fmt.Errorf("upsert score %s: %w", fixtureID, err)
		}
		records++
	}
	return records, nil
}

// dispatchPrices writes instrument metadata then batch-inserts its
// price bars (spec §4.3).
func (p *Pipeline) dispatchPrices(payload interface{}, assetType string) (int, error) {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("expected object root for %s payload", assetType)
	}
	symbol := str(root["symbol"])
	if symbol == "" {
		return 0, fmt.Errorf("%s payload missing symbol", assetType)
	}

	meta, _ := root["metadata"].(map[string]interface{})
	var upsertErr error
	if assetType == "crypto" {
		upsertErr = p.store.UpsertCrypto(symbol, str(meta["name"]), str(meta["sector"]), num(meta["market_cap"]))
	} else {
		upsertErr = p.store.UpsertStock(symbol, str(meta["name"]), str(meta["sector"]), num(meta["market_cap"]))
	}
	if upsertErr != nil {
		return 0, fmt.Errorf("upsert instrument %s: %w", symbol, upsertErr)
	}

	bars, _ := root["prices"].([]interface{})
	var batch []store.PricePoint
	for _, b := range bars {
		bar, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		batch = append(batch, store.PricePoint{
			Symbol:    symbol,
			AssetType: assetType,
			Timestamp: str(bar["timestamp"]),
			Open:      num(bar["open"]),
			High:      num(bar["high"]),
			Low:       num(bar["low"]),
			Close:     num(bar["close"]),
			Volume:    num(bar["volume"]),
		})
	}
	if len(batch) == 0 {
		return 1, nil
	}
	if err := p.store.InsertPriceHistoryBatch(batch); err != nil {
		return 1, fmt.Errorf("insert price history for %s: %w", symbol, err)
	}
	return 1 + len(batch), nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func intPtr(v int) *int { return &v }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func underscored(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}

func dateOnly(s string) string {
	if t := parseTime(s); !t.IsZero() {
		return t.Format("2006-01-02")
	}
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
