package store

import (
	"fmt"
)

// Bet mirrors the bet_history table (spec §3).
type Bet struct {
	ID          int64
	FixtureID   string
	MarketID    string
	MarketName  string
	OutcomeID   string
	OutcomeName string
	Odds        float64
	Stake       float64
	PlacedAt    string
	SettledAt   *string
	Result      string // pending, win, loss
	Payout      float64
	ModelMarket string
}

// InsertBet records a new pending bet.
func (s *Store) InsertBet(b Bet) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO bet_history (fixture_id, market_id, market_name, outcome_id, outcome_name,
			odds, stake, placed_at, result, payout, model_market)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'), 'pending', 0, ?)
	`, b.FixtureID, b.MarketID, b.MarketName, b.OutcomeID, b.OutcomeName, b.Odds, b.Stake, b.ModelMarket)
	if err != nil {
		return 0, fmt.Errorf("store: insert bet: %w", err)
	}
	return res.LastInsertId()
}

// GetBetByID returns a single bet row, or nil.
func (s *Store) GetBetByID(id int64) (*Bet, error) {
	row := s.conn.QueryRow(`
		SELECT id, fixture_id, market_id, market_name, outcome_id, outcome_name, odds, stake,
			placed_at, settled_at, result, payout, model_market
		FROM bet_history WHERE id = ?
	`, id)

	var b Bet
	if err := row.Scan(&b.ID, &b.FixtureID, &b.MarketID, &b.MarketName, &b.OutcomeID, &b.OutcomeName,
		&b.Odds, &b.Stake, &b.PlacedAt, &b.SettledAt, &b.Result, &b.Payout, &b.ModelMarket); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get bet by id: %w", err)
	}
	return &b, nil
}

// GetPendingBets returns all bets with result = 'pending'.
func (s *Store) GetPendingBets() ([]Bet, error) {
	rows, err := s.conn.Query(`
		SELECT id, fixture_id, market_id, market_name, outcome_id, outcome_name, odds, stake,
			placed_at, settled_at, result, payout, model_market
		FROM bet_history WHERE result = 'pending'
	`)
	if err != nil {
		return nil, fmt.Errorf("store: get pending bets: %w", err)
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.FixtureID, &b.MarketID, &b.MarketName, &b.OutcomeID, &b.OutcomeName,
			&b.Odds, &b.Stake, &b.PlacedAt, &b.SettledAt, &b.Result, &b.Payout, &b.ModelMarket); err != nil {
			return nil, fmt.Errorf("store: scan pending bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// SettleBet marks a bet as settled. Idempotent: settling an
// already-settled bet is a no-op (spec §4.5).
func (s *Store) SettleBet(betID int64, result string, payout float64) error {
	bet, err := s.GetBetByID(betID)
	if err != nil {
		return err
	}
	if bet == nil {
		return fmt.Errorf("store: bet %d not found", betID)
	}
	if bet.Result != "pending" {
		return nil
	}

	_, err = s.conn.Exec(`
		UPDATE bet_history SET result = ?, payout = ?, settled_at = datetime('now')
		WHERE id = ? AND result = 'pending'
	`, result, payout, betID)
	if err != nil {
		return fmt.Errorf("store: settle bet: %w", err)
	}
	return nil
}

// BankrollStats aggregates settled-bet performance, optionally scoped
// to a model_market join key (spec §4.7/§9: model_market is the ROI
// join key).
type BankrollStats struct {
	SettledBets int
	Wins        int
	Losses      int
	TotalStaked float64
	TotalPayout float64
	ROI         float64 // (payout - staked) / staked
}

// GetBankrollStats computes settled-bet ROI, optionally filtered by
// model_market.
func (s *Store) GetBankrollStats(modelMarket string) (BankrollStats, error) {
	query := `SELECT result, stake, payout FROM bet_history WHERE result IN ('win', 'loss')`
	var args []interface{}
	if modelMarket != "" {
		query += " AND model_market = ?"
		args = append(args, modelMarket)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return BankrollStats{}, fmt.Errorf("store: get bankroll stats: %w", err)
	}
	defer rows.Close()

	var stats BankrollStats
	for rows.Next() {
		var result string
		var stake, payout float64
		if err := rows.Scan(&result, &stake, &payout); err != nil {
			return BankrollStats{}, fmt.Errorf("store: scan bankroll row: %w", err)
		}
		stats.SettledBets++
		stats.TotalStaked += stake
		stats.TotalPayout += payout
		if result == "win" {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	if err := rows.Err(); err != nil {
		return BankrollStats{}, err
	}

	if stats.TotalStaked > 0 {
		stats.ROI = (stats.TotalPayout - stats.TotalStaked) / stats.TotalStaked
	}

	return stats, nil
}
