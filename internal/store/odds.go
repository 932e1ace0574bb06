package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Odds mirrors the odds table (spec §3).
type Odds struct {
	ID             int64
	FixtureID      string
	BookmakerID    string
	BookmakerName  string
	MarketID       string
	MarketName     string
	OutcomeID      string
	OutcomeName    string
	OddsValue      float64
	CreatedAt      string
}

// UpsertOdds inserts or overwrites the odds value for
// (fixture_id, bookmaker_id, market_id, outcome_id), per spec §3:
// "updates overwrite odds_value in place".
func (s *Store) UpsertOdds(o Odds) error {
	if o.OddsValue <= 1.0 {
		return fmt.Errorf("store: odds_value must be > 1.0, got %f", o.OddsValue)
	}

	_, err := s.conn.Exec(`
		INSERT INTO odds (fixture_id, bookmaker_id, bookmaker_name, market_id, market_name,
			outcome_id, outcome_name, odds_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(fixture_id, bookmaker_id, market_id, outcome_id) DO UPDATE SET
			odds_value = excluded.odds_value,
			bookmaker_name = excluded.bookmaker_name,
			market_name = excluded.market_name,
			outcome_name = excluded.outcome_name,
			created_at = excluded.created_at
	`, o.FixtureID, o.BookmakerID, o.BookmakerName, o.MarketID, o.MarketName,
		o.OutcomeID, o.OutcomeName, o.OddsValue)
	if err != nil {
		return fmt.Errorf("store: upsert odds: %w", err)
	}
	return nil
}

// InsertOddsBatch atomically upserts a batch of odds rows for a single
// ingestion call (spec §4.1: "Batched inserts must be atomic per call").
func (s *Store) InsertOddsBatch(rows []Odds) error {
	return s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, o := range rows {
			if o.OddsValue <= 1.0 {
				return fmt.Errorf("store: odds_value must be > 1.0, got %f", o.OddsValue)
			}
			_, err := tx.Exec(`
				INSERT INTO odds (fixture_id, bookmaker_id, bookmaker_name, market_id, market_name,
					outcome_id, outcome_name, odds_value, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
				ON CONFLICT(fixture_id, bookmaker_id, market_id, outcome_id) DO UPDATE SET
					odds_value = excluded.odds_value,
					bookmaker_name = excluded.bookmaker_name,
					market_name = excluded.market_name,
					outcome_name = excluded.outcome_name,
					created_at = excluded.created_at
			`, o.FixtureID, o.BookmakerID, o.BookmakerName, o.MarketID, o.MarketName,
				o.OutcomeID, o.OutcomeName, o.OddsValue)
			if err != nil {
				return fmt.Errorf("store: insert odds batch: %w", err)
			}
		}
		return nil
	})
}

// GetOdds returns odds rows for a fixture, optionally filtered by
// created-at cutoff (used by the value-bet engine's backtesting mode,
// spec §4.6 / §9).
func (s *Store) GetOdds(fixtureID string, createdAtCutoff string) ([]Odds, error) {
	query := `SELECT id, fixture_id, bookmaker_id, bookmaker_name, market_id, market_name,
		outcome_id, outcome_name, odds_value, created_at FROM odds WHERE fixture_id = ?`
	args := []interface{}{fixtureID}

	if createdAtCutoff != "" {
		query += " AND created_at <= ?"
		args = append(args, createdAtCutoff)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get odds: %w", err)
	}
	defer rows.Close()

	var results []Odds
	for rows.Next() {
		var o Odds
		if err := rows.Scan(&o.ID, &o.FixtureID, &o.BookmakerID, &o.BookmakerName, &o.MarketID, &o.MarketName,
			&o.OutcomeID, &o.OutcomeName, &o.OddsValue, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan odds: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// LatestOddsPerOutcome collapses GetOdds to the single most recent row
// per (market_id, outcome_id), as the value-bet engine requires
// (spec §4.6: "the most recent odds per outcome").
func (s *Store) LatestOddsPerOutcome(fixtureID string, createdAtCutoff string) ([]Odds, error) {
	all, err := s.GetOdds(fixtureID, createdAtCutoff)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var latest []Odds
	for _, o := range all {
		key := o.MarketID + "|" + o.OutcomeID
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, o)
	}
	return latest, nil
}
