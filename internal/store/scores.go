package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Score mirrors the scores table (spec §3). FixtureID may be a
// provider-native id or a synthetic id (see matchidentity).
type Score struct {
	FixtureID string
	HomeScore *int
	AwayScore *int
	Status    string
	UpdatedAt string
}

// UpsertScore inserts or updates the single score row for a fixture id
// (spec §3: "One score per fixture").
func (s *Store) UpsertScore(sc Score) error {
	_, err := s.conn.Exec(`
		INSERT INTO scores (fixture_id, home_score, away_score, status, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(fixture_id) DO UPDATE SET
			home_score = excluded.home_score,
			away_score = excluded.away_score,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, sc.FixtureID, sc.HomeScore, sc.AwayScore, sc.Status)
	if err != nil {
		return fmt.Errorf("store: upsert score: %w", err)
	}
	return nil
}

// GetScore returns the score for a fixture id, or nil if absent.
func (s *Store) GetScore(fixtureID string) (*Score, error) {
	row := s.conn.QueryRow(`SELECT fixture_id, home_score, away_score, status, updated_at FROM scores WHERE fixture_id = ?`, fixtureID)

	var sc Score
	if err := row.Scan(&sc.FixtureID, &sc.HomeScore, &sc.AwayScore, &sc.Status, &sc.UpdatedAt); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get score: %w", err)
	}
	return &sc, nil
}

// FindScoreByTeamsAndDate is the settlement fallback (spec §4.5): when
// a bet's fixture has no score row under its own id, look up a score
// stored under a synthetic id for the same (home, away, date), using
// substring containment on the synthetic id's reconstructed names (the
// synthetic id split is lossy — see matchidentity — so this is a scan,
// not an equality lookup).
func (s *Store) FindScoreByTeamsAndDate(homeTeam, awayTeam, dateYYYYMMDD string) (*Score, error) {
	rows, err := s.conn.Query(`
		SELECT fixture_id, home_score, away_score, status, updated_at
		FROM scores
		WHERE fixture_id LIKE '%' || ? || '%'
	`, dateYYYYMMDD)
	if err != nil {
		return nil, fmt.Errorf("store: find score by teams and date: %w", err)
	}
	defer rows.Close()

	var candidates []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.FixtureID, &sc.HomeScore, &sc.AwayScore, &sc.Status, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan score: %w", err)
		}
		candidates = append(candidates, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sc := range candidates {
		if containsFold(sc.FixtureID, homeTeam) && containsFold(sc.FixtureID, awayTeam) {
			return &sc, nil
		}
	}
	return nil, nil
}

func containsFold(haystack, needle string) bool {
	needle = toUnderscoreLower(needle)
	haystack = toUnderscoreLower(haystack)
	return needle == "" || indexOf(haystack, needle) >= 0
}

func toUnderscoreLower(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			c = '_'
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		b = append(b, c)
	}
	return string(b)
}

func indexOf(haystack, needle string) int {
	n := len(needle)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= len(haystack); i++ {
		if haystack[i:i+n] == needle {
			return i
		}
	}
	return -1
}

// GetUnresolvedScores returns score rows whose fixture id does not
// correspond to any stored fixture: synthetic ids awaiting a
// later-arriving fixture, for the scheduler's batch re-match pass
// (spec §4.8: "call the Matcher in batch over accumulated unmatched
// synthetic-id scores").
func (s *Store) GetUnresolvedScores() ([]Score, error) {
	rows, err := s.conn.Query(`
		SELECT sc.fixture_id, sc.home_score, sc.away_score, sc.status, sc.updated_at
		FROM scores sc
		LEFT JOIN fixtures f ON f.fixture_id = sc.fixture_id
		WHERE f.fixture_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: get unresolved scores: %w", err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.FixtureID, &sc.HomeScore, &sc.AwayScore, &sc.Status, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan unresolved score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// RehomeScore moves a synthetic score row onto a newly matched
// fixture id, replacing any prior row under the old id.
func (s *Store) RehomeScore(oldFixtureID string, resolved Score) error {
	return s.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM scores WHERE fixture_id = ?`, oldFixtureID); err != nil {
			return fmt.Errorf("store: rehome score: delete old row: %w", err)
		}
		_, err := tx.Exec(`
			INSERT INTO scores (fixture_id, home_score, away_score, status, updated_at)
			VALUES (?, ?, ?, ?, datetime('now'))
			ON CONFLICT(fixture_id) DO UPDATE SET
				home_score = excluded.home_score,
				away_score = excluded.away_score,
				status = excluded.status,
				updated_at = excluded.updated_at
		`, resolved.FixtureID, resolved.HomeScore, resolved.AwayScore, resolved.Status)
		if err != nil {
			return fmt.Errorf("store: rehome score: insert new row: %w", err)
		}
		return nil
	})
}

// DeleteScoresByFixtureIDPrefix deletes stale unmatchable synthetic
// score rows (spec §4.8: "clean up stale unmatchable rows, e.g. legacy
// fbref_* ids").
func (s *Store) DeleteScoresByFixtureIDPrefix(prefix string) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM scores WHERE fixture_id LIKE ? || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("store: delete scores by prefix: %w", err)
	}
	return res.RowsAffected()
}
