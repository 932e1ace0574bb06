package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Fixture mirrors the fixtures table (spec §3).
type Fixture struct {
	FixtureID      string
	TournamentID   string
	TournamentName string
	HomeTeamID     string
	HomeTeamName   string
	AwayTeamID     string
	AwayTeamName   string
	StartTime      time.Time
	Status         string
	CreatedAt      time.Time
}

// FixtureFilter narrows GetFixtures.
type FixtureFilter struct {
	FixtureID    string
	FromDate     *time.Time
	ToDate       *time.Time
	TournamentID string
}

// UpsertFixture creates a fixture if absent, or updates it in place
// (spec §3: "created once and may be updated in place").
func (s *Store) UpsertFixture(f Fixture) error {
	_, err := s.conn.Exec(`
		INSERT INTO fixtures (fixture_id, tournament_id, tournament_name, home_team_id, home_team_name,
			away_team_id, away_team_name, start_time, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, datetime('now')))
		ON CONFLICT(fixture_id) DO UPDATE SET
			tournament_id = excluded.tournament_id,
			tournament_name = excluded.tournament_name,
			home_team_id = excluded.home_team_id,
			home_team_name = excluded.home_team_name,
			away_team_id = excluded.away_team_id,
			away_team_name = excluded.away_team_name,
			start_time = excluded.start_time,
			status = excluded.status
	`, f.FixtureID, f.TournamentID, f.TournamentName, f.HomeTeamID, f.HomeTeamName,
		f.AwayTeamID, f.AwayTeamName, formatTime(f.StartTime), nonEmptyOrDefault(f.Status, "scheduled"), nullableTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert fixture: %w", err)
	}
	return nil
}

// GetFixtures queries fixtures matching filter.
func (s *Store) GetFixtures(filter FixtureFilter) ([]Fixture, error) {
	query := `SELECT fixture_id, tournament_id, tournament_name, home_team_id, home_team_name,
		away_team_id, away_team_name, start_time, status, created_at FROM fixtures WHERE 1=1`
	var args []interface{}

	if filter.FixtureID != "" {
		query += " AND fixture_id = ?"
		args = append(args, filter.FixtureID)
	}
	if filter.TournamentID != "" {
		query += " AND tournament_id = ?"
		args = append(args, filter.TournamentID)
	}
	if filter.FromDate != nil {
		query += " AND start_time >= ?"
		args = append(args, formatTime(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query += " AND start_time <= ?"
		args = append(args, formatTime(*filter.ToDate))
	}
	query += " ORDER BY start_time"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []Fixture
	for rows.Next() {
		var f Fixture
		var startTime, createdAt string
		if err := rows.Scan(&f.FixtureID, &f.TournamentID, &f.TournamentName, &f.HomeTeamID, &f.HomeTeamName,
			&f.AwayTeamID, &f.AwayTeamName, &startTime, &f.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan fixture: %w", err)
		}
		f.StartTime = parseTime(startTime)
		f.CreatedAt = parseTime(createdAt)
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// GetFixtureByID returns a single fixture or nil.
func (s *Store) GetFixtureByID(fixtureID string) (*Fixture, error) {
	fixtures, err := s.GetFixtures(FixtureFilter{FixtureID: fixtureID})
	if err != nil {
		return nil, err
	}
	if len(fixtures) == 0 {
		return nil, nil
	}
	return &fixtures[0], nil
}

// --- time helpers shared across entity files -------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return t.UTC().Format(time.RFC3339)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nonEmptyOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
