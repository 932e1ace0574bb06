// Package matcher resolves (home, away, time) score tuples to a stored
// fixture via match-identity similarity plus a time window (spec §4.4).
// Grounded on the original ScoreMatcher collaborator
// (arbihawk/data/matchers.py), translated from its pandas-fixture-scan
// shape to direct store queries.
package matcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/antonkoetzler/arbihawk/internal/matchidentity"
	"github.com/antonkoetzler/arbihawk/internal/store"
)

// Config tunes matching behaviour.
type Config struct {
	ToleranceHours int
	MinMatchScore  int
}

// Unmatched records a score that could not be resolved to a fixture.
type Unmatched struct {
	HomeTeam  string
	AwayTeam  string
	MatchTime string
	Reason    string
}

// Matcher is the stateful collaborator: it accumulates an in-memory
// unmatched log across calls (spec §4.4).
type Matcher struct {
	store  *store.Store
	cfg    Config
	mu     sync.Mutex
	unmatched []Unmatched
}

// New constructs a Matcher bound to a store, applying config defaults.
func New(s *store.Store, cfg Config) *Matcher {
	if cfg.ToleranceHours <= 0 {
		cfg.ToleranceHours = 24
	}
	if cfg.MinMatchScore <= 0 {
		cfg.MinMatchScore = 75
	}
	return &Matcher{store: s, cfg: cfg}
}

// MatchScore finds the best fixture for a score tuple, or "" if none
// clears the threshold (spec §4.4).
func (m *Matcher) MatchScore(homeTeam, awayTeam, matchTime string) string {
	matchDT, ok := parseMatchTime(matchTime)
	if !ok {
		m.logUnmatched(homeTeam, awayTeam, matchTime, "unparseable match time")
		return ""
	}

	from := matchDT.Add(-time.Duration(m.cfg.ToleranceHours) * time.Hour)
	to := matchDT.Add(time.Duration(m.cfg.ToleranceHours) * time.Hour)

	fixtures, err := m.store.GetFixtures(store.FixtureFilter{FromDate: &from, ToDate: &to})
	if err != nil || len(fixtures) == 0 {
		m.logUnmatched(homeTeam, awayTeam, matchTime, "no fixtures in window")
		return ""
	}

	var best string
	bestScore := -1
	for _, fx := range fixtures {
		homeSim := matchidentity.Similarity(homeTeam, fx.HomeTeamName)
		awaySim := matchidentity.Similarity(awayTeam, fx.AwayTeamName)
		combined := (homeSim + awaySim) / 2

		if combined > bestScore {
			bestScore = combined
			best = fx.FixtureID
		}
	}

	if bestScore < m.cfg.MinMatchScore {
		m.logUnmatched(homeTeam, awayTeam, matchTime, fmt.Sprintf("best score %d below threshold %d", bestScore, m.cfg.MinMatchScore))
		return ""
	}
	return best
}

// BatchResult aggregates MatchScore over a collection of scores (spec §4.4).
type BatchResult struct {
	Total     int
	Matched   int
	Unmatched int
	MatchRate float64
	Results   []BatchItem
}

// BatchItem is one scored entry's outcome within a batch.
type BatchItem struct {
	HomeTeam  string
	AwayTeam  string
	MatchTime string
	FixtureID string
	Matched   bool
}

// MatchBatch matches a collection of score tuples and aggregates the outcome.
func (m *Matcher) MatchBatch(items []BatchItem) BatchResult {
	result := BatchResult{Total: len(items)}
	for _, item := range items {
		fixtureID := m.MatchScore(item.HomeTeam, item.AwayTeam, item.MatchTime)
		item.FixtureID = fixtureID
		item.Matched = fixtureID != ""
		if item.Matched {
			result.Matched++
		} else {
			result.Unmatched++
		}
		result.Results = append(result.Results, item)
	}
	if result.Total > 0 {
		result.MatchRate = float64(result.Matched) / float64(result.Total)
	}
	return result
}

// GetUnmatched returns a snapshot copy of the unmatched log.
func (m *Matcher) GetUnmatched() []Unmatched {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Unmatched, len(m.unmatched))
	copy(out, m.unmatched)
	return out
}

// ClearUnmatched empties the unmatched log.
func (m *Matcher) ClearUnmatched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmatched = nil
}

func (m *Matcher) logUnmatched(home, away, matchTime, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmatched = append(m.unmatched, Unmatched{HomeTeam: home, AwayTeam: away, MatchTime: matchTime, Reason: reason})
}

func parseMatchTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
