package validator

// validateScoreSource checks the flashscore/livescore root shape: an
// object with a "matches" array (spec §6: "Score-source root JSON:
// object with a matches array"). Each match's scores may be absent
// (in-play / unstarted) — only the team-name and time fields are
// strictly required.
func validateScoreSource(payload interface{}) Result {
	root, ok := asMap(payload)
	if !ok {
		return Result{Valid: false, Errors: []string{"root must be an object"}}
	}

	matches, ok := asSlice(root["matches"])
	if !ok {
		return Result{Valid: false, Errors: []string{"missing or non-array field \"matches\""}}
	}

	var errs, warnings []string
	if len(matches) == 0 {
		warnings = append(warnings, "empty matches array")
	}

	for _, m := range matches {
		match, ok := asMap(m)
		if !ok {
			errs = append(errs, "match entry is not an object")
			continue
		}

		if !hasAnyString(match, "home_team_name", "home_team") {
			errs = append(errs, "match missing home_team_name/home_team")
		}
		if !hasAnyString(match, "away_team_name", "away_team") {
			errs = append(errs, "match missing away_team_name/away_team")
		}
		if !hasAnyString(match, "start_time", "match_date") {
			errs = append(errs, "match missing start_time/match_date")
		}

		_, hasHomeScore := match["home_score"]
		_, hasAwayScore := match["away_score"]
		if hasHomeScore != hasAwayScore {
			warnings = append(warnings, "match has only one of home_score/away_score present")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func hasAnyString(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if _, ok := v.(string); ok {
				return true
			}
		}
	}
	return false
}
