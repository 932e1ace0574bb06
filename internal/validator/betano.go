package validator

import "strconv"

// validateBetano accepts either a bare list of leagues or a single
// league object carrying league_id + fixtures (spec §6: "Odds-source
// root JSON: either a list of leagues, or an object containing
// league_id and fixtures").
func validateBetano(payload interface{}) Result {
	var errs, warnings []string

	leagues, ok := asSlice(payload)
	if !ok {
		league, ok := asMap(payload)
		if !ok {
			return Result{Valid: false, Errors: []string{"root must be a list of leagues or a single league object"}}
		}
		requireString(league, "league_id", &errs)
		fixtures, ok := asSlice(league["fixtures"])
		if !ok {
			errs = append(errs, "missing or non-array field \"fixtures\"")
		} else {
			validateFixturesArray(fixtures, &errs, &warnings)
		}
		return Result{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
	}

	if len(leagues) == 0 {
		warnings = append(warnings, "empty league list")
	}
	for i, l := range leagues {
		league, ok := asMap(l)
		if !ok {
			errs = append(errs, "league entry is not an object")
			continue
		}
		requireString(league, "league_id", &errs)
		fixtures, ok := asSlice(league["fixtures"])
		if !ok {
			errs = append(errs, "league missing or non-array field \"fixtures\"")
			continue
		}
		var ferrs []string
		validateFixturesArray(fixtures, &ferrs, &warnings)
		for _, e := range ferrs {
			errs = append(errs, labelIndex(i, e))
		}
	}
	return Result{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func validateFixturesArray(fixtures []interface{}, errs, warnings *[]string) {
	for _, f := range fixtures {
		fixture, ok := asMap(f)
		if !ok {
			*errs = append(*errs, "fixture entry is not an object")
			continue
		}
		requireString(fixture, "fixture_id", errs)
		requireString(fixture, "home_team_id", errs)
		requireString(fixture, "home_team_name", errs)
		requireString(fixture, "away_team_id", errs)
		requireString(fixture, "away_team_name", errs)
		requireString(fixture, "start_time", errs)
		requireString(fixture, "status", errs)

		odds, ok := asSlice(fixture["odds"])
		if !ok {
			*warnings = append(*warnings, "fixture has no odds array")
			continue
		}
		for _, o := range odds {
			row, ok := asMap(o)
			if !ok {
				*errs = append(*errs, "odds entry is not an object")
				continue
			}
			requireString(row, "market_id", errs)
			requireString(row, "market_name", errs)
			requireString(row, "outcome_id", errs)
			requireString(row, "outcome_name", errs)
			requireNumber(row, "odds_value", errs)
		}
	}
}

func labelIndex(i int, msg string) string {
	return "league[" + strconv.Itoa(i) + "]: " + msg
}
