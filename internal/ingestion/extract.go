package ingestion

import (
	"strings"
)

// extractJSON recovers a structured payload from a scraper's raw
// output lines (spec §4.3). It tries, in order: (1) a single-line
// parse of each JSON-candidate line, preferring the latest successful
// one, (2) multi-line reassembly by scanning back over recent
// continuation lines, (3) a full-output balanced-delimiter scan that
// prefers the latest-starting candidate. Every step only accepts a
// decoded root whose shape matches what the source kind expects.
func extractJSON(rawLines []string, source SourceKind) (decodedPayload, bool) {
	clean := make([]string, len(rawLines))
	for i, l := range rawLines {
		clean[i] = strings.TrimSpace(stripANSI(l))
	}

	if payload, ok := trySingleLineCandidates(clean, source); ok {
		return payload, true
	}

	if payload, ok := tryMultiLineReassembly(clean, source); ok {
		return payload, true
	}

	full := strings.Join(clean, "\n")
	return tryBalancedScan(full, source)
}

// trySingleLineCandidates scans candidate lines in reverse so that a
// payload printed after the scraper's progress log (the common case)
// wins over an earlier coincidental JSON-looking line.
func trySingleLineCandidates(lines []string, source SourceKind) (decodedPayload, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !isCandidateStart(line) {
			continue
		}
		if payload, ok := tryDecode(line); ok && matchesExpectedShape(payload.value, source) {
			return payload, true
		}
	}
	return decodedPayload{}, false
}

// tryMultiLineReassembly mirrors the original scraper bridge: taking
// each line (from the end) as the last line of a block, walk backward
// over continuation lines (leading whitespace, ',' or '"') until a
// candidate-start line anchors the block, then attempt to parse the
// joined block. A run with no anchoring candidate line is skipped.
func tryMultiLineReassembly(lines []string, source SourceKind) (decodedPayload, bool) {
	const lookback = 20
	for i := len(lines) - 1; i >= 0; i-- {
		start := i - lookback
		if start < 0 {
			start = 0
		}

		var block []string
		anchored := false
		for j := i; j >= start; j-- {
			l := lines[j]
			if isCandidateStart(l) {
				block = append([]string{l}, block...)
				anchored = true
				break
			}
			if len(block) == 0 || isContinuation(l) {
				block = append([]string{l}, block...)
				continue
			}
			break
		}

		if !anchored {
			continue
		}
		if payload, ok := tryDecode(strings.Join(block, "\n")); ok && matchesExpectedShape(payload.value, source) {
			return payload, true
		}
	}
	return decodedPayload{}, false
}

// candidateDecodes mirrors the real-time half of extractJSON's
// reassembly logic: it checks whether the most recently collected
// line, taken alone or as the tail of a short run of continuation
// lines, already decodes as JSON. It is used by collect() to decide
// whether a bracket/brace-prefixed line is a real payload fragment
// (suppress the log callback) or just a log message that happens to
// start with '[' or '{' (fall back to logging it).
func candidateDecodes(collected []string) bool {
	const lookback = 20
	last := strings.TrimSpace(stripANSI(collected[len(collected)-1]))
	if _, ok := tryDecode(last); ok {
		return true
	}

	start := len(collected) - 1 - lookback
	if start < 0 {
		start = 0
	}

	var block []string
	for j := len(collected) - 1; j >= start; j-- {
		l := strings.TrimSpace(stripANSI(collected[j]))
		if isCandidateStart(l) {
			block = append([]string{l}, block...)
			break
		}
		if len(block) > 0 && isContinuation(l) {
			block = append([]string{l}, block...)
			continue
		}
		break
	}
	if len(block) == 0 {
		return false
	}
	_, ok := tryDecode(strings.Join(block, "\n"))
	return ok
}

func isCandidateStart(line string) bool {
	return strings.HasPrefix(line, "[") || strings.HasPrefix(line, "{")
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") ||
		strings.HasPrefix(line, ",") || strings.HasPrefix(line, "\"")
}

// tryBalancedScan is the last resort: find every '{'/'[' in the full
// accumulated output and, for each (scanned from the end), walk
// forward tracking bracket depth with string-escape awareness until a
// balanced close is found, attempting a decode at each zero-depth
// point. The first successful decode whose root shape matches the
// source's expected shape is accepted.
func tryBalancedScan(output string, source SourceKind) (decodedPayload, bool) {
	var starts []int
	for i, c := range output {
		if c == '{' || c == '[' {
			starts = append(starts, i)
		}
	}

	for i := len(starts) - 1; i >= 0; i-- {
		start := starts[i]
		end, ok := findBalancedEnd(output, start)
		if !ok {
			continue
		}
		payload, ok := tryDecode(output[start : end+1])
		if !ok {
			continue
		}
		if matchesExpectedShape(payload.value, source) {
			return payload, true
		}
	}
	return decodedPayload{}, false
}

// findBalancedEnd walks forward from a '{' or '[' at output[start],
// tracking nesting depth and string/escape state, returning the index
// of the matching closing delimiter.
func findBalancedEnd(output string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := rune(output[i])
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// matchesExpectedShape checks the decoded root value against the
// shape a source kind is expected to emit (spec §4.3): odds sources
// (betano) produce a list or an object carrying league_id/fixtures;
// score sources (flashscore/livescore) produce an object carrying
// matches; price sources (stocks/crypto) produce an object carrying
// symbol/prices.
func matchesExpectedShape(v interface{}, source SourceKind) bool {
	switch source {
	case SourceBetano:
		if _, ok := v.([]interface{}); ok {
			return true
		}
		if m, ok := v.(map[string]interface{}); ok {
			_, hasLeague := m["league_id"]
			_, hasFixtures := m["fixtures"]
			return hasLeague || hasFixtures
		}
		return false
	case SourceFlashscore, SourceLivescore:
		m, ok := v.(map[string]interface{})
		if !ok {
			return false
		}
		_, hasMatches := m["matches"]
		return hasMatches
	case SourceStocks, SourceCrypto:
		m, ok := v.(map[string]interface{})
		if !ok {
			return false
		}
		_, hasSymbol := m["symbol"]
		_, hasPrices := m["prices"]
		return hasSymbol || hasPrices
	}
	return false
}
