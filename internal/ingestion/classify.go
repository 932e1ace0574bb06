package ingestion

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile("\x1B(?:[@-Z\\\\-_]|\\[[0-?]*[ -/]*[@-~])")

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// classify strips ANSI codes from a scraper output line, decides
// whether it is a JSON candidate (leading '[' or '{'), and when it
// isn't, derives a log level from Unicode status symbols or bracket
// prefixes (spec §4.3).
func classify(line string) (level, message string, isJSONCandidate bool) {
	clean := strings.TrimSpace(stripANSI(line))
	if clean == "" {
		return "info", "", false
	}
	if strings.HasPrefix(clean, "[") || strings.HasPrefix(clean, "{") {
		return logLevel(clean), clean, true
	}
	return logLevel(clean), clean, false
}

func logLevel(clean string) string {
	switch {
	case strings.Contains(clean, "✗"):
		return "error"
	case strings.Contains(clean, "⚠"):
		return "warning"
	case strings.Contains(clean, "✓"):
		return "success"
	case strings.Contains(clean, "ℹ"):
		return "info"
	}

	upper := strings.ToUpper(clean)
	switch {
	case strings.Contains(upper, "[ERROR]"):
		return "error"
	case strings.Contains(upper, "[WARNING]"), strings.Contains(upper, "[WARN]"):
		return "warning"
	case strings.Contains(upper, "[OK]"), strings.Contains(upper, "[SUCCESS]"):
		return "success"
	}
	return "info"
}
