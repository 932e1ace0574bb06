package store

import (
	"fmt"
	"time"
)

// JSONSafe recursively coerces a decoded JSON value into a form safe
// to persist and re-marshal (spec §4.1 "JSON safety"): numeric values
// that survived decoding as strings are coerced back to float64 where
// unambiguous, timestamps are normalised to RFC3339 strings, and
// map/slice structure is otherwise preserved as-is.
func JSONSafe(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = JSONSafe(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = JSONSafe(vv)
		}
		return out
	case string:
		if t, ok := tryParseTimestamp(val); ok {
			return t.UTC().Format(time.RFC3339)
		}
		if f, ok := tryParseNumericString(val); ok {
			return f
		}
		return val
	default:
		return val
	}
}

func tryParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func tryParseNumericString(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	var f float64
	n, err := fmt.Sscanf(s, "%f", &f)
	if err != nil || n != 1 {
		return 0, false
	}
	// reject partial-prefix matches like "12abc" or strings with stray
	// trailing characters that Sscanf silently ignores
	if formatted := fmt.Sprintf("%v", f); !looksFullyNumeric(s) && formatted != s {
		return 0, false
	}
	return f, true
}

func looksFullyNumeric(s string) bool {
	seenDigit := false
	seenDot := false
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '-' || c == '+') && i == 0:
			// leading sign ok
		default:
			return false
		}
	}
	return seenDigit
}
