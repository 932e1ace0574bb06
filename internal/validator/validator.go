// Package validator schema-checks parsed ingestion payloads per source
// kind (spec §4.3). It never touches the store or the subprocess
// boundary; it is a pure function of a decoded JSON value.
package validator

import "fmt"

// SourceKind enumerates the ingestion payload shapes this validator knows.
type SourceKind string

const (
	SourceBetano     SourceKind = "betano"
	SourceFlashscore SourceKind = "flashscore"
	SourceLivescore  SourceKind = "livescore"
	SourceStocks     SourceKind = "stocks"
	SourceCrypto     SourceKind = "crypto"
)

// Result is the Validator's contract: (parsed, {valid, errors, warnings}).
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r Result) ErrorString() string {
	if len(r.Errors) == 0 {
		return ""
	}
	s := r.Errors[0]
	for _, e := range r.Errors[1:] {
		s += "; " + e
	}
	return s
}

// Validate dispatches to the schema check for kind and returns its result.
func Validate(kind SourceKind, payload interface{}) Result {
	switch kind {
	case SourceBetano:
		return validateBetano(payload)
	case SourceFlashscore, SourceLivescore:
		return validateScoreSource(payload)
	case SourceStocks, SourceCrypto:
		return validatePriceSource(payload)
	default:
		return Result{Valid: false, Errors: []string{fmt.Sprintf("unknown source kind %q", kind)}}
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func requireString(m map[string]interface{}, key string, errs *[]string) {
	v, ok := m[key]
	if !ok {
		*errs = append(*errs, fmt.Sprintf("missing field %q", key))
		return
	}
	if _, ok := v.(string); !ok {
		*errs = append(*errs, fmt.Sprintf("field %q must be a string", key))
	}
}

func requireNumber(m map[string]interface{}, key string, errs *[]string) {
	v, ok := m[key]
	if !ok {
		*errs = append(*errs, fmt.Sprintf("missing field %q", key))
		return
	}
	switch v.(type) {
	case float64, int, int64:
	default:
		*errs = append(*errs, fmt.Sprintf("field %q must be numeric", key))
	}
}
