// Package recovery extracts a verdict from free-form model output.
package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"factcheck/backend/internal/factcheck"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x{7F}-\x{9F}]`)
	lineBreaksTabs = regexp.MustCompile(`[\n\r\t]`)
	spaceRuns      = regexp.MustCompile(` +`)
)

// Recover locates the outermost JSON object in raw, parses it and validates
// the verdict fields. The returned verdict always carries a derived
// reliability indicator.
func Recover(raw string) (factcheck.Verdict, error) {
	candidate, ok := extractObject(raw)
	if !ok {
		return factcheck.Verdict{}, &factcheck.Error{Kind: factcheck.ErrNoJSONFound, Message: "no JSON object found in response", Raw: raw}
	}

	fields, err := parseObject(candidate)
	if err != nil {
		fields, err = parseObject(repair(candidate))
	}
	if err != nil {
		return factcheck.Verdict{}, &factcheck.Error{Kind: factcheck.ErrMalformedJSON, Message: err.Error(), Raw: raw, Err: err}
	}

	verdict, err := validate(fields)
	if err != nil {
		if fe, ok := err.(*factcheck.Error); ok {
			fe.Raw = raw
		}
		return factcheck.Verdict{}, err
	}
	verdict.ReliabilityIndicator = factcheck.IndicatorFor(verdict.ReliabilityScore)
	return verdict, nil
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// repair removes control characters, turns line breaks and tabs into
// spaces and collapses runs of spaces.
func repair(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = lineBreaksTabs.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func parseObject(s string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	if fields == nil {
		return nil, fmt.Errorf("response JSON is not an object")
	}
	return fields, nil
}

func validate(fields map[string]json.RawMessage) (factcheck.Verdict, error) {
	var v factcheck.Verdict

	score, ok := present(fields, "reliability_score")
	if !ok {
		return v, incomplete("reliability_score", "is missing")
	}
	var n float64
	if err := json.Unmarshal(score, &n); err != nil || n != math.Trunc(n) || n < 1 || n > 10 {
		return v, incomplete("reliability_score", "must be an integer between 1 and 10")
	}
	v.ReliabilityScore = int(n)

	factual, ok := present(fields, "is_factual")
	if !ok {
		return v, incomplete("is_factual", "is missing")
	}
	if err := json.Unmarshal(factual, &v.IsFactual); err != nil {
		return v, incomplete("is_factual", "must be a boolean")
	}

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"analysis", &v.Analysis},
		{"transcription", &v.Transcription},
	} {
		raw, ok := present(fields, field.name)
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, field.dst); err != nil || strings.TrimSpace(*field.dst) == "" {
			return v, incomplete(field.name, "must be a non-empty string")
		}
	}

	if raw, ok := present(fields, "reliability_explanation"); ok {
		if err := json.Unmarshal(raw, &v.ReliabilityExplanation); err != nil {
			return v, incomplete("reliability_explanation", "must be a string")
		}
	}
	if raw, ok := present(fields, "false_claims"); ok {
		if err := strictUnmarshal(raw, &v.FalseClaims); err != nil {
			return v, incomplete("false_claims", "must be an array of {claim, correction} objects")
		}
	}
	if raw, ok := present(fields, "sources"); ok {
		if err := strictUnmarshal(raw, &v.Sources); err != nil {
			return v, incomplete("sources", "must be an array of {title, url, relevance} objects")
		}
	}
	if raw, ok := present(fields, "key_claims"); ok {
		if err := json.Unmarshal(raw, &v.KeyClaims); err != nil {
			return v, incomplete("key_claims", "must be an array of strings")
		}
	}
	return v, nil
}

// present treats an explicit null the same as an absent key.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// strictUnmarshal rejects arrays whose elements are not objects.
func strictUnmarshal(raw json.RawMessage, dst any) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return err
	}
	for _, elem := range elems {
		if trimmed := bytes.TrimSpace(elem); len(trimmed) == 0 || trimmed[0] != '{' {
			return fmt.Errorf("array element is not an object")
		}
	}
	return json.Unmarshal(raw, dst)
}

func incomplete(field, problem string) *factcheck.Error {
	return &factcheck.Error{
		Kind:    factcheck.ErrIncompleteVerdict,
		Message: field + " " + problem,
		Field:   field,
	}
}
