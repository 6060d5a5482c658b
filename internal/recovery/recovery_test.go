package recovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck/backend/internal/factcheck"
)

func TestRecoverIgnoresSurroundingProse(t *testing.T) {
	raw := `Here you go: {"reliability_score": 7, "is_factual": true, "analysis": "ok", "transcription": "x"} Thanks!`

	v, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, 7, v.ReliabilityScore)
	assert.True(t, v.IsFactual)
	assert.Equal(t, "ok", v.Analysis)
	assert.Equal(t, factcheck.ReliabilityIndicator{Score: 7, Color: factcheck.ColorMedium}, v.ReliabilityIndicator)
}

func TestRecoverNoBraceIsNoJSONFound(t *testing.T) {
	_, err := Recover("I could not analyze this content, sorry.")
	require.Error(t, err)
	assert.Equal(t, factcheck.ErrNoJSONFound, factcheck.KindOf(err))
	assert.Equal(t, "I could not analyze this content, sorry.", factcheck.AsError(err).Raw)
}

func TestRecoverIsIdempotentOnValidJSON(t *testing.T) {
	input := `{"transcription":"A  post   with spacing","reliability_score":3,"reliability_explanation":"weak",` +
		`"is_factual":false,"analysis":"Mostly wrong.","key_claims":["c1","c2"],` +
		`"false_claims":[{"claim":"c1","correction":"not c1"}],` +
		`"sources":[{"title":"Snopes","url":"https://www.snopes.com/x","relevance":"c1"}]}`

	v, err := Recover(input)
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)

	var want, got map[string]any
	require.NoError(t, json.Unmarshal([]byte(input), &want))
	require.NoError(t, json.Unmarshal(out, &got))
	delete(got, "reliability_indicator")
	assert.Equal(t, want, got)
}

func TestRecoverRepairsRawLineBreaks(t *testing.T) {
	raw := "```json\n{\"reliability_score\": 9,\n\t\"is_factual\": true,\n\"analysis\": \"line one\nline two\"}\n```"

	v, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "line one line two", v.Analysis)
	assert.Equal(t, factcheck.ColorHigh, v.ReliabilityIndicator.Color)
}

func TestRecoverStripsControlCharacters(t *testing.T) {
	raw := "{\"reliability_score\": 5, \"is_factual\": true, \"analysis\": \"a\x00b\x1fc\"}"

	v, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "abc", v.Analysis)
}

func TestRecoverMalformedJSON(t *testing.T) {
	_, err := Recover(`Result: {"reliability_score": 7, "is_factual": tru}`)
	require.Error(t, err)
	assert.Equal(t, factcheck.ErrMalformedJSON, factcheck.KindOf(err))
	assert.NotContains(t, factcheck.AsError(err).UserMessage(), "Result:")
}

func TestRecoverIncompleteVerdict(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "missing score", raw: `{"is_factual": true}`, field: "reliability_score"},
		{name: "score out of range", raw: `{"reliability_score": 11, "is_factual": true}`, field: "reliability_score"},
		{name: "score zero", raw: `{"reliability_score": 0, "is_factual": true}`, field: "reliability_score"},
		{name: "fractional score", raw: `{"reliability_score": 6.5, "is_factual": true}`, field: "reliability_score"},
		{name: "string score", raw: `{"reliability_score": "7", "is_factual": true}`, field: "reliability_score"},
		{name: "missing is_factual", raw: `{"reliability_score": 7}`, field: "is_factual"},
		{name: "non-bool is_factual", raw: `{"reliability_score": 7, "is_factual": "yes"}`, field: "is_factual"},
		{name: "empty analysis", raw: `{"reliability_score": 7, "is_factual": true, "analysis": "  "}`, field: "analysis"},
		{name: "bad sources", raw: `{"reliability_score": 7, "is_factual": true, "sources": ["https://x"]}`, field: "sources"},
		{name: "bad false claims", raw: `{"reliability_score": 7, "is_factual": true, "false_claims": "none"}`, field: "false_claims"},
		{name: "bad key claims", raw: `{"reliability_score": 7, "is_factual": true, "key_claims": [1, 2]}`, field: "key_claims"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Recover(tc.raw)
			require.Error(t, err)
			fe := factcheck.AsError(err)
			assert.Equal(t, factcheck.ErrIncompleteVerdict, fe.Kind)
			assert.Equal(t, tc.field, fe.Field)
			assert.Equal(t, tc.raw, fe.Raw)
		})
	}
}

func TestRecoverIgnoresUpstreamIndicator(t *testing.T) {
	v, err := Recover(`{"reliability_score": 4, "is_factual": false, "reliability_indicator": {"score": 10, "color": "high"}}`)
	require.NoError(t, err)
	assert.Equal(t, factcheck.ReliabilityIndicator{Score: 4, Color: factcheck.ColorLow}, v.ReliabilityIndicator)
}

func TestRecoverTreatsNullAsAbsent(t *testing.T) {
	v, err := Recover(`{"reliability_score": 8, "is_factual": true, "analysis": null, "sources": null}`)
	require.NoError(t, err)
	assert.Empty(t, v.Analysis)
	assert.Nil(t, v.Sources)
}
