package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullResultJSON = `{"ofnr_d":{"observation":"The lecture ran late","feeling":"frustrated","need":"predictability","request":"Could lectures end on time?","confidence":{"observation":0.9,"feeling":0.7,"need":0.6,"request":0.8}},"trust_assessment":{"trust_score":0.75,"flags":[]},"decision":{"action":"PARTIAL_REWRITE","rationale":"tone"},"rewrite":{"text":"I would appreciate lectures ending on time.","explanation":"softer"}}`

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrNoCandidate},
		{"no braces", "not json at all", ErrNoCandidate},
		{"object without required keys", `{"answer": 42}`, ErrNoCandidate},
		{"only unbalanced", `{"decision": {"action": "FLAG"`, ErrNoCandidate},
		{"balanced but undecodable", `{oops} and {nope}`, ErrUndecodable},
		{"closing brace only", `}}}`, ErrNoCandidate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract(tc.text)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestExtractIgnoresBracesInStrings(t *testing.T) {
	text := `{"decision":{"action":"FLAG","rationale":"a \" b { c } \" }"}}`
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, 0, candidate.Start)
	assert.Equal(t, text, candidate.Text)
	assert.Equal(t, 1, candidate.Score)

	decision := candidate.Object[KeyDecision].(map[string]any)
	assert.Equal(t, `a " b { c } " }`, decision["rationale"])
}

func TestExtractEscapedBackslashBeforeQuote(t *testing.T) {
	// The string ends after an escaped backslash, so the following brace counts.
	text := `{"rewrite":{"text":"C:\\","explanation":null}} trailing }`
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, `{"rewrite":{"text":"C:\\","explanation":null}}`, candidate.Text)
}

func TestExtractPrefersHigherScore(t *testing.T) {
	text := `first {"decision":{"action":"NO_OP","rationale":"x"}} then ` + fullResultJSON
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, 4, candidate.Score)
	assert.Equal(t, fullResultJSON, candidate.Text)
}

func TestExtractTieGoesToLowestOffset(t *testing.T) {
	first := `{"decision":{"action":"FLAG","rationale":"first"}}`
	second := `{"rewrite":{"text":"second"}}`
	candidate, err := Extract("a " + first + " b " + second)
	require.NoError(t, err)
	assert.Equal(t, 2, candidate.Start)
	assert.Equal(t, first, candidate.Text)
}

func TestExtractFindsObjectNestedInProseBraces(t *testing.T) {
	inner := `{"decision":{"action":"FLAG","rationale":"r"},"rewrite":{"text":null}}`
	text := "note {see " + inner + " end}"
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, inner, candidate.Text)
	assert.Equal(t, 2, candidate.Score)
}

func TestExtractRecoversAfterUnbalancedStart(t *testing.T) {
	inner := `{"trust_assessment":{"trust_score":0.5,"flags":["x"]}}`
	candidate, err := Extract("{ broken " + inner)
	require.NoError(t, err)
	assert.Equal(t, inner, candidate.Text)
	assert.Equal(t, 9, candidate.Start)
}

func TestExtractBackslashOutsideStringHasNoEffect(t *testing.T) {
	text := `\{"decision":{"action":"NO_OP","rationale":"ok"}}`
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, 1, candidate.Start)
}

func TestExtractStartInsideEarlierString(t *testing.T) {
	inner := `{"decision":{"action":"FLAG","rationale":"r"}}`
	candidate, err := Extract(`{"note": "` + inner)
	require.NoError(t, err)
	assert.Equal(t, inner, candidate.Text)
	assert.Equal(t, 10, candidate.Start)
}

func TestExtractLongUnbalancedInput(t *testing.T) {
	_, err := Extract(strings.Repeat("{", 512<<10))
	require.ErrorIs(t, err, ErrNoCandidate)

	text := strings.Repeat("{", 256<<10) + `{"rewrite":{"text":"ok"}}`
	candidate, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, 256<<10, candidate.Start)
}

func TestExtractRejectsOversizedInput(t *testing.T) {
	text := `{"decision":{"action":"NO_OP","rationale":"ok"}}` + strings.Repeat(" ", MaxInputLen)
	_, err := Extract(text)
	require.ErrorIs(t, err, ErrNoCandidate)
	assert.Contains(t, err.Error(), "limit")

	out := Resolver{Salvage: true}.Resolve(text)
	require.True(t, out.Failed())
	assert.Equal(t, []string{"extraction_error"}, out.Result.TrustAssessment.Flags)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0, Score(map[string]any{"other": 1}))
	assert.Equal(t, 2, Score(map[string]any{"decision": nil, "rewrite": 1, "other": 1}))
	assert.Equal(t, 4, Score(map[string]any{"ofnr_d": 1, "trust_assessment": 1, "decision": 1, "rewrite": 1}))
}
