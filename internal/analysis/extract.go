package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxInputLen caps the reply size Extract will scan. Model replies are a few
// kilobytes; anything past this is rejected as carrying no candidate.
const MaxInputLen = 1 << 20

var (
	// ErrNoCandidate means the text held no JSON object carrying any required key.
	ErrNoCandidate = errors.New("no analysis object found in model response")
	// ErrUndecodable means balanced spans were found but none of them was valid JSON.
	ErrUndecodable = errors.New("model response contained no decodable JSON object")
)

// Candidate is a brace-balanced span of the input that parsed to a JSON object.
type Candidate struct {
	Start  int
	End    int
	Text   string
	Object map[string]any
	Score  int
}

type scanState int

const (
	stateNormal scanState = iota
	stateInString
	stateInStringEscaped
)

// Extract returns the highest-scoring JSON object embedded in text. Ties go to
// the candidate with the lowest start offset; each offset yields at most one span.
func Extract(text string) (Candidate, error) {
	if len(text) > MaxInputLen {
		return Candidate{}, fmt.Errorf("%w: reply is %d bytes, limit is %d", ErrNoCandidate, len(text), MaxInputLen)
	}

	var (
		best      Candidate
		found     bool
		spans     int
		undecoded int
	)
	matches := make(braceMatches, len(text))

	for offset := 0; offset < len(text); {
		idx := strings.IndexByte(text[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx
		offset = start + 1

		end, ok := matches.resolve(text, start)
		if !ok {
			continue
		}
		spans++

		span := text[start : end+1]
		var parsed any
		if err := json.Unmarshal([]byte(span), &parsed); err != nil {
			undecoded++
			continue
		}
		obj, isObject := parsed.(map[string]any)
		if !isObject {
			continue
		}
		score := Score(obj)
		if score == 0 || (found && score <= best.Score) {
			continue
		}
		best = Candidate{Start: start, End: end + 1, Text: span, Object: obj, Score: score}
		found = true
	}

	if found {
		return best, nil
	}
	if spans > 0 && undecoded == spans {
		return Candidate{}, ErrUndecodable
	}
	return Candidate{}, ErrNoCandidate
}

// braceMatches holds, per byte offset, the outcome of matching the '{' there:
// 0 while unknown, -1 when it never closes, otherwise the closing offset plus one.
type braceMatches []int

// resolve returns the index of the brace that closes the '{' at start.
// Braces inside string literals are ignored.
func (m braceMatches) resolve(text string, start int) (int, bool) {
	if m[start] == 0 {
		m.scanFrom(text, start)
	}
	if m[start] < 0 {
		return 0, false
	}
	return m[start] - 1, true
}

// scanFrom walks text from the '{' at start until that brace closes. A '{'
// met outside a string along the way would start the identical walk from its
// own offset, so its match is settled by this pass as well.
func (m braceMatches) scanFrom(text string, start int) {
	var open []int
	state := stateNormal
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch state {
		case stateInStringEscaped:
			state = stateInString
		case stateInString:
			switch ch {
			case '\\':
				state = stateInStringEscaped
			case '"':
				state = stateNormal
			}
		case stateNormal:
			switch ch {
			case '"':
				state = stateInString
			case '{':
				open = append(open, i)
			case '}':
				top := open[len(open)-1]
				open = open[:len(open)-1]
				m[top] = i + 1
				if len(open) == 0 {
					return
				}
			}
		}
	}
	for _, idx := range open {
		m[idx] = -1
	}
}

// Score counts how many required top-level keys obj carries.
func Score(obj map[string]any) int {
	score := 0
	for _, key := range RequiredKeys {
		if _, ok := obj[key]; ok {
			score++
		}
	}
	return score
}
