package analysis

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// State is the terminal or intermediate stage reached by a resolution.
type State string

const (
	StateReceived         State = "received"
	StateExtracting       State = "extracting"
	StateExtracted        State = "extracted"
	StateExtractionFailed State = "extraction_failed"
	StateRepairing        State = "repairing"
	StateValidated        State = "validated"
	StateValidationFailed State = "validation_failed"
	StateDone             State = "done"
)

// Outcome is the result of resolving one model reply. Result is always
// schema-complete; Failure is nil when Result came from the model.
type Outcome struct {
	Result  AnalysisResult
	Failure *Failure
	Score   int
	Repairs []string
	// Path lists the states visited, ending in StateDone.
	Path []State
}

// Failed reports whether Result is a fallback record.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// Resolver turns raw model text into an Outcome. The zero value is ready to use.
type Resolver struct {
	// Salvage enables a jsonrepair pass over truncated or malformed replies
	// when strict extraction finds nothing usable.
	Salvage bool
}

// Resolve runs a zero-value Resolver over text.
func Resolve(text string) Outcome {
	return Resolver{}.Resolve(text)
}

// Resolve extracts, repairs and validates text. It never returns an error:
// every failure is folded into a fallback record.
func (r Resolver) Resolve(text string) Outcome {
	out := Outcome{Path: []State{StateReceived, StateExtracting}}

	candidate, err := Extract(text)
	if err != nil && r.Salvage && len(text) <= MaxInputLen {
		if salvaged, ok := salvage(text); ok {
			candidate, err = salvaged, nil
			out.Repairs = append(out.Repairs, RepairSalvagedJSON)
		}
	}
	if err != nil {
		kind := FailureExtraction
		if errors.Is(err, ErrUndecodable) {
			kind = FailureDecode
		}
		out.Path = append(out.Path, StateExtractionFailed)
		return out.fail(Failure{Kind: kind, Detail: err.Error()})
	}
	out.Score = candidate.Score
	out.Path = append(out.Path, StateExtracted, StateRepairing)

	result, repairs, err := Normalize(candidate.Object)
	if err != nil {
		out.Path = append(out.Path, StateValidationFailed)
		return out.fail(FailureFromError(err))
	}
	out.Result = result
	out.Repairs = append(out.Repairs, repairs...)
	out.Path = append(out.Path, StateValidated, StateDone)
	return out
}

func (o Outcome) fail(f Failure) Outcome {
	o.Result = Fallback(f)
	o.Failure = &f
	o.Path = append(o.Path, StateDone)
	return o
}

// salvage repairs the text following the first '{' and accepts it only when it
// decodes to an object carrying at least one required key.
func salvage(text string) (Candidate, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Candidate{}, false
	}
	repaired, err := jsonrepair.JSONRepair(text[start:])
	if err != nil {
		return Candidate{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil || obj == nil {
		return Candidate{}, false
	}
	score := Score(obj)
	if score == 0 {
		return Candidate{}, false
	}
	return Candidate{Start: start, End: len(text), Text: repaired, Object: obj, Score: score}, true
}
