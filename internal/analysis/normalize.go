package analysis

import (
	"strings"
)

// Repairs recorded by Normalize.
const (
	RepairDefaultDecision        = "default_decision"
	RepairDefaultRewrite         = "default_rewrite"
	RepairDefaultOFNRD           = "default_ofnr_d"
	RepairDefaultTrustAssessment = "default_trust_assessment"
	RepairJoinedRewriteText      = "joined_rewrite_text"
	RepairNormalizedAction       = "normalized_action"
	RepairSalvagedJSON           = "salvaged_truncated_json"
)

// MissingTrustFlag marks a result whose trust assessment was synthesized.
const MissingTrustFlag = "trust_assessment_missing"

const defaultRationale = "Analysis complete"

// Normalize converts a decoded candidate object into a typed AnalysisResult.
// Missing sections are synthesized and known model quirks are repaired; the
// applied repairs are returned in order. Any schema violation yields a
// validation Failure.
func Normalize(obj map[string]any) (AnalysisResult, []string, error) {
	var (
		result  AnalysisResult
		repairs []string
	)
	if obj == nil {
		return result, nil, newFailure(FailureValidation, "candidate is not an object")
	}

	if raw, ok := obj[KeyOFNRD]; ok {
		section, err := asObject(raw, KeyOFNRD)
		if err != nil {
			return result, nil, err
		}
		ofnrd, err := convertOFNRD(section)
		if err != nil {
			return result, nil, err
		}
		result.OFNRD = ofnrd
	} else {
		repairs = append(repairs, RepairDefaultOFNRD)
	}

	if raw, ok := obj[KeyTrustAssessment]; ok {
		section, err := asObject(raw, KeyTrustAssessment)
		if err != nil {
			return result, nil, err
		}
		trust, err := convertTrust(section)
		if err != nil {
			return result, nil, err
		}
		result.TrustAssessment = trust
	} else {
		result.TrustAssessment = TrustAssessment{Flags: []string{MissingTrustFlag}}
		repairs = append(repairs, RepairDefaultTrustAssessment)
	}

	if raw, ok := obj[KeyDecision]; ok {
		section, err := asObject(raw, KeyDecision)
		if err != nil {
			return result, nil, err
		}
		decision, normalized, err := convertDecision(section)
		if err != nil {
			return result, nil, err
		}
		if normalized {
			repairs = append(repairs, RepairNormalizedAction)
		}
		result.Decision = decision
	} else {
		result.Decision = Decision{Action: ActionNoOp, Rationale: defaultRationale}
		repairs = append(repairs, RepairDefaultDecision)
	}

	if raw, ok := obj[KeyRewrite]; ok {
		section, err := asObject(raw, KeyRewrite)
		if err != nil {
			return result, nil, err
		}
		rewrite, joined, err := convertRewrite(section)
		if err != nil {
			return result, nil, err
		}
		if joined {
			repairs = append(repairs, RepairJoinedRewriteText)
		}
		result.Rewrite = rewrite
	} else {
		repairs = append(repairs, RepairDefaultRewrite)
	}

	return result, repairs, nil
}

func convertOFNRD(section map[string]any) (OFNRD, error) {
	var out OFNRD
	var err error
	if out.Observation, err = optionalString(section, "observation", KeyOFNRD); err != nil {
		return out, err
	}
	if out.Feeling, err = optionalString(section, "feeling", KeyOFNRD); err != nil {
		return out, err
	}
	if out.Need, err = optionalString(section, "need", KeyOFNRD); err != nil {
		return out, err
	}
	if out.Request, err = optionalString(section, "request", KeyOFNRD); err != nil {
		return out, err
	}

	raw, ok := section["confidence"]
	if !ok {
		return out, newFailure(FailureValidation, "ofnr_d.confidence is required")
	}
	conf, err := asObject(raw, "ofnr_d.confidence")
	if err != nil {
		return out, err
	}
	scores := []struct {
		key string
		dst *float64
	}{
		{"observation", &out.Confidence.Observation},
		{"feeling", &out.Confidence.Feeling},
		{"need", &out.Confidence.Need},
		{"request", &out.Confidence.Request},
	}
	for _, s := range scores {
		v, err := unitFloat(conf, s.key, "ofnr_d.confidence")
		if err != nil {
			return out, err
		}
		*s.dst = v
	}
	return out, nil
}

func convertTrust(section map[string]any) (TrustAssessment, error) {
	var out TrustAssessment
	score, err := unitFloat(section, "trust_score", KeyTrustAssessment)
	if err != nil {
		return out, err
	}
	out.TrustScore = score

	raw, ok := section["flags"]
	if !ok {
		return out, newFailure(FailureValidation, "trust_assessment.flags is required")
	}
	list, ok := raw.([]any)
	if !ok {
		return out, newFailure(FailureValidation, "trust_assessment.flags must be a list, got %s", typeName(raw))
	}
	out.Flags = make([]string, 0, len(list))
	for i, item := range list {
		flag, ok := item.(string)
		if !ok {
			return out, newFailure(FailureValidation, "trust_assessment.flags[%d] must be a string, got %s", i, typeName(item))
		}
		out.Flags = append(out.Flags, flag)
	}
	return out, nil
}

func convertDecision(section map[string]any) (Decision, bool, error) {
	var out Decision
	raw, ok := section["action"]
	if !ok {
		return out, false, newFailure(FailureValidation, "decision.action is required")
	}
	action, ok := raw.(string)
	if !ok {
		return out, false, newFailure(FailureValidation, "decision.action must be a string, got %s", typeName(raw))
	}
	canonical := strings.ToUpper(strings.TrimSpace(action))
	if !Action(canonical).Valid() {
		return out, false, newFailure(FailureValidation, "decision.action %q is not a known action", action)
	}
	out.Action = Action(canonical)

	raw, ok = section["rationale"]
	if !ok {
		return out, false, newFailure(FailureValidation, "decision.rationale is required")
	}
	rationale, ok := raw.(string)
	if !ok {
		return out, false, newFailure(FailureValidation, "decision.rationale must be a string, got %s", typeName(raw))
	}
	out.Rationale = rationale
	return out, canonical != action, nil
}

func convertRewrite(section map[string]any) (Rewrite, bool, error) {
	var out Rewrite
	joined := false
	if raw, ok := section["text"]; ok {
		if parts, isList := raw.([]any); isList {
			lines := make([]string, 0, len(parts))
			for i, part := range parts {
				line, ok := part.(string)
				if !ok {
					return out, false, newFailure(FailureValidation, "rewrite.text[%d] must be a string, got %s", i, typeName(part))
				}
				lines = append(lines, line)
			}
			text := strings.Join(lines, "\n")
			out.Text = &text
			joined = true
		} else {
			text, err := optionalString(section, "text", KeyRewrite)
			if err != nil {
				return out, false, err
			}
			out.Text = text
		}
	}
	explanation, err := optionalString(section, "explanation", KeyRewrite)
	if err != nil {
		return out, false, err
	}
	out.Explanation = explanation
	return out, joined, nil
}

func asObject(raw any, path string) (map[string]any, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, newFailure(FailureValidation, "%s must be an object, got %s", path, typeName(raw))
	}
	return obj, nil
}

// optionalString reads a nullable text field; absent and null both map to nil.
func optionalString(section map[string]any, key, path string) (*string, error) {
	raw, ok := section[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, newFailure(FailureValidation, "%s.%s must be a string or null, got %s", path, key, typeName(raw))
	}
	return &s, nil
}

func unitFloat(section map[string]any, key, path string) (float64, error) {
	raw, ok := section[key]
	if !ok {
		return 0, newFailure(FailureValidation, "%s.%s is required", path, key)
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, newFailure(FailureValidation, "%s.%s must be a number, got %s", path, key, typeName(raw))
	}
	if v < 0 || v > 1 {
		return 0, newFailure(FailureValidation, "%s.%s %.3f is outside [0,1]", path, key, v)
	}
	return v, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
