package analysis

// Action is the decision taken for a piece of feedback.
type Action string

const (
	ActionNoOp                 Action = "NO_OP"
	ActionSuggestClarification Action = "SUGGEST_CLARIFICATION"
	ActionPartialRewrite       Action = "PARTIAL_REWRITE"
	ActionFullRewrite          Action = "FULL_REWRITE"
	ActionFlag                 Action = "FLAG"
)

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionNoOp, ActionSuggestClarification, ActionPartialRewrite, ActionFullRewrite, ActionFlag:
		return true
	}
	return false
}

// Confidence holds one score per OFNR component, each in [0,1].
type Confidence struct {
	Observation float64 `json:"observation"`
	Feeling     float64 `json:"feeling"`
	Need        float64 `json:"need"`
	Request     float64 `json:"request"`
}

// OFNRD is the Observation/Feeling/Need/Request breakdown of the feedback.
type OFNRD struct {
	Observation *string    `json:"observation"`
	Feeling     *string    `json:"feeling"`
	Need        *string    `json:"need"`
	Request     *string    `json:"request"`
	Confidence  Confidence `json:"confidence"`
}

// TrustAssessment carries the model's self-assessed trust score and any flags.
type TrustAssessment struct {
	TrustScore float64  `json:"trust_score"`
	Flags      []string `json:"flags"`
}

// Decision is the action chosen for the feedback and why.
type Decision struct {
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
}

// Rewrite is the optional improved version of the feedback.
type Rewrite struct {
	Text        *string `json:"text"`
	Explanation *string `json:"explanation"`
}

// AnalysisResult is the structured record returned for every analysis request.
type AnalysisResult struct {
	OFNRD           OFNRD           `json:"ofnr_d"`
	TrustAssessment TrustAssessment `json:"trust_assessment"`
	Decision        Decision        `json:"decision"`
	Rewrite         Rewrite         `json:"rewrite"`
}

// Top-level keys every complete result carries.
const (
	KeyOFNRD           = "ofnr_d"
	KeyTrustAssessment = "trust_assessment"
	KeyDecision        = "decision"
	KeyRewrite         = "rewrite"
)

// RequiredKeys lists the top-level keys used for candidate scoring.
var RequiredKeys = [...]string{KeyOFNRD, KeyTrustAssessment, KeyDecision, KeyRewrite}
