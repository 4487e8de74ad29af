package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// FeedbackContext describes where the feedback was written.
type FeedbackContext struct {
	Domain   string             `json:"domain"`
	Metadata map[string]*string `json:"metadata"`
}

// FeedbackInput is one analysis request.
type FeedbackInput struct {
	ReviewText       string           `json:"review_text"`
	Rating           *int             `json:"rating,omitempty"`
	Context          *FeedbackContext `json:"context,omitempty"`
	PreviousDecision *string          `json:"previous_decision,omitempty"`
}

// DefaultContext is applied when a request carries no context.
func DefaultContext() FeedbackContext {
	return FeedbackContext{Domain: "university", Metadata: map[string]*string{"course_policy": nil}}
}

// SystemPrompt instructs the model to answer with a single OFNR-D JSON object.
const SystemPrompt = `You are a TP-RIS (Trust-Preserving Review Intelligence System) engine.
Your goal is to analyze feedback using the OFNR-D framework from Nonviolent Communication (NVC).

You MUST respond with ONLY valid JSON matching this EXACT structure:
{
  "ofnr_d": {
    "observation": "factual description of what happened",
    "feeling": "emotional state identified",
    "need": "unmet need or expectation",
    "request": "constructive, actionable request",
    "confidence": {"observation": 0.0, "feeling": 0.0, "need": 0.0, "request": 0.0}
  },
  "trust_assessment": {"trust_score": 0.0, "flags": []},
  "decision": {"action": "NO_OP", "rationale": "explanation"},
  "rewrite": {"text": "improved version of feedback", "explanation": "what was improved"}
}

OFNR-D RULES (Nonviolent Communication):
1. OBSERVATION: What factual events/situations are described?
2. FEELING: What emotions are expressed or implied?
3. NEED: What underlying need is unmet (respect, clarity, fairness, support, etc.)?
4. REQUEST: ALWAYS provide a constructive, specific, achievable request that addresses the Need.

DECISION AND REWRITE RULES:
- NO_OP: Only if feedback is ALREADY constructive and polite. rewrite.text = null
- SUGGEST_CLARIFICATION: Needs more specificity. MUST provide rewrite.text with a clearer version
- PARTIAL_REWRITE: Some parts need improvement. MUST provide rewrite.text
- FULL_REWRITE: Major improvements needed. MUST provide rewrite.text in NVC format
- FLAG: Contains attacks/manipulation. MUST provide rewrite.text with a constructive alternative

If decision is NOT "NO_OP", rewrite.text MUST hold an improved, constructive version of the
feedback that expresses the same concerns in a respectful, clear way.

Return a SINGLE complete JSON object with ALL keys: ofnr_d, trust_assessment, decision, rewrite.`

// BuildUserPrompt renders the per-request part of the prompt.
func BuildUserPrompt(input FeedbackInput) string {
	builder := &strings.Builder{}
	builder.WriteString("Analyze this feedback:\n\n")
	fmt.Fprintf(builder, "TEXT: %q\n", strings.TrimSpace(input.ReviewText))
	if input.Rating != nil {
		fmt.Fprintf(builder, "RATING: %d\n", *input.Rating)
	}
	ctx := DefaultContext()
	if input.Context != nil {
		ctx = *input.Context
	}
	if domain := strings.TrimSpace(ctx.Domain); domain != "" {
		fmt.Fprintf(builder, "DOMAIN: %s\n", domain)
	}
	keys := make([]string, 0, len(ctx.Metadata))
	for key, value := range ctx.Metadata {
		if value != nil && strings.TrimSpace(*value) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(builder, "%s: %s\n", strings.ToUpper(key), strings.TrimSpace(*ctx.Metadata[key]))
	}
	if input.PreviousDecision != nil && strings.TrimSpace(*input.PreviousDecision) != "" {
		fmt.Fprintf(builder, "PREVIOUS DECISION: %s\n", strings.TrimSpace(*input.PreviousDecision))
	}
	builder.WriteString("\nReturn ONLY a complete JSON object with ofnr_d, trust_assessment, decision, and rewrite:")
	return builder.String()
}

// BuildPrompt concatenates the system prompt and the user prompt.
func BuildPrompt(input FeedbackInput) string {
	return SystemPrompt + "\n\n" + BuildUserPrompt(input)
}
