package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why an analysis fell back to the default record.
type FailureKind int

const (
	FailureExtraction FailureKind = iota + 1
	FailureDecode
	FailureValidation
	FailureTransport
	FailureSystem
)

// Code returns the symbolic flag placed in trust_assessment.flags.
func (k FailureKind) Code() string {
	switch k {
	case FailureExtraction:
		return "extraction_error"
	case FailureDecode:
		return "json_parse_error"
	case FailureValidation:
		return "schema_validation_error"
	case FailureTransport:
		return "connection_error"
	default:
		return "system_error"
	}
}

func (k FailureKind) summary() string {
	switch k {
	case FailureExtraction:
		return "No valid JSON found in model response"
	case FailureDecode:
		return "Failed to parse model response"
	case FailureValidation:
		return "Model response did not match the analysis schema"
	case FailureTransport:
		return "Inference runtime unavailable"
	default:
		return "System error"
	}
}

// Failure is a tagged failure from any stage of an analysis.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return f.Kind.Code()
	}
	return f.Kind.Code() + ": " + f.Detail
}

func newFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// maxDetailLen bounds the diagnostic text surfaced in a fallback rationale.
const maxDetailLen = 160

// Fallback builds the schema-complete record returned whenever a stage fails.
func Fallback(f Failure) AnalysisResult {
	rationale := f.Kind.summary()
	if detail := shortDetail(f.Detail); detail != "" {
		rationale += ": " + detail
	}
	return AnalysisResult{
		OFNRD:           OFNRD{},
		TrustAssessment: TrustAssessment{TrustScore: 0, Flags: []string{f.Kind.Code()}},
		Decision:        Decision{Action: ActionNoOp, Rationale: rationale},
		Rewrite:         Rewrite{},
	}
}

func shortDetail(detail string) string {
	detail = strings.TrimSpace(detail)
	if idx := strings.IndexAny(detail, "\r\n"); idx >= 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	if len(detail) > maxDetailLen {
		detail = strings.ToValidUTF8(detail[:maxDetailLen], "") + "..."
	}
	return detail
}

// transportFailure is implemented by collaborator errors raised while talking
// to the inference runtime.
type transportFailure interface {
	TransportFailure() bool
}

// FailureFromError maps an error reported by the inference collaborator to a Failure.
func FailureFromError(err error) Failure {
	if err == nil {
		return Failure{Kind: FailureSystem}
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return *failure
	}
	var transport transportFailure
	if errors.As(err, &transport) && transport.TransportFailure() {
		return Failure{Kind: FailureTransport, Detail: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Failure{Kind: FailureTransport, Detail: err.Error()}
	}
	return Failure{Kind: FailureSystem, Detail: err.Error()}
}
