package api

import (
	"time"

	"tpris/backend/internal/analysis"
	"tpris/backend/internal/store"
)

// SubmitRequest is the flat record posted once feedback passes analysis.
type SubmitRequest struct {
	FeedbackText string   `json:"feedback_text"`
	Observation  *string  `json:"observation"`
	Feeling      *string  `json:"feeling"`
	Need         *string  `json:"need"`
	Request      *string  `json:"request"`
	TrustScore   *float64 `json:"trust_score"`
}

// SubmitResponse acknowledges a stored submission.
type SubmitResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// SubmissionDTO is the API representation of a stored submission.
type SubmissionDTO struct {
	ID           string    `json:"id"`
	FeedbackText string    `json:"feedback_text"`
	Observation  *string   `json:"observation"`
	Feeling      *string   `json:"feeling"`
	Need         *string   `json:"need"`
	Request      *string   `json:"request"`
	TrustScore   *float64  `json:"trust_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmissionsResponse is one page of submissions.
type SubmissionsResponse struct {
	Items []SubmissionDTO `json:"items"`
	Total int64           `json:"total"`
}

// AnalysisStatsResponse counts analyses by outcome.
type AnalysisStatsResponse struct {
	Succeeded int64            `json:"succeeded"`
	Fallbacks map[string]int64 `json:"fallbacks"`
}

// StreamEvent is one websocket message sent in reply to a streamed analysis request.
type StreamEvent struct {
	Type      string                   `json:"type"`
	RequestID string                   `json:"request_id,omitempty"`
	Result    *analysis.AnalysisResult `json:"result,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// SubmissionFromModel converts a stored submission to its DTO.
func SubmissionFromModel(s store.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:           s.ID,
		FeedbackText: s.FeedbackText,
		Observation:  s.Observation,
		Feeling:      s.Feeling,
		Need:         s.Need,
		Request:      s.Request,
		TrustScore:   s.TrustScore,
		CreatedAt:    s.CreatedAt,
	}
}
