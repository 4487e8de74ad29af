package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Submission is feedback the author chose to submit after analysis.
type Submission struct {
	ID           string  `gorm:"primaryKey;size:36"`
	FeedbackText string  `gorm:"type:text"`
	Observation  *string `gorm:"type:text"`
	Feeling      *string `gorm:"type:text"`
	Need         *string `gorm:"type:text"`
	Request      *string `gorm:"type:text"`
	TrustScore   *float64
	CreatedAt    time.Time `gorm:"index"`
}

// AnalysisRecord captures how one analysis request was resolved.
type AnalysisRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RequestID   string `gorm:"size:36;uniqueIndex"`
	Runtime     string `gorm:"size:128"`
	Action      string `gorm:"size:32;index"`
	TrustScore  float64
	FailureFlag string `gorm:"size:64;index"`
	Score       int
	RepairsJSON string `gorm:"type:text"`
	RawLength   int
	DurationMs  int64
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// SetRepairs persists the repair list as JSON.
func (r *AnalysisRecord) SetRepairs(repairs []string) {
	if repairs == nil {
		r.RepairsJSON = "[]"
		return
	}
	payload, _ := json.Marshal(repairs)
	r.RepairsJSON = string(payload)
}

// Repairs returns the decoded repair list.
func (r *AnalysisRecord) Repairs() []string {
	if strings.TrimSpace(r.RepairsJSON) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(r.RepairsJSON), &out); err != nil {
		return nil
	}
	return out
}
