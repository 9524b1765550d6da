package entity

import (
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
)

// OCRResult is the extracted text for a file within a job.
type OCRResult struct {
	JobID      string    `json:"job_id"`
	FileID     string    `json:"file_id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Engine     string    `json:"engine,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LabelMatch is the deterministic classification of a file.
// LabelID is empty unless Status is MATCHED.
type LabelMatch struct {
	JobID     string                   `json:"job_id"`
	FileID    string                   `json:"file_id"`
	LabelID   string                   `json:"label_id,omitempty"`
	Score     float64                  `json:"score"`
	Status    constants.MatchStatus    `json:"status"`
	Mode      constants.SimilarityMode `json:"mode,omitempty"`
	Rationale string                   `json:"rationale,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Override is a user-asserted label for a file.
type Override struct {
	JobID   string `json:"job_id"`
	FileID  string `json:"file_id"`
	LabelID string `json:"label_id"`
}

// ExtractionResult is the current field extraction for a file.
// A nil confidence means the capability reported it as unknown.
type ExtractionResult struct {
	JobID       string              `json:"job_id"`
	FileID      string              `json:"file_id"`
	LabelID     string              `json:"label_id,omitempty"`
	Schema      Schema              `json:"schema"`
	Fields      map[string]any      `json:"fields"`
	Confidences map[string]*float64 `json:"confidences"`
	NeedsReview bool                `json:"needs_review"`
	Warnings    []string            `json:"warnings,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// LLMFallbackResult is an advisory suggestion; LabelName is empty when the model abstained.
type LLMFallbackResult struct {
	JobID      string    `json:"job_id"`
	FileID     string    `json:"file_id"`
	LabelName  string    `json:"label_name,omitempty"`
	Confidence float64   `json:"confidence"`
	Signals    []string  `json:"signals"`
	UpdatedAt  time.Time `json:"updated_at"`
}
