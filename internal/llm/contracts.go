package llm

import (
	"context"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// Candidate is a label offered to the fallback classifier.
type Candidate struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// CandidateScore is the model's confidence that the document belongs to one candidate.
type CandidateScore struct {
	Name       string  `json:"label_name"`
	Confidence float64 `json:"confidence"`
}

// Scoring is the result of one batched scoring call.
type Scoring struct {
	Scores  []CandidateScore `json:"scores"`
	Signals []string         `json:"signals,omitempty"`
}

// Best returns the highest scoring candidate. Ties keep the earlier entry.
func (s Scoring) Best() (CandidateScore, bool) {
	var best CandidateScore
	found := false
	for _, c := range s.Scores {
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best, found
}

// Content is what the model reads. Data and MimeType carry the source bytes of
// images and PDFs; Text carries OCR text, either alone or as context.
type Content struct {
	Text     string
	Data     []byte
	MimeType string
	Filename string
}

// HasBytes reports whether source bytes are attached.
func (c Content) HasBytes() bool { return len(c.Data) > 0 && c.MimeType != "" }

type ExtractRequest struct {
	FileID       string
	Schema       entity.Schema
	Instructions string
	Content      Content
}

// FieldResult is the raw field map produced by the model. A nil confidence
// means the model reported the field as unknown.
type FieldResult struct {
	Fields      map[string]any
	Confidences map[string]*float64
	Raw         []byte
	// RawFields is the field object exactly as the model wrote it.
	RawFields []byte
}

// SchemaRequest asks the model to draft a schema. Guidance, when present,
// is the only source the draft may use.
type SchemaRequest struct {
	LabelName string
	Text      string
	Guidance  string
	// Hint is appended to the user prompt (detected keys, retry nudges).
	Hint string
	// Proposed is set on the refinement pass.
	Proposed map[string]any
}

// SchemaDraft is the model's proposal: a JSON Schema object plus instructions.
type SchemaDraft struct {
	Schema       map[string]any `json:"schema"`
	Instructions string         `json:"instructions"`
}

// StructuredGenerator is the generative capability the pipeline depends on.
// Its outputs are label suggestions, field values and schema drafts only.
type StructuredGenerator interface {
	ScoreCandidates(ctx context.Context, text string, candidates []Candidate) (Scoring, error)
	ExtractFields(ctx context.Context, req ExtractRequest) (FieldResult, error)
	GenerateSchema(ctx context.Context, req SchemaRequest) (SchemaDraft, error)
}
