package entity

import "time"

// Label is a user-defined document category.
type Label struct {
	ID                     string    `json:"label_id"`
	Name                   string    `json:"name"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
	Schema                 Schema    `json:"extraction_schema"`
	NamingTemplate         string    `json:"naming_template"`
	ExtractionInstructions string    `json:"extraction_instructions,omitempty"`
	// FallbackInstructions describe the label to the LLM fallback classifier.
	// Labels without them are never offered as fallback candidates.
	FallbackInstructions string `json:"fallback_instructions,omitempty"`
}

// LabelExample anchors a label with a file.
type LabelExample struct {
	ID        string    `json:"example_id"`
	LabelID   string    `json:"label_id"`
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// LabelFeature is the derived representation of an example.
type LabelFeature struct {
	ExampleID string    `json:"example_id"`
	Text      string    `json:"extracted_text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Tokens    []string  `json:"tokens,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LabelProfile is a label with the features of all its examples, as read by the classifier.
type LabelProfile struct {
	Label    Label
	Features []LabelFeature
}
