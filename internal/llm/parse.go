package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

var (
	errNotObject = errors.New("reply is not a JSON object")
	// ErrEmptyReply is returned when the model produced no JSON at all.
	ErrEmptyReply = errors.New("empty model reply")
)

// ParseScoring reads a scoring reply. Besides the batched {"scores": [...]} form it
// accepts a single {"label_name", "confidence"} object. Unknown names are kept;
// the caller checks them against its allowlist.
func ParseScoring(content string) (Scoring, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return Scoring{}, ErrEmptyReply
	}
	m, err := decodeObject(raw)
	if err != nil {
		return Scoring{}, fmt.Errorf("decode scoring: %w", err)
	}

	var out Scoring
	if list, ok := m["scores"].([]any); ok {
		for _, it := range list {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			name, _ := obj["label_name"].(string)
			out.Scores = append(out.Scores, CandidateScore{
				Name:       strings.TrimSpace(name),
				Confidence: toFloat(obj["confidence"]),
			})
		}
	} else if name, ok := m["label_name"].(string); ok && strings.TrimSpace(name) != "" {
		out.Scores = []CandidateScore{{Name: strings.TrimSpace(name), Confidence: toFloat(m["confidence"])}}
	}
	if sigs, ok := m["signals"].([]any); ok {
		for _, s := range sigs {
			if str := strings.TrimSpace(fmt.Sprint(s)); str != "" {
				out.Signals = append(out.Signals, str)
			}
		}
	}
	return out, nil
}

// ParseFields reads an extraction reply, either {"fields": {...}, "confidence": {...}}
// or a flat field object. Confidences outside 0..1 or non-numeric are treated as unknown.
func ParseFields(content string, schema entity.Schema) (FieldResult, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return FieldResult{}, ErrEmptyReply
	}
	m, err := decodeObject(raw)
	if err != nil {
		return FieldResult{}, fmt.Errorf("decode fields: %w", err)
	}

	rawFields := []byte(raw)
	fields, nested := m["fields"].(map[string]any)
	if !nested {
		fields = m
	} else {
		var parts map[string]json.RawMessage
		if err := json.Unmarshal(rawFields, &parts); err == nil {
			rawFields = parts["fields"]
		}
	}
	var rawConf map[string]any
	for _, key := range []string{"confidence", "confidences"} {
		if schema.Has(key) {
			continue
		}
		if c, ok := m[key].(map[string]any); ok {
			rawConf = c
			if !nested {
				delete(fields, key)
			}
			break
		}
	}
	confs := make(map[string]*float64, len(rawConf))
	for k, v := range rawConf {
		if f, ok := v.(float64); ok && f >= 0 && f <= 1 {
			confs[k] = &f
		} else {
			confs[k] = nil
		}
	}
	return FieldResult{Fields: fields, Confidences: confs, Raw: []byte(raw), RawFields: rawFields}, nil
}

// ParseDraft reads a schema drafting reply. A bare JSON Schema object is
// accepted as the schema with no instructions.
func ParseDraft(content string) (SchemaDraft, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return SchemaDraft{}, ErrEmptyReply
	}
	m, err := decodeObject(raw)
	if err != nil {
		return SchemaDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	if err := ValidateValue(DraftJSONSchema(), m); err == nil {
		d := SchemaDraft{Schema: m["schema"].(map[string]any)}
		d.Instructions, _ = m["instructions"].(string)
		return d, nil
	}
	if _, ok := m["properties"].(map[string]any); ok {
		return SchemaDraft{Schema: m}, nil
	}
	return SchemaDraft{}, fmt.Errorf("draft has no schema properties")
}

// NormalizeSignals removes blanks and duplicates, keeping first-seen order.
func NormalizeSignals(signals []string) []string {
	seen := make(map[string]bool, len(signals))
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ClampConfidence bounds c to 0..1.
func ClampConfidence(c float64) float64 {
	switch {
	case c != c || c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// ParseFailedScoring is the result reported when a scoring reply cannot be read.
func ParseFailedScoring() Scoring {
	return Scoring{Signals: []string{constants.SignalOutputParseFailed}}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
