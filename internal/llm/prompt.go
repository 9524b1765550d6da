package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
)

// maxPromptText bounds the document text sent in one prompt.
const maxPromptText = 12000

// BuildScoringPrompts composes the fallback classification messages. Every
// candidate is scored in the same call.
func BuildScoringPrompts(text string, candidates []Candidate) (system, user string) {
	system = strings.Join([]string{
		"You are a classification assistant.",
		"You must output strict JSON with keys: scores, signals.",
		"scores is a list of objects {\"label_name\": string, \"confidence\": number 0..1}, one per candidate,",
		"and label_name MUST be one of the candidate names.",
		"If there is not enough evidence for any candidate, give every candidate a confidence of 0.5 or less",
		"and include " + constants.SignalAbstain + " in signals.",
		"Return only JSON.",
	}, " ")

	var b strings.Builder
	b.WriteString("Classify the document using the OCR text and the candidate labels.\n")
	b.WriteString("Candidate labels:\n")
	b.WriteString(FormatCandidates(candidates))
	b.WriteString("\n\nOCR text:\n")
	b.WriteString(truncate(text, maxPromptText))
	return system, b.String()
}

// FormatCandidates renders one NAME/INSTRUCTIONS block per candidate, values JSON-quoted.
func FormatCandidates(candidates []Candidate) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- NAME: %s\n  INSTRUCTIONS: %s", quote(c.Name), quote(c.Instructions)))
	}
	return strings.Join(lines, "\n")
}

// BuildExtractionPrompts composes the field extraction messages. When source
// bytes are attached as images the OCR text is still passed, labelled as context.
func BuildExtractionPrompts(req ExtractRequest, imagesAttached bool) (system, user string) {
	instr := strings.TrimSpace(req.Instructions)
	var sb strings.Builder
	sb.WriteString("You are a structured extraction assistant. ")
	if instr != "" {
		sb.WriteString(instr)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Return JSON that matches the provided schema. ")
	sb.WriteString(`If a value is missing, return "UNKNOWN" for that field. `)
	sb.WriteString(`Respond with {"fields": {...}, "confidence": {"<field>": number 0..1 or null}}.`)
	system = sb.String()

	var b strings.Builder
	if imagesAttached {
		b.WriteString("Extract fields from the document images using this schema.\n")
	} else {
		b.WriteString("Extract fields from the OCR text using this schema.\n")
	}
	b.WriteString("Schema:\n")
	b.WriteString(mustJSON(req.Schema.JSONSchema()))
	if t := strings.TrimSpace(req.Content.Text); t != "" {
		if imagesAttached {
			b.WriteString("\n\nOCR text (context only, may contain errors):\n")
		} else {
			b.WriteString("\n\nOCR text:\n")
		}
		b.WriteString(truncate(t, maxPromptText))
	}
	return system, b.String()
}

// BuildSchemaPrompts composes the schema drafting messages.
func BuildSchemaPrompts(req SchemaRequest) (system, user string) {
	system = strings.Join([]string{
		"You design flat extraction schemas for document labels.",
		"Return ONLY a JSON object with keys schema and instructions.",
		"schema is a JSON Schema object of type object whose properties are flat (no nested objects).",
		"Use concise lowercase snake_case keys and at most 15 fields.",
		"Use type array only when the document clearly lists multiple entries; otherwise use string.",
		"instructions is a short paragraph telling an extractor how to fill the fields.",
	}, " ")

	var b strings.Builder
	if name := strings.TrimSpace(req.LabelName); name != "" {
		b.WriteString("Label: ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}
	switch {
	case req.Proposed != nil:
		b.WriteString("Refine the proposed schema: normalize key names and types, drop boilerplate and noise fields.\n\n")
		if g := strings.TrimSpace(req.Guidance); g != "" {
			b.WriteString("User guidance:\n")
			b.WriteString(g)
		} else {
			b.WriteString("OCR text:\n")
			b.WriteString(truncate(req.Text, maxPromptText))
		}
		b.WriteString("\n\nProposed schema JSON:\n")
		b.WriteString(mustJSON(req.Proposed))
	case strings.TrimSpace(req.Guidance) != "":
		b.WriteString("Build the schema from the user guidance only. Do not add fields the guidance does not ask for.\n\n")
		b.WriteString("User guidance:\n")
		b.WriteString(strings.TrimSpace(req.Guidance))
	default:
		b.WriteString("Infer the fields worth extracting from this example document. ")
		b.WriteString("Skip boilerplate such as page numbers, headers and legal footers.\n\n")
		b.WriteString("OCR text:\n")
		b.WriteString(truncate(req.Text, maxPromptText))
	}
	if h := strings.TrimSpace(req.Hint); h != "" {
		b.WriteString("\n\n")
		b.WriteString(h)
	}
	return system, b.String()
}

// DetectedFieldsHint lists up to 40 example keys for the schema prompt.
func DetectedFieldsHint(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	if len(sorted) > 40 {
		sorted = sorted[:40]
	}
	return "Detected fields: " + strings.Join(sorted, ", ")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n…(truncated)"
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
