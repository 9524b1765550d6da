package llm

// ScoringJSONSchema describes the reply of a batched scoring call.
func ScoringJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label_name": map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number"},
					},
					"required": []string{"label_name", "confidence"},
				},
			},
			"signals": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"scores"},
	}
}

// DraftJSONSchema describes the reply of a schema drafting call.
func DraftJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":       map[string]any{"const": "object"},
					"properties": map[string]any{"type": "object"},
				},
				"required": []string{"properties"},
			},
			"instructions": map[string]any{"type": "string"},
		},
		"required": []string{"schema"},
	}
}
