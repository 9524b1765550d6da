package llm

import (
	"encoding/json"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// SanitizeFieldDoc rewrites schema fields whose shape the model got wrong
// (objects, booleans, nested lists) into strings so the document can still
// validate. It returns the rewritten keys.
func SanitizeFieldDoc(schema entity.Schema, doc map[string]any) (map[string]any, []string) {
	var changed []string
	for _, f := range schema {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string, float64:
			continue
		case []any:
			if f.Type != entity.FieldList {
				doc[f.Name] = utils.FormatValue(x)
				changed = append(changed, f.Name)
				continue
			}
			fixed := false
			for i, it := range x {
				switch it.(type) {
				case string, float64, nil:
				default:
					x[i] = utils.FormatValue(it)
					fixed = true
				}
			}
			if fixed {
				changed = append(changed, f.Name)
			}
		default:
			doc[f.Name] = utils.FormatValue(x)
			changed = append(changed, f.Name)
		}
	}
	return doc, changed
}

// decodeObject unmarshals a JSON object, keeping numbers as float64.
func decodeObject(raw string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}
	return m, nil
}
