package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// CoerceFields moves each schema field toward its declared type and returns the
// keys whose value changed. Keys outside the schema are kept as they are.
//   - number: numeric strings ("1,234.50", "$40") become float64; anything else stays a string
//   - list: a scalar becomes a one-item list; UNKNOWN stays a scalar
//   - date, string: rendered as a trimmed single-line string
func CoerceFields(schema entity.Schema, fields map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	var changed []string
	for _, f := range schema {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		nv := coerce(f.Type, v)
		if !sameValue(v, nv) {
			out[f.Name] = nv
			changed = append(changed, f.Name)
		}
	}
	return out, changed
}

func coerce(t entity.FieldType, v any) any {
	switch t {
	case entity.FieldNumber:
		switch x := v.(type) {
		case float64:
			return x
		case int:
			return float64(x)
		case int64:
			return float64(x)
		case string:
			if n, ok := ParseNumber(x); ok {
				return n
			}
			return strings.TrimSpace(x)
		}
		return utils.FormatValue(v)
	case entity.FieldList:
		switch x := v.(type) {
		case []any:
			items := make([]any, 0, len(x))
			for _, it := range x {
				switch it.(type) {
				case string, float64, nil:
					items = append(items, it)
				default:
					items = append(items, utils.FormatValue(it))
				}
			}
			return items
		case []string:
			items := make([]any, len(x))
			for i, s := range x {
				items[i] = s
			}
			return items
		case string:
			s := strings.TrimSpace(x)
			if s == "" || s == constants.Unknown {
				return s
			}
			return []any{s}
		}
		return []any{utils.FormatValue(v)}
	default:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return utils.FormatValue(v)
	}
}

// ParseNumber reads a number written the way documents write amounts:
// thousands separators, a leading currency symbol and surrounding spaces are ignored.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£¥")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sameValue(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}
