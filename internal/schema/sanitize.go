package schema

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

const (
	// MaxFields caps every generated schema.
	MaxFields = 15
	maxKeyLen = 40
)

var reValidKey = regexp.MustCompile(`^[a-z0-9_]+$`)

// NormalizeKey lowercases a label and joins its words with underscores.
func NormalizeKey(label string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(label)), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/'
	})
	return strings.Join(fields, "_")
}

func validKey(key string) bool {
	return key != "" && len(key) <= maxKeyLen && reValidKey.MatchString(key)
}

// IsPluralKey reports whether a key names an enumerable value.
func IsPluralKey(key string) bool {
	if strings.Contains(key, "list") || strings.Contains(key, "items") {
		return true
	}
	if !strings.HasSuffix(key, "s") {
		return false
	}
	for _, suffix := range []string{"ss", "us", "is"} {
		if strings.HasSuffix(key, suffix) {
			return false
		}
	}
	return true
}

// Sanitize turns a drafted JSON Schema object into a flat Schema. Keys are
// normalized and invalid ones dropped, arrays survive only under plural keys,
// and at most max fields are kept. Keys listed in "required" come first, then
// the rest alphabetically.
func Sanitize(draft map[string]any, max int) entity.Schema {
	if t, ok := draft["type"]; ok && t != "object" {
		return entity.Schema{}
	}
	props, _ := draft["properties"].(map[string]any)
	if len(props) == 0 {
		return entity.Schema{}
	}

	var order []string
	listed := map[string]bool{}
	if req, ok := draft["required"].([]any); ok {
		for _, r := range req {
			if k, ok := r.(string); ok && !listed[k] {
				if _, present := props[k]; present {
					listed[k] = true
					order = append(order, k)
				}
			}
		}
	}
	rest := make([]string, 0, len(props))
	for k := range props {
		if !listed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	out := entity.Schema{}
	for _, raw := range order {
		if len(out) >= max {
			break
		}
		key := NormalizeKey(raw)
		if !validKey(key) || out.Has(key) {
			continue
		}
		out = append(out, entity.Field{Name: key, Type: fieldTypeFor(key, props[raw])})
	}
	return out
}

func fieldTypeFor(key string, sub any) entity.FieldType {
	m, ok := sub.(map[string]any)
	if !ok {
		if name, ok := sub.(string); ok {
			m = map[string]any{"type": name}
		} else {
			return entity.FieldString
		}
	}
	format, _ := m["format"].(string)
	typ, _ := entity.DescriptorTypeName(m["type"], format)
	switch typ {
	case "array", "list":
		if IsPluralKey(key) {
			return entity.FieldList
		}
	case "number", "integer":
		return entity.FieldNumber
	case "date":
		return entity.FieldDate
	}
	return entity.FieldString
}

// CountLists returns the number of list fields.
func CountLists(s entity.Schema) int {
	n := 0
	for _, f := range s {
		if f.Type == entity.FieldList {
			n++
		}
	}
	return n
}

// DraftOf renders s as the JSON Schema object used in refinement prompts.
func DraftOf(s entity.Schema) map[string]any {
	props := make(map[string]any, len(s))
	required := make([]any, 0, len(s))
	for _, f := range s {
		switch f.Type {
		case entity.FieldList:
			props[f.Name] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		case entity.FieldNumber:
			props[f.Name] = map[string]any{"type": "number"}
		case entity.FieldDate:
			props[f.Name] = map[string]any{"type": "string", "format": "date"}
		default:
			props[f.Name] = map[string]any{"type": "string"}
		}
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Example is the key/value structure recovered from OCR text, in first-seen key order.
type Example struct {
	Keys   []string
	Values map[string][]string
}

func (e *Example) add(key, value string) {
	if e.Values == nil {
		e.Values = map[string][]string{}
	}
	if _, ok := e.Values[key]; !ok {
		e.Keys = append(e.Keys, key)
	}
	e.Values[key] = append(e.Values[key], value)
}

// ExampleFromText reads "key: value" lines. A line that starts with ':' names the
// most recent value line, which covers forms printing the value above its label.
func ExampleFromText(text string) Example {
	var ex Example
	last := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if key := NormalizeKey(line[1:]); key != "" && last != "" {
				ex.add(key, last)
			}
			continue
		}
		if i := strings.Index(line, ":"); i >= 0 {
			value := strings.TrimSpace(line[i+1:])
			if key := NormalizeKey(line[:i]); key != "" {
				ex.add(key, value)
			}
			if value != "" {
				last = value
			}
			continue
		}
		last = line
	}
	return ex
}

// Infer builds a schema from the example: repeated values under a plural key
// become a list, everything else a string.
func (e Example) Infer(max int) entity.Schema {
	out := entity.Schema{}
	for _, k := range e.Keys {
		if len(out) >= max {
			break
		}
		if !validKey(k) || out.Has(k) {
			continue
		}
		t := entity.FieldString
		if len(e.Values[k]) > 1 && IsPluralKey(k) {
			t = entity.FieldList
		}
		out = append(out, entity.Field{Name: k, Type: t})
	}
	return out
}
