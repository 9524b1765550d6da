package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

// FieldType is the closed set of types a label schema may declare.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldList   FieldType = "list"
)

// ParseFieldType maps a declared type name, including common aliases, onto a FieldType.
func ParseFieldType(s string) (FieldType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str", "text":
		return FieldString, true
	case "number", "integer", "int", "float", "decimal":
		return FieldNumber, true
	case "date", "datetime":
		return FieldDate, true
	case "list", "array", "list-of-string", "list_of_string", "list[string]":
		return FieldList, true
	}
	return "", false
}

// Field is one schema entry.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is a flat, ordered mapping of field name to type.
// Declaration order is kept: it drives prompts and report rendering.
type Schema []Field

func (s Schema) Empty() bool { return len(s) == 0 }

func (s Schema) Keys() []string {
	out := make([]string, 0, len(s))
	for _, f := range s {
		out = append(out, f.Name)
	}
	return out
}

func (s Schema) Has(name string) bool {
	_, ok := s.Type(name)
	return ok
}

func (s Schema) Type(name string) (FieldType, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// JSONSchema renders the schema as a JSON Schema object. Every key is required and
// scalar types also admit a string so the UNKNOWN placeholder validates.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	required := make([]any, 0, len(s))
	for _, f := range s {
		switch f.Type {
		case FieldNumber:
			props[f.Name] = map[string]any{"type": []any{"number", "string", "null"}}
		case FieldList:
			props[f.Name] = map[string]any{
				"type":  []any{"array", "string", "null"},
				"items": map[string]any{"type": []any{"string", "number", "null"}},
			}
		default:
			props[f.Name] = map[string]any{"type": []any{"string", "null"}}
		}
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": true,
	}
}

// MarshalJSON writes the flat {"name": "type"} form in declaration order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, _ := json.Marshal(string(f.Type))
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	parsed, err := ParseSchema(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String returns the flat JSON form.
func (s Schema) String() string {
	b, _ := s.MarshalJSON()
	return string(b)
}

var errNotObject = errors.New("not an object")

type rawEntry struct {
	key   string
	value json.RawMessage
}

// ParseSchema reads either the flat {"name": "type"} form or a JSON Schema object with
// "properties". Blank input is an empty schema. Nested values and unknown types are
// reported together as common.ValidationErrors.
func ParseSchema(raw string) (Schema, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Schema{}, nil
	}
	entries, err := decodeOrderedObject([]byte(raw))
	if errors.Is(err, errNotObject) {
		return nil, common.ValidationErrors{{Field: "schema", Message: "Schema JSON must be an object."}}
	}
	if err != nil {
		return nil, common.ValidationErrors{{Field: "schema", Message: fmt.Sprintf("Schema JSON invalid: %v", err)}}
	}

	if props, ok := propertiesForm(entries); ok {
		entries = props
	}

	out := make(Schema, 0, len(entries))
	var errs common.ValidationErrors
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.key] {
			errs = append(errs, common.ValidationError{Field: e.key, Message: fmt.Sprintf("Schema field '%s' is declared more than once.", e.key)})
			continue
		}
		seen[e.key] = true
		ft, verr := fieldTypeOf(e.key, e.value)
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		out = append(out, Field{Name: e.key, Type: ft})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// propertiesForm unwraps {"type":"object","properties":{...}}.
func propertiesForm(entries []rawEntry) ([]rawEntry, bool) {
	var typ string
	var props json.RawMessage
	for _, e := range entries {
		switch e.key {
		case "type":
			_ = json.Unmarshal(e.value, &typ)
		case "properties":
			props = e.value
		}
	}
	if typ != "object" || props == nil {
		return nil, false
	}
	inner, err := decodeOrderedObject(props)
	if err != nil {
		return nil, false
	}
	return inner, true
}

// DescriptorTypeName reads the type of a JSON Schema property. A type list yields its
// first non-null entry, and a string with format date or date-time reads as "date".
func DescriptorTypeName(typ any, format string) (string, bool) {
	var name string
	switch t := typ.(type) {
	case string:
		name = t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				name = s
				break
			}
		}
		if name == "" && len(t) > 0 {
			name = "string"
		}
	}
	if name == "" {
		return "", false
	}
	if name == "string" && (format == "date" || format == "date-time") {
		return "date", true
	}
	return name, true
}

func fieldTypeOf(key string, value json.RawMessage) (FieldType, *common.ValidationError) {
	nested := &common.ValidationError{Field: key, Message: fmt.Sprintf("Schema field '%s' must be a primitive value, not nested.", key)}
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", nested
	}

	var name string
	switch trimmed[0] {
	case '"':
		_ = json.Unmarshal(trimmed, &name)
	case '[':
		return "", nested
	case '{':
		// a {"type": ...} descriptor is allowed as long as it does not describe an object
		var desc struct {
			Type   any    `json:"type"`
			Format string `json:"format"`
			Items  *struct {
				Type any `json:"type"`
			} `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &desc); err != nil {
			return "", nested
		}
		typ, ok := DescriptorTypeName(desc.Type, desc.Format)
		if !ok || typ == "object" {
			return "", nested
		}
		if desc.Items != nil {
			if items, _ := DescriptorTypeName(desc.Items.Type, ""); items == "object" {
				return "", nested
			}
		}
		name = typ
	default:
		return "", &common.ValidationError{Field: key, Value: string(trimmed), Message: fmt.Sprintf("Schema field '%s' must declare a type name.", key)}
	}

	ft, ok := ParseFieldType(name)
	if !ok {
		return "", &common.ValidationError{Field: key, Value: name, Message: fmt.Sprintf("Schema field '%s' has unsupported type '%s'.", key, name)}
	}
	return ft, nil
}

func decodeOrderedObject(data []byte) ([]rawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var out []rawEntry
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := kt.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, rawEntry{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after schema object")
	}
	return out, nil
}
