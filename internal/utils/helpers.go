package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
)

// FormatValue renders an extracted field value on a single line.
// Nil and blank values render as UNKNOWN, lists are comma-joined and maps are
// rendered as sorted k=v pairs.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return constants.Unknown
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
		return constants.Unknown
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			if s := strings.TrimSpace(scalarString(it)); s != "" {
				items = append(items, s)
			}
		}
		if len(items) == 0 {
			return constants.Unknown
		}
		return strings.Join(items, ", ")
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return FormatValue(items)
	case map[string]any:
		if len(t) == 0 {
			return constants.Unknown
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+FormatValue(t[k]))
		}
		return strings.Join(parts, "; ")
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any, map[string]any, []string:
		return FormatValue(t)
	}
	return fmt.Sprint(v)
}

// IsBlank reports whether an extracted value carries no information.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Millis converts a duration to a stored millisecond count.
func Millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
