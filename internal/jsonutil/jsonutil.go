// Package jsonutil holds the best-effort JSON handling shared by the
// matching, grading, and solution-resolution stages. Remote models are
// asked for bare JSON but frequently wrap it in Markdown fences or emit
// numbers as strings; every caller degrades the same way through these
// helpers instead of growing its own error suppression.
package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StripCodeFences removes a leading/trailing Markdown code fence,
// optionally tagged "json", from a model response.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// TryParseObject attempts to parse s (after fence stripping) as a JSON
// object. It reports false instead of an error on any malformed input.
func TryParseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(StripCodeFences(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ToFloat coerces a decoded JSON value to a float64. Strings are parsed;
// anything else non-numeric reports false.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders a decoded JSON value as a plain string. Numbers drop
// a redundant ".0" so a question number decoded as 2 compares equal to
// the key "2".
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
