package util

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON locates the first JSON object inside model output. Models tend
// to wrap structured answers in markdown code fences or surround them with
// prose; this strips fences, finds the outermost balanced object and verifies
// it parses. Returns the object text and true, or "" and false when no valid
// object is present.
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if gjson.Valid(candidate) {
					return candidate, true
				}
				return "", false
			}
		}
	}

	return "", false
}

// GetString returns a string field from a JSON object, or "" when missing.
func GetString(json, path string) string {
	return gjson.Get(json, path).String()
}

// GetBool returns a bool field from a JSON object, or false when missing.
func GetBool(json, path string) bool {
	return gjson.Get(json, path).Bool()
}

// GetFloat returns a numeric field from a JSON object, or 0 when missing.
func GetFloat(json, path string) float64 {
	return gjson.Get(json, path).Float()
}

// GetStringSlice returns an array field's elements as strings.
func GetStringSlice(json, path string) []string {
	res := gjson.Get(json, path)
	if !res.IsArray() {
		return nil
	}
	var out []string
	res.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

// GetMap returns an object field as a generic map, or nil when missing or not
// an object.
func GetMap(json, path string) map[string]any {
	res := gjson.Get(json, path)
	if !res.IsObject() {
		return nil
	}
	m, _ := res.Value().(map[string]any)
	return m
}
