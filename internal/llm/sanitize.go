package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject pulls the outermost JSON object out of a model response
// that may carry markdown fences or prose around it.
func ExtractJSONObject(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))

	// Strip markdown code fences if present.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	// Walk forward to the matching close brace, respecting strings.
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := []byte(s[start : i+1])
				if json.Valid(candidate) {
					return candidate, nil
				}
				return nil, fmt.Errorf("response contains malformed JSON")
			}
		}
	}
	return nil, fmt.Errorf("unterminated JSON object in response")
}

// SanitizeResponse drops null members and keys the schema does not know
// about, so a response that is right in substance but sloppy in shape can
// still validate. Returns the cleaned document and the dropped key names.
func SanitizeResponse(schemaMap map[string]any, doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	known := map[string]bool{}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		for k := range props {
			known[k] = true
		}
	}

	var dropped []string
	for k, v := range m {
		if !known[k] {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		if v == nil {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		if arr, ok := v.([]any); ok {
			m[k] = stripNullMembers(arr)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

// stripNullMembers removes null entries from arrays and null members from
// the objects inside them. Nulls inside entity objects are meaningful only
// for fields typed nullable in the schema; dropping the member decodes to
// the same zero value.
func stripNullMembers(arr []any) []any {
	out := arr[:0]
	for _, item := range arr {
		if item == nil {
			continue
		}
		if obj, ok := item.(map[string]any); ok {
			for k, v := range obj {
				if v == nil {
					delete(obj, k)
				}
			}
		}
		out = append(out, item)
	}
	return out
}
