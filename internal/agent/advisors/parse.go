package advisors

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoObject = errors.New("no JSON object found in reply")

// parseDescriptor reads the classifier reply. It is best-effort: a strict
// parse of the (fence-stripped) reply first, then one retry on the first
// balanced {...} span found in the text.
func parseDescriptor(reply string) (Descriptor, error) {
	content := strings.TrimSpace(reply)
	content = strings.TrimSpace(strings.TrimPrefix(content, "```json"))
	content = strings.TrimSpace(strings.TrimPrefix(content, "```"))
	content = strings.TrimSpace(strings.TrimSuffix(content, "```"))

	fields, err := decodeObject(content)
	if err != nil {
		span, ok := firstObject(reply)
		if !ok {
			return Descriptor{}, &ClassificationParseError{Reply: reply, Err: err}
		}
		fields, err = decodeObject(span)
		if err != nil {
			return Descriptor{}, &ClassificationParseError{Reply: reply, Err: err}
		}
	}

	d := Descriptor{PersonaType: DefaultPersonaType}
	if v, ok := fields["persona_type"].(string); ok && strings.TrimSpace(v) != "" {
		d.PersonaType = strings.TrimSpace(v)
	}
	if v, ok := fields["suggested_file"].(string); ok {
		d.SuggestedFile = strings.TrimSpace(v)
	}
	return d, nil
}

func decodeObject(s string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		// a bare null decodes without error
		return nil, errNoObject
	}
	return fields, nil
}

// firstObject returns the first balanced {...} span in s.
// Braces inside JSON strings are not counted.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
