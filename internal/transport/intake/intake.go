package intake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseFacts reads an absence report from chat text. A message that
// starts with "{" is treated as a JSON object, anything else as
// key = value lines. Values are coerced to bool, number or RFC3339
// timestamp when they look like one, otherwise kept as strings.
func ParseFacts(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message")
	}

	if strings.HasPrefix(text, "{") {
		var facts map[string]any
		if err := json.Unmarshal([]byte(text), &facts); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		if len(facts) == 0 {
			return nil, fmt.Errorf("no facts in report")
		}
		// Fact values are primitives or lists of primitives; a nested
		// object would only surface as a type error deep inside a rule
		// run, so name the offending key here instead.
		for key, value := range facts {
			if !flatValue(value) {
				return nil, fmt.Errorf("fact %q: nested objects are not allowed", key)
			}
		}
		return facts, nil
	}

	facts := make(map[string]any)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key = value", i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", i+1)
		}
		facts[key] = coerce(strings.TrimSpace(value))
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("no facts in report")
	}
	return facts, nil
}

func flatValue(value any) bool {
	switch x := value.(type) {
	case map[string]any:
		return false
	case []any:
		for _, e := range x {
			if !flatValue(e) {
				return false
			}
		}
	}
	return true
}

func coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	// Unquote so users can force string typing for numeric ids.
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}
