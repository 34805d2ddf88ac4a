package inference

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeStrict parses the service's free-form text as JSON into v.
// Models routinely wrap JSON in markdown fences or prose; the decoder
// tolerates that by extracting the outermost JSON value first. Unknown
// fields are rejected so schema drift surfaces as a parse failure (and
// thus a deterministic fallback) instead of silently dropped data.
func DecodeStrict(text string, v any) error {
	payload := extractJSON(text)
	if payload == "" {
		return fmt.Errorf("inference: no JSON value in response")
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("inference: parse response: %w", err)
	}
	return nil
}

// extractJSON returns the outermost {...} or [...] span of text, or ""
// when none exists.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if fenced, ok := strings.CutPrefix(text, "```json"); ok {
		text = fenced
	} else if fenced, ok := strings.CutPrefix(text, "```"); ok {
		text = fenced
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if text[start] == '{' {
		end = strings.LastIndex(text, "}")
	} else {
		end = strings.LastIndex(text, "]")
	}
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
