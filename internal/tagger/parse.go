package tagger

import (
	"encoding/json"
	"strings"
)

// ExtractTagArray pulls a JSON array of tag strings out of possibly noisy
// model output. Strategies run in order: direct parse, then the substring
// between the first '[' and last ']', then the same scan after stripping
// markdown code fences. Exhaustion returns ok=false; nothing in this chain
// ever fails hard.
func ExtractTagArray(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if tags, ok := parseArray(text); ok {
		return tags, true
	}
	if tags, ok := parseBracketed(text); ok {
		return tags, true
	}
	if tags, ok := parseBracketed(stripFences(text)); ok {
		return tags, true
	}
	return nil, false
}

func parseBracketed(text string) ([]string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end < start {
		return nil, false
	}
	return parseArray(text[start : end+1])
}

// parseArray accepts any JSON array and keeps its string elements, so a
// model that mixes types degrades to the usable subset instead of nothing.
func parseArray(text string) ([]string, bool) {
	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	tags := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags, true
}

// stripFences removes ```json ... ``` or ``` ... ``` wrapping, returning the
// original text when no fences are present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i >= 1; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}
