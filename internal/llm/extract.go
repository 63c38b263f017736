package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON document from LLM output. Models asked for
// JSON still wrap it in markdown fences or prose often enough that the raw
// content rarely parses directly.
func ExtractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)

	// Happy path: the whole output is valid JSON.
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	// Fenced block: ```json ... ``` or bare ``` ... ```.
	if idx := strings.Index(trimmed, "```"); idx != -1 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
		}
	}

	// Last resort: widest braces or brackets span.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start != -1 && end > start {
			candidate := trimmed[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("no valid JSON found in LLM output (%d bytes)", len(content))
}
