package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avikal/resumeai/internal/domain"
)

// ErrMalformedOutput indicates no JSON value could be recovered from a
// model completion. The wrapped parser error is for logs, not callers.
var ErrMalformedOutput = errors.New("llm: malformed model output")

// ExtractJSON recovers a JSON object from a completion that was supposed
// to be "only JSON" but may carry surrounding prose, markdown fences, or
// a truncated tail. The fallback chain stops at the first parse that
// succeeds; the result is always valid JSON, never a scraped partial.
// Already-valid input parses as-is before any rewriting, so fences inside
// string values never disturb it.
func ExtractJSON(raw string) (json.RawMessage, error) {
	if msg, ok := tryParse(strings.TrimSpace(raw)); ok {
		return msg, nil
	}

	text := strings.TrimSpace(stripFences(raw))
	if msg, ok := tryParse(text); ok {
		return msg, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no object found", ErrMalformedOutput)
	}
	candidate := text[start : end+1]
	if msg, ok := tryParse(candidate); ok {
		return msg, nil
	}

	// Truncated mid-object is common under output-token limits. Shrink
	// from the end until some prefix parses.
	var lastErr error
	for i := len(candidate) - 1; i > 0; i-- {
		var msg json.RawMessage
		if err := json.Unmarshal([]byte(candidate[:i]), &msg); err != nil {
			lastErr = err
			continue
		}
		return msg, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, lastErr)
}

// ParseVerdict decodes a completion into the fixed verdict shape.
func ParseVerdict(raw string) (*domain.Verdict, error) {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var verdict domain.Verdict
	if err := json.Unmarshal(msg, &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if verdict.OverallScore < 0 || verdict.OverallScore > 100 {
		return nil, fmt.Errorf("%w: overall_score %d out of range", ErrMalformedOutput, verdict.OverallScore)
	}
	return &verdict, nil
}

func tryParse(text string) (json.RawMessage, bool) {
	var msg json.RawMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return nil, false
	}
	return msg, true
}

// stripFences removes a ```json / ``` markdown wrapper when present.
func stripFences(response string) string {
	if !strings.Contains(response, "```") {
		return strings.TrimSpace(response)
	}
	start := strings.Index(response, "```")
	rest := response[start+3:]
	if strings.HasPrefix(rest, "json") {
		rest = rest[4:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
