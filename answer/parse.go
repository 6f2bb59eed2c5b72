package answer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/poiesic/primer/core"
)

var answerKeys = []string{"answer", "source_chapter", "keywords"}

// ParseAnswer decodes a generator reply into a StructuredAnswer. An optional
// code fence around the object is removed first; anything else outside the
// object, unknown or missing keys, and wrongly typed values are rejected with
// a *MalformedAnswerError.
func ParseAnswer(raw string) (*core.StructuredAnswer, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, malformed(raw, "empty response")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, malformed(raw, "not a JSON object: %v", err)
	}
	if fields == nil {
		return nil, malformed(raw, "not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed(raw, "unexpected content after JSON object")
	}

	for key := range fields {
		if !slices.Contains(answerKeys, key) {
			return nil, malformed(raw, "unknown key %q", key)
		}
	}
	for _, key := range answerKeys {
		if _, ok := fields[key]; !ok {
			return nil, malformed(raw, "missing key %q", key)
		}
	}

	answer := &core.StructuredAnswer{Grounded: true}
	if !isKind(fields["answer"], '"') || json.Unmarshal(fields["answer"], &answer.Answer) != nil {
		return nil, malformed(raw, "answer must be a string")
	}
	if !isKind(fields["source_chapter"], '"') || json.Unmarshal(fields["source_chapter"], &answer.SourceChapter) != nil {
		return nil, malformed(raw, "source_chapter must be a string")
	}
	if !isKind(fields["keywords"], '[') || json.Unmarshal(fields["keywords"], &answer.Keywords) != nil {
		return nil, malformed(raw, "keywords must be an array of strings")
	}

	if err := core.ValidateStructuredAnswer(answer); err != nil {
		return nil, malformed(raw, "%v", err)
	}
	return answer, nil
}

// stripFence trims whitespace and removes a leading ``` or ```json line and a
// trailing ```.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimPrefix(text, "JSON")
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// isKind reports whether a raw JSON value starts with the given delimiter.
func isKind(raw json.RawMessage, delim byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == delim
}
