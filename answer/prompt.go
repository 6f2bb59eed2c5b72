package answer

import (
	"fmt"
	"strings"
)

// PassageDelimiter separates passages in the prompt. Newlines inside a
// passage are flattened so the delimiter stays unambiguous.
const PassageDelimiter = "\n---\n"

const answerResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "answer": {
      "type": "string",
      "minLength": 1
    },
    "source_chapter": {
      "type": "string"
    },
    "keywords": {
      "type": "array",
      "items": {
        "type": "string"
      }
    }
  },
  "required": ["answer", "source_chapter", "keywords"],
  "additionalProperties": false
}`

const answerPromptTemplate = `Answer the question using ONLY the textbook passages given below.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Base the answer strictly on the passages. Do not use outside knowledge.
- If the passages do not contain the answer, say so in "answer" instead of guessing.
- "source_chapter" names the chapter the answer comes from, or is "" if it cannot be determined.
- "keywords" lists 1-5 short lowercase terms from the passages that the answer depends on.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.
%s
Question: %s

Passages:
%s
`

// BuildPrompt assembles the generator prompt. chapters may be empty.
func BuildPrompt(question string, passages []string, chapters []string) string {
	var chapterList string
	if len(chapters) > 0 {
		var b strings.Builder
		b.WriteString("\nChapters of this textbook, for \"source_chapter\":\n")
		for _, name := range chapters {
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
		chapterList = b.String()
	}

	flat := make([]string, len(passages))
	for i, p := range passages {
		flat[i] = flattenPassage(p)
	}

	return fmt.Sprintf(answerPromptTemplate,
		answerResponseSchema,
		chapterList,
		strings.TrimSpace(question),
		strings.Join(flat, PassageDelimiter))
}

// flattenPassage puts a passage on one line, collapsing whitespace runs to a
// single space.
func flattenPassage(p string) string {
	return strings.Join(strings.Fields(p), " ")
}
