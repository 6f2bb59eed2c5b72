package answer

import (
	"errors"
	"testing"

	"github.com/poiesic/primer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *core.StructuredAnswer
	}{
		{
			name: "plain object",
			raw:  `{"answer": "Fourier analysis.", "source_chapter": "AC Circuits", "keywords": ["fourier", "ac"]}`,
			want: &core.StructuredAnswer{Answer: "Fourier analysis.", SourceChapter: "AC Circuits", Keywords: []string{"fourier", "ac"}, Grounded: true},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"answer\": \"x\", \"source_chapter\": \"\", \"keywords\": []}\n```",
			want: &core.StructuredAnswer{Answer: "x", Keywords: []string{}, Grounded: true},
		},
		{
			name: "bare fence with surrounding whitespace",
			raw:  "  \n```\n{\"answer\": \"x\", \"source_chapter\": \"1\", \"keywords\": [\"k\"]}\n```\n",
			want: &core.StructuredAnswer{Answer: "x", SourceChapter: "1", Keywords: []string{"k"}, Grounded: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnswer_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "   ", "empty response"},
		{"missing closing brace", `{"answer": "x", "source_chapter": "", "keywords": []`, "not a JSON object"},
		{"prose around object", `Sure! {"answer": "x", "source_chapter": "", "keywords": []}`, "not a JSON object"},
		{"trailing prose", `{"answer": "x", "source_chapter": "", "keywords": []} hope this helps`, "unexpected content"},
		{"two objects", `{"answer": "x", "source_chapter": "", "keywords": []}{"answer": "y", "source_chapter": "", "keywords": []}`, "unexpected content"},
		{"array", `[{"answer": "x"}]`, "not a JSON object"},
		{"null", `null`, "not a JSON object"},
		{"missing key", `{"answer": "x", "keywords": []}`, `missing key "source_chapter"`},
		{"unknown key", `{"answer": "x", "source_chapter": "", "keywords": [], "confidence": 0.9}`, `unknown key "confidence"`},
		{"empty answer", `{"answer": "  ", "source_chapter": "", "keywords": []}`, "answer cannot be empty"},
		{"null answer", `{"answer": null, "source_chapter": "", "keywords": []}`, "answer must be a string"},
		{"numeric chapter", `{"answer": "x", "source_chapter": 3, "keywords": []}`, "source_chapter must be a string"},
		{"keywords not array", `{"answer": "x", "source_chapter": "", "keywords": "a, b"}`, "keywords must be an array"},
		{"keywords null", `{"answer": "x", "source_chapter": "", "keywords": null}`, "keywords must be an array"},
		{"keywords mixed types", `{"answer": "x", "source_chapter": "", "keywords": ["a", 1]}`, "keywords must be an array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(tt.raw)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, core.ErrMalformedAnswer)

			var malformedErr *MalformedAnswerError
			require.True(t, errors.As(err, &malformedErr))
			assert.Equal(t, tt.raw, malformedErr.Raw)
			assert.Contains(t, malformedErr.Reason, tt.reason)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "{}", stripFence("```json\n{}\n```"))
	assert.Equal(t, "{}", stripFence("```\n{}```"))
	assert.Equal(t, "{}", stripFence("  {}  "))
	assert.Equal(t, "x ```", stripFence("x ```"))
}
