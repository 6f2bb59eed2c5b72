// Package normalize turns raw extracted page text into clean ASCII prose.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Figure/table captions: the label and everything after it on the line.
	// \s+ spans newlines so a label split across lines is still caught.
	captionPattern = regexp.MustCompile(`\b(?:Figure|Table)\s+\d+\.\d+[^\n]*`)

	// Chapter and section headers occupy a whole line.
	headerPattern = regexp.MustCompile(`(?m)^[ ]*(?:Chapter\s+\d+|Section\s+\d+(?:\.\d+)?)\b[^\n]*`)

	chapterMarker = regexp.MustCompile(`(?m)^\s*Chapter\s+(\d+)\b`)
)

// Normalize cleans raw extracted page text into plain prose.
//
// Line endings are unified, every non-ASCII or control byte becomes a space,
// captions and headers are removed, and lines are trimmed. Consecutive
// non-blank lines are joined with a space; blank lines separate paragraphs,
// which are emitted with exactly one "\n\n" between them. The result may be
// empty. Normalize(Normalize(x)) == Normalize(x) for all x.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = sanitize(text)
	text = captionPattern.ReplaceAllString(text, "")
	text = headerPattern.ReplaceAllString(text, "")

	var (
		paragraphs []string
		current    []string
	)
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = collapseSpaces(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// NormalizePages applies Normalize to each page, keeping positions.
func NormalizePages(pages []string) []string {
	out := make([]string, len(pages))
	for i, page := range pages {
		out[i] = Normalize(page)
	}
	return out
}

// DetectChapter reports the number of the first "Chapter <n>" header line on a
// raw page. It must be called before Normalize, which strips such headers.
func DetectChapter(raw string) (int, bool) {
	m := chapterMarker.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// sanitize replaces every byte outside printable ASCII with a space, except '\n'.
func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '\n' {
			continue
		}
		if c < 0x20 || c >= 0x7f {
			b[i] = ' '
		}
	}
	return string(b)
}

// collapseSpaces trims a line and squeezes internal runs of spaces to one.
func collapseSpaces(line string) string {
	return strings.Join(strings.Fields(line), " ")
}
