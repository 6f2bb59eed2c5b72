package search

import "strings"

// Stop words ignored when looking for verbatim query terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "how": true, "why": true, "does": true,
}

// tokenize lowercases text, trims punctuation from each word, and drops stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			out = append(out, cleaned)
		}
	}
	return out
}

// matchedTerms returns the query terms that appear as words in document,
// in query order and without repeats.
func matchedTerms(document, query string) []string {
	docWords := make(map[string]bool)
	for _, word := range tokenize(document) {
		docWords[word] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, term := range tokenize(query) {
		if docWords[term] && !seen[term] {
			matched = append(matched, term)
			seen[term] = true
		}
	}
	return matched
}
