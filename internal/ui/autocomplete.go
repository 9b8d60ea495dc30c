package ui

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// maxSuggestions caps the model suggestions shown under an input.
const maxSuggestions = 5

// suggestModels fuzzy matches input against the known model ids, best match first.
// An empty input suggests nothing; an exact id match is not repeated as a suggestion.
func suggestModels(input string, ids []string) []string {
	input = strings.TrimSpace(input)
	if input == "" || len(ids) == 0 {
		return nil
	}

	matches := fuzzy.Find(input, ids)
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if m.Str == input {
			continue
		}
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// completeModel returns the best suggestion for input, or input itself when nothing matches.
func completeModel(input string, ids []string) string {
	if s := suggestModels(input, ids); len(s) > 0 {
		return s[0]
	}
	return input
}
