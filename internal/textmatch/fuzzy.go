package textmatch

import "strings"

const (
	// minInputLen rejects inputs too short to name an entity.
	minInputLen = 3
	// maxInputLen rejects inputs too long to be a single-entity answer.
	maxInputLen = 120
	// minReverseLen guards reverse containment against one/two-letter false positives.
	minReverseLen = 4
)

// Candidate is a named entity eligible for fuzzy matching.
type Candidate struct {
	ID   string
	Name string
}

// FuzzyMatch resolves free text against a catalog of named candidates.
// Rules are tried in strict priority order: exact normalized equality,
// candidate name contained in the user text, then user text contained in the
// candidate name (only when the user text is at least 4 characters). It
// returns nil when no rule fires; it never guesses.
func FuzzyMatch(userText string, candidates []Candidate) *Candidate {
	text := Normalize(userText)
	if len(text) < minInputLen || len(text) > maxInputLen {
		return nil
	}

	// Exact equality beats any containment hit on a later candidate.
	for i := range candidates {
		if Normalize(candidates[i].Name) == text {
			return &candidates[i]
		}
	}
	for i := range candidates {
		name := Normalize(candidates[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(text, name) {
			return &candidates[i]
		}
	}
	if len(text) >= minReverseLen {
		for i := range candidates {
			if strings.Contains(Normalize(candidates[i].Name), text) {
				return &candidates[i]
			}
		}
	}
	return nil
}
