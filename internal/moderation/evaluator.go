// Package moderation decides whether text violates a group's banned-word list.
package moderation

import "strings"

// Evaluator reports the first banned word matched by text.
type Evaluator interface {
	Evaluate(text string, bannedWords []string) (string, bool)
}

// SubstringEvaluator matches case-insensitively in both directions: a
// whitespace token matches a banned word if either contains the other.
//
// This catches "spam-ish" for "spam" but also flags short tokens such as "a"
// against any banned word that contains them.
type SubstringEvaluator struct{}

func (SubstringEvaluator) Evaluate(text string, bannedWords []string) (string, bool) {
	if len(bannedWords) == 0 {
		return "", false
	}
	tokens := strings.Fields(strings.ToLower(text))
	for _, word := range bannedWords {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(tok, w) || strings.Contains(w, tok) {
				return word, true
			}
		}
	}
	return "", false
}

// NormalizeWords trims, lower-cases and dedupes a banned-word list, dropping empties.
func NormalizeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
