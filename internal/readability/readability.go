// Package readability computes the Flesch reading-ease statistic used as a
// continuous content metric. The estimate is heuristic by design; it feeds a
// proportional score penalty, not a hard issue.
package readability

import (
	"strings"
	"unicode"
)

// Ease returns the Flesch reading-ease value for English prose.
// Higher is easier; typical web copy lands between 50 and 70.
// Empty input returns 0 with ok=false so callers can skip the metric instead
// of scoring an empty page.
func Ease(text string) (float64, bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0, false
	}

	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordCount := float64(len(words))
	score := 206.835 - 1.015*(wordCount/float64(sentences)) - 84.6*(float64(syllables)/wordCount)
	return score, true
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			count++
		}
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups, with the
// common silent-e adjustment. Every word counts at least one.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if word == "" {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
