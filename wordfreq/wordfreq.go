// Package wordfreq finds words repeated across translated headlines.
package wordfreq

import (
	"regexp"
	"sort"
	"strings"

	"github.com/use-agent/opinionprobe/models"
)

// MinRepeats is exclusive: a word must occur more than this many times.
const MinRepeats = 2

// MinWordLen is exclusive: shorter or equal tokens are dropped.
const MinWordLen = 2

// StopWords are ignored when counting.
var StopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "as": {},
	"is": {}, "was": {}, "are": {}, "be": {}, "been": {}, "has": {}, "have": {}, "had": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {},
}

var (
	// wordRun matches maximal runs of word characters (letters, digits, underscore).
	wordRun = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	// asciiWord accepts runs made only of ASCII letters.
	asciiWord = regexp.MustCompile(`^[a-z]+$`)
)

// Tokens returns the countable words of one headline, lowercased. A run of
// ASCII letters glued to a digit, underscore or non-ASCII letter is not a word.
func Tokens(headline string) []string {
	var out []string
	for _, run := range wordRun.FindAllString(strings.ToLower(headline), -1) {
		if !asciiWord.MatchString(run) {
			continue
		}
		if len(run) <= MinWordLen {
			continue
		}
		if _, stop := StopWords[run]; stop {
			continue
		}
		out = append(out, run)
	}
	return out
}

// Count returns every word occurring more than MinRepeats times across all
// headlines, with its total count.
func Count(headlines []string) map[string]int {
	counts := make(map[string]int)
	for _, h := range headlines {
		for _, w := range Tokens(h) {
			counts[w]++
		}
	}
	for w, n := range counts {
		if n <= MinRepeats {
			delete(counts, w)
		}
	}
	return counts
}

// Analyze returns Count's result ordered by descending count, ties broken
// alphabetically.
func Analyze(headlines []string) []models.WordFrequencyEntry {
	counts := Count(headlines)
	out := make([]models.WordFrequencyEntry, 0, len(counts))
	for w, n := range counts {
		out = append(out, models.WordFrequencyEntry{Word: w, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}
