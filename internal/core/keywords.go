package core

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var nonWordRE = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// KeywordExtractor ranks the content words of a text by frequency.
type KeywordExtractor struct {
	stopWords map[string]struct{}
}

// NewKeywordExtractor builds an extractor over the given stop-word table.
func NewKeywordExtractor(stopWords []string) *KeywordExtractor {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &KeywordExtractor{stopWords: set}
}

// Extract returns up to max keywords, most frequent first.  Ties keep the
// order in which the words first appeared.
func (k *KeywordExtractor) Extract(text string, max int) []string {
	if max <= 0 {
		return []string{}
	}
	cleaned := nonWordRE.ReplaceAllString(strings.ToLower(text), "")

	counts := make(map[string]int)
	var order []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := k.stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	if order == nil {
		return []string{}
	}
	return order
}
