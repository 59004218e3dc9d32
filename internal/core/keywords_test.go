package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordExtractorRanksByFrequency(t *testing.T) {
	k := NewKeywordExtractor(DefaultVocabulary().StopWords)

	got := k.Extract("Fever, fever and chills. Then a cough; fever again with chills!", 10)

	assert.Equal(t, []string{"fever", "chills", "cough"}, got)
}

func TestKeywordExtractorTiesKeepFirstSeenOrder(t *testing.T) {
	k := NewKeywordExtractor(nil)

	got := k.Extract("zebra apple mango apple zebra mango", 10)

	assert.Equal(t, []string{"zebra", "apple", "mango"}, got)
}

func TestKeywordExtractorLimitsAndEmptyInput(t *testing.T) {
	k := NewKeywordExtractor(nil)

	assert.Equal(t, []string{}, k.Extract("", 10))
	assert.Equal(t, []string{}, k.Extract("a an of to", 10))
	assert.Equal(t, []string{}, k.Extract("plenty of words", 0))
	assert.Len(t, k.Extract("one two three four five six", 2), 2)
}

func TestKeywordExtractorHealthQuestion(t *testing.T) {
	k := NewKeywordExtractor(DefaultVocabulary().StopWords)

	got := k.Extract("I have a severe headache and my chest hurts, should I call 911?", 10)

	assert.Subset(t, got, []string{"headache", "chest", "hurts", "call"})
	for _, stop := range []string{"i", "have", "a", "and", "my", "should"} {
		assert.NotContains(t, got, stop)
	}
}

func TestKeywordExtractorOnItsOwnOutput(t *testing.T) {
	k := NewKeywordExtractor(DefaultVocabulary().StopWords)
	first := k.Extract("Persistent cough with fever, cough worse at night and fever in the morning", 10)

	second := k.Extract(strings.Join(first, " "), 10)

	assert.Subset(t, first, second)
}
