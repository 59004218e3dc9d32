package core

import "unicode/utf8"

// charsPerToken is the local approximation of the provider's tokenizer.
const charsPerToken = 4

// EstimateTokens approximates the token cost of text as ceil(chars/4),
// never less than one.
func EstimateTokens(text string) int {
	n := (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
	if n < 1 {
		return 1
	}
	return n
}
