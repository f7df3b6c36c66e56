package utils

import "unicode/utf8"

// Prompt budgets are estimated without a tokenizer: ASCII text runs about
// asciiPerToken characters per token, any other rune (accents, CJK, emoji)
// is counted as a token of its own.
const asciiPerToken = 4

type tokenTally struct{ ascii, other int }

func (t *tokenTally) add(r rune) {
	if r < utf8.RuneSelf {
		t.ascii++
	} else {
		t.other++
	}
}

func (t tokenTally) tokens() int {
	return (t.ascii+asciiPerToken-1)/asciiPerToken + t.other
}

// CountTokens estimates the number of tokens in text.
func CountTokens(text string) int {
	var t tokenTally
	for _, r := range text {
		t.add(r)
	}
	return t.tokens()
}

// TruncateToTokenLimit returns the longest prefix of text whose estimate
// stays within limit. The cut never splits a rune.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	var t tokenTally
	for i, r := range text {
		t.add(r)
		if t.tokens() > limit {
			return text[:i]
		}
	}
	return text
}
