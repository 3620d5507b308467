// Package tokenizer splits card text into ordered tokens, keeping
// punctuation and whitespace runs as separator tokens so the original
// text can be reassembled.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a single run of either word characters or separators.
type Token struct {
	Text string
	Word bool
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

// Tokenize splits text into alternating word and separator tokens.
// Positions follow slice order; empty input yields no tokens.
func Tokenize(text string) []Token {
	var tokens []Token
	var current strings.Builder
	currentWord := false

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tokens = append(tokens, Token{Text: current.String(), Word: currentWord})
		current.Reset()
	}

	for _, r := range text {
		word := isWordRune(r)
		if current.Len() > 0 && word != currentWord {
			flush()
		}
		currentWord = word
		current.WriteRune(r)
	}
	flush()

	return tokens
}

// Words returns only the word tokens of text, in order.
func Words(text string) []string {
	var words []string
	for _, tok := range Tokenize(text) {
		if tok.Word {
			words = append(words, tok.Text)
		}
	}
	return words
}
