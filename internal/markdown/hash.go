package markdown

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them.
func Normalize(card Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	f := normalizePart(card.Front)
	b := normalizePart(card.Back)
	c := normalizePart(card.Context)

	// Fields are joined with a newline to keep them separated,
	// preventing accidental joining of words.
	return strings.Join([]string{f, b, c}, "\n")
}

// Hash normalizes a card and returns its SHA-256 hash as a hex string.
// It serves as a stable note identifier for markdown sources.
func Hash(card Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
