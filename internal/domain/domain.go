package domain

import "time"

// Deck is an imported collection of cards.
type Deck struct {
	ID          string
	Name        string
	Description string
	CardCount   int
	LessonCount int
	CreatedAt   time.Time
}

// Lesson groups cards within a deck. Import creates exactly one
// default lesson per deck.
type Lesson struct {
	ID        string
	DeckID    string
	Name      string
	CardCount int
}

// Card is a single front/back study unit.
type Card struct {
	ID        string
	DeckID    string
	LessonID  string
	Front     string
	Back      string
	AudioRef  string
	CreatedAt time.Time
}

// Token is a linguistic unit derived from a card's front text.
// Position is zero-based within the card; Word distinguishes
// linguistic tokens from punctuation and whitespace separators.
type Token struct {
	ID       string
	CardID   string
	Text     string
	Position int
	Word     bool
}
