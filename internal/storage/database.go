// Package storage persists normalized decks in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/deckserve/internal/domain"
)

// ErrPersistence wraps any store failure during an import write. The
// import is rolled back as a whole when it is returned.
var ErrPersistence = errors.New("persistence failed")

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up
// to date. WAL mode with a busy timeout and a single-writer pool keeps
// concurrent imports serialized at the store.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with a single writer
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping probes store connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// ImportDeck writes a deck, its lesson, and all card and token rows as
// a single transaction. Either all rows are visible afterward or none
// are; any failure returns a wrapped ErrPersistence.
func (db *DB) ImportDeck(ctx context.Context, deck domain.Deck, lesson domain.Lesson, cards []domain.Card, tokens []domain.Token) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decks (id, name, description, card_count, lesson_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		deck.ID,
		deck.Name,
		nullString(deck.Description),
		deck.CardCount,
		deck.LessonCount,
		deck.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert deck %s: %v", ErrPersistence, deck.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lessons (id, deck_id, name, card_count)
		VALUES (?, ?, ?, ?)
	`,
		lesson.ID,
		lesson.DeckID,
		lesson.Name,
		lesson.CardCount,
	)
	if err != nil {
		return fmt.Errorf("%w: insert lesson %s: %v", ErrPersistence, lesson.ID, err)
	}

	for _, card := range cards {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (id, deck_id, lesson_id, front, back, audio_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			card.ID,
			card.DeckID,
			nullString(card.LessonID),
			card.Front,
			card.Back,
			nullString(card.AudioRef),
			card.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: insert card %s: %v", ErrPersistence, card.ID, err)
		}
	}

	for _, token := range tokens {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tokens (id, card_id, text, position, is_word)
			VALUES (?, ?, ?, ?, ?)
		`,
			token.ID,
			token.CardID,
			token.Text,
			token.Position,
			token.Word,
		)
		if err != nil {
			return fmt.Errorf("%w: insert token %s: %v", ErrPersistence, token.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return nil
}

// ListDecks returns all decks, newest first.
func (db *DB) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, description, card_count, lesson_count, created_at
		FROM decks ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var description sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &description, &d.CardCount, &d.LessonCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		d.Description = description.String
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decks: %w", err)
	}
	return decks, nil
}

// FindDeck retrieves a deck by ID, or nil if it does not exist.
func (db *DB) FindDeck(ctx context.Context, id string) (*domain.Deck, error) {
	var d domain.Deck
	var description sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, description, card_count, lesson_count, created_at
		FROM decks WHERE id = ?
	`, id).Scan(&d.ID, &d.Name, &description, &d.CardCount, &d.LessonCount, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find deck %s: %w", id, err)
	}
	d.Description = description.String
	return &d, nil
}

// CardsByDeck returns all cards belonging to a deck, in insertion order.
func (db *DB) CardsByDeck(ctx context.Context, deckID string) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, deck_id, lesson_id, front, back, audio_ref, created_at
		FROM cards WHERE deck_id = ? ORDER BY rowid
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var lessonID, audioRef sql.NullString
		if err := rows.Scan(&c.ID, &c.DeckID, &lessonID, &c.Front, &c.Back, &audioRef, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.LessonID = lessonID.String
		c.AudioRef = audioRef.String
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards for deck %s: %w", deckID, err)
	}
	return cards, nil
}

// TokensByCard returns a card's tokens ordered by position.
func (db *DB) TokensByCard(ctx context.Context, cardID string) ([]domain.Token, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, text, position, is_word
		FROM tokens WHERE card_id = ? ORDER BY position
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.ID, &t.CardID, &t.Text, &t.Position, &t.Word); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens for card %s: %w", cardID, err)
	}
	return tokens, nil
}

// DeckCount returns the number of decks in the store.
func (db *DB) DeckCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM decks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count decks: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
