package importer

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/conorfennell/deckserve/internal/archive"
	"github.com/conorfennell/deckserve/internal/storage"
)

func newTestPipeline(t *testing.T, tokenize bool) (*Pipeline, *storage.DB, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mediaDir := filepath.Join(dir, "media")
	p := New(db, zerolog.Nop(), mediaDir, filepath.Join(dir, "repos"), tokenize)
	return p, db, mediaDir
}

// writeArchive builds an .apkg with a minimal collection database, a
// media manifest, and the raw media entries it names.
func writeArchive(t *testing.T, notes map[int64][2]string, media map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	collectionPath := filepath.Join(dir, "collection.anki2")
	db, err := sql.Open("sqlite", collectionPath)
	if err != nil {
		t.Fatalf("failed to open collection fixture: %v", err)
	}
	stmts := []string{
		`CREATE TABLE col (models TEXT)`,
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, mid INTEGER, flds TEXT)`,
		`CREATE TABLE cards (id INTEGER PRIMARY KEY, nid INTEGER, ord INTEGER)`,
		`INSERT INTO col (models) VALUES ('{"1001": {"flds": [{"name": "Front", "ord": 0}, {"name": "Back", "ord": 1}]}}')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to build fixture: %v", err)
		}
	}
	for id, fields := range notes {
		flds := fields[0] + "\x1f" + fields[1]
		if _, err := db.Exec(`INSERT INTO notes (id, mid, flds) VALUES (?, 1001, ?)`, id, flds); err != nil {
			t.Fatalf("failed to insert note: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO cards (id, nid, ord) VALUES (?, ?, 0)`, id*10, id); err != nil {
			t.Fatalf("failed to insert card: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close fixture: %v", err)
	}

	archivePath := filepath.Join(dir, "deck.apkg")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	zw := zip.NewWriter(f)

	entries := map[string][]byte{}
	raw, err := os.ReadFile(collectionPath)
	if err != nil {
		t.Fatalf("failed to read collection fixture: %v", err)
	}
	entries["collection.anki2"] = raw

	if len(media) > 0 {
		manifest := "{"
		entry := 0
		for name, content := range media {
			if entry > 0 {
				manifest += ","
			}
			key := string(rune('0' + entry))
			manifest += `"` + key + `": "` + name + `"`
			entries[key] = []byte(content)
			entry++
		}
		manifest += "}"
		entries["media"] = []byte(manifest)
	}

	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close archive writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}
	return archivePath
}

func TestImportArchive(t *testing.T) {
	p, db, mediaDir := newTestPipeline(t, true)
	ctx := context.Background()

	archivePath := writeArchive(t,
		map[int64][2]string{1: {"Hello there [sound:hello.mp3]", "Hola"}},
		map[string]string{"hello.mp3": "audio-bytes"},
	)

	result, err := p.ImportArchive(ctx, archivePath, "spanish.apkg")
	if err != nil {
		t.Fatalf("ImportArchive returned an unexpected error: %v", err)
	}
	if result.CardCount != 1 {
		t.Fatalf("expected card count 1, got %d", result.CardCount)
	}

	cards, err := db.CardsByDeck(ctx, result.DeckID)
	if err != nil {
		t.Fatalf("CardsByDeck returned an unexpected error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	card := cards[0]
	if card.Front != "Hello there" {
		t.Errorf("sound marker not stripped: %q", card.Front)
	}
	if card.AudioRef != result.DeckID+"/hello.mp3" {
		t.Errorf("unexpected audio ref: %q", card.AudioRef)
	}

	tokens, err := db.TokensByCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("TokensByCard returned an unexpected error: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens for %q, got %d", card.Front, len(tokens))
	}
	if tokens[0].Text != "Hello" || !tokens[0].Word {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}
	if tokens[1].Text != " " || tokens[1].Word {
		t.Errorf("unexpected separator token: %+v", tokens[1])
	}

	mediaPath := filepath.Join(mediaDir, result.DeckID, "hello.mp3")
	content, err := os.ReadFile(mediaPath)
	if err != nil {
		t.Fatalf("media file not copied: %v", err)
	}
	if string(content) != "audio-bytes" {
		t.Errorf("unexpected media content: %s", content)
	}
}

func TestImportArchiveWithoutTokenization(t *testing.T) {
	p, db, _ := newTestPipeline(t, false)
	ctx := context.Background()

	archivePath := writeArchive(t, map[int64][2]string{1: {"Hello", "Hola"}}, nil)
	result, err := p.ImportArchive(ctx, archivePath, "spanish.apkg")
	if err != nil {
		t.Fatalf("ImportArchive returned an unexpected error: %v", err)
	}

	cards, err := db.CardsByDeck(ctx, result.DeckID)
	if err != nil {
		t.Fatalf("CardsByDeck returned an unexpected error: %v", err)
	}
	tokens, err := db.TokensByCard(ctx, cards[0].ID)
	if err != nil {
		t.Fatalf("TokensByCard returned an unexpected error: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("tokenization disabled, but %d tokens written", len(tokens))
	}
}

func TestImportArchiveMalformed(t *testing.T) {
	p, db, _ := newTestPipeline(t, true)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "broken.apkg")
	if err := os.WriteFile(path, []byte("this is not a zip container"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := p.ImportArchive(ctx, path, "broken.apkg")
	if !errors.Is(err, archive.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	count, err := db.DeckCount(ctx)
	if err != nil {
		t.Fatalf("DeckCount returned an unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("a failed import must leave the store unchanged, found %d decks", count)
	}
}

func TestMarkdownPackage(t *testing.T) {
	p, _, _ := newTestPipeline(t, true)

	dir := t.TempDir()
	source := `Q: What is the capital of Spain?
A: Madrid
---
Q: What is the capital of Spain?
A: Madrid
---
Q: Hola
A: Hello
`
	if err := os.WriteFile(filepath.Join(dir, "geography.md"), []byte(source), 0o644); err != nil {
		t.Fatalf("failed to write markdown source: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not markdown"), 0o644); err != nil {
		t.Fatalf("failed to write non-markdown file: %v", err)
	}

	pkg, err := p.markdownPackage(dir, "geo-cards")
	if err != nil {
		t.Fatalf("markdownPackage returned an unexpected error: %v", err)
	}
	if pkg.Name != "geo-cards" {
		t.Errorf("unexpected package name: %q", pkg.Name)
	}
	if len(pkg.Notes) != 2 {
		t.Fatalf("duplicate cards must collapse to one note, got %d notes", len(pkg.Notes))
	}
	if len(pkg.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(pkg.Cards))
	}
	for _, card := range pkg.Cards {
		if pkg.NoteByID(card.NoteID) == nil {
			t.Errorf("card %s links to unknown note %s", card.ID, card.NoteID)
		}
	}
}
