package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/conorfennell/deckserve/internal/anki"
	"github.com/conorfennell/deckserve/internal/archive"
	"github.com/conorfennell/deckserve/internal/domain"
	"github.com/conorfennell/deckserve/internal/storage"
	"github.com/conorfennell/deckserve/internal/tokenizer"
)

// Pipeline runs imports against a store. It holds no per-request
// state; every call is an independent unit of work.
type Pipeline struct {
	db        *storage.DB
	extractor *anki.Extractor
	log       zerolog.Logger
	mediaDir  string
	reposDir  string
	tokenize  bool
}

// Result reports a completed import.
type Result struct {
	DeckID    string
	CardCount int
}

// New creates a Pipeline writing to db. Media files extracted from
// archives are placed under mediaDir; git checkouts live under
// reposDir. When tokenize is set, card fronts are tokenized and the
// rows written in the same transaction.
func New(db *storage.DB, log zerolog.Logger, mediaDir, reposDir string, tokenize bool) *Pipeline {
	return &Pipeline{
		db:        db,
		extractor: anki.NewExtractor(log),
		log:       log,
		mediaDir:  mediaDir,
		reposDir:  reposDir,
		tokenize:  tokenize,
	}
}

// ImportArchive imports the deck archive buffered at archivePath.
// sourceName is the original upload filename, used for deck naming.
// The rows are written atomically; media files are copied out only
// after the transaction commits.
func (p *Pipeline) ImportArchive(ctx context.Context, archivePath, sourceName string) (*Result, error) {
	arc, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	pkg, err := p.extractor.Extract(arc, sourceName)
	if err != nil {
		return nil, err
	}

	result, err := p.persist(ctx, pkg)
	if err != nil {
		return nil, err
	}

	p.copyMedia(arc, pkg.Media, result.DeckID)
	return result, nil
}

// persist normalizes a package and writes it in one transaction.
func (p *Pipeline) persist(ctx context.Context, pkg *domain.Package) (*Result, error) {
	n := Normalize(pkg, time.Now())

	var tokens []domain.Token
	if p.tokenize {
		tokens = tokenRows(n.Cards)
	}

	if err := p.db.ImportDeck(ctx, n.Deck, n.Lesson, n.Cards, tokens); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("deck_id", n.Deck.ID).
		Str("name", n.Deck.Name).
		Int("cards", n.Deck.CardCount).
		Msg("deck imported")

	return &Result{DeckID: n.Deck.ID, CardCount: n.Deck.CardCount}, nil
}

// tokenRows tokenizes each card's front text into ordered token rows.
func tokenRows(cards []domain.Card) []domain.Token {
	var rows []domain.Token
	for _, card := range cards {
		for i, tok := range tokenizer.Tokenize(card.Front) {
			rows = append(rows, domain.Token{
				ID:       fmt.Sprintf("%s_t%d", card.ID, i),
				CardID:   card.ID,
				Text:     tok.Text,
				Position: i,
				Word:     tok.Word,
			})
		}
	}
	return rows
}

// copyMedia writes archive media entries under <mediaDir>/<deckID>/.
// Broken entries are tolerated and logged, not fatal: the deck rows
// are already committed.
func (p *Pipeline) copyMedia(arc *archive.Archive, media []domain.MediaEntry, deckID string) {
	if len(media) == 0 {
		return
	}

	deckDir := filepath.Join(p.mediaDir, deckID)
	if err := os.MkdirAll(deckDir, 0o755); err != nil {
		p.log.Warn().Err(err).Str("dir", deckDir).Msg("failed to create media directory")
		return
	}

	for _, m := range media {
		if err := p.copyMediaEntry(arc, m, deckDir); err != nil {
			p.log.Warn().Err(err).Str("entry", m.Entry).Msg("failed to copy media entry")
		}
	}
}

func (p *Pipeline) copyMediaEntry(arc *archive.Archive, m domain.MediaEntry, deckDir string) error {
	rc, err := arc.OpenEntry(m.Entry)
	if err != nil {
		return err
	}
	defer rc.Close()

	// Base strips any path components a hostile manifest could carry.
	dst, err := os.Create(filepath.Join(deckDir, filepath.Base(m.Name)))
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(dst, rc)
	closeErr := dst.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
