// Package importer turns extracted deck packages into relational rows
// and runs the import pipelines end to end.
package importer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/deckserve/internal/domain"
)

const (
	frontField = "Front"
	backField  = "Back"
)

// soundRef matches [sound:filename] markers embedded in note fields.
var soundRef = regexp.MustCompile(`\[sound:([^\]]+)\]`)

// Normalized is the full row set produced for one import call.
type Normalized struct {
	Deck   domain.Deck
	Lesson domain.Lesson
	Cards  []domain.Card
}

// Normalize maps an intermediate package onto relational rows. It is
// pure apart from identifier generation: deck and lesson IDs are fresh
// per call, card IDs combine a per-batch random component with an
// ordinal, so re-importing the same content yields independent decks.
// Cards whose note cannot be resolved are dropped; counts reflect only
// the cards carried forward.
func Normalize(pkg *domain.Package, now time.Time) Normalized {
	deckID := "deck_" + uuid.NewString()
	batch := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	name := pkg.Name
	if name == "" {
		name = "Imported Deck"
	}

	lesson := domain.Lesson{
		ID:     "lesson_" + uuid.NewString(),
		DeckID: deckID,
		Name:   fmt.Sprintf("%s Lesson 1", name),
	}

	var cards []domain.Card
	for _, src := range pkg.Cards {
		note := pkg.NoteByID(src.NoteID)
		if note == nil {
			continue
		}

		front, audio := stripSound(note.Fields[frontField], deckID)
		back, backAudio := stripSound(note.Fields[backField], deckID)
		if audio == "" {
			audio = backAudio
		}

		cards = append(cards, domain.Card{
			ID:        fmt.Sprintf("card_%s_%d", batch, len(cards)),
			DeckID:    deckID,
			LessonID:  lesson.ID,
			Front:     front,
			Back:      back,
			AudioRef:  audio,
			CreatedAt: now,
		})
	}

	lesson.CardCount = len(cards)

	deck := domain.Deck{
		ID:          deckID,
		Name:        name,
		CardCount:   len(cards),
		LessonCount: 1,
		CreatedAt:   now,
	}

	return Normalized{Deck: deck, Lesson: lesson, Cards: cards}
}

// stripSound removes [sound:...] markers from text and returns the
// media reference of the first one, rooted under the deck's media
// directory.
func stripSound(text, deckID string) (string, string) {
	audio := ""
	cleaned := soundRef.ReplaceAllStringFunc(text, func(m string) string {
		name := soundRef.FindStringSubmatch(m)[1]
		if audio == "" && name != "" {
			audio = deckID + "/" + filepath.Base(name)
		}
		return ""
	})
	return strings.TrimSpace(cleaned), audio
}
