// Package anki extracts notes, cards and media references from exported
// .apkg deck archives. The archive embeds a SQLite collection database
// plus numbered media entries described by a JSON manifest.
package anki

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/conorfennell/deckserve/internal/archive"
	"github.com/conorfennell/deckserve/internal/domain"
)

// ErrExtraction reports an archive that could not be read at all.
// An archive with no recognizable content is not an error; extraction
// then yields an empty package.
var ErrExtraction = errors.New("extraction failed")

// Extension is the archive filename extension accepted for upload.
const Extension = ".apkg"

// collectionEntries are the known names of the embedded collection
// database, tried in priority order.
var collectionEntries = []string{"collection.anki21", "collection.anki2"}

const (
	mediaManifest = "media"
	mediaPrefix   = "media/"
)

// Extractor reads deck packages out of opened archives.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor returns an Extractor logging through log.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract produces the intermediate deck representation for an opened
// archive. sourceName is the original upload filename and provides the
// deck name. A missing or unparseable collection yields an empty
// package, not an error.
func (e *Extractor) Extract(arc *archive.Archive, sourceName string) (*domain.Package, error) {
	pkg := &domain.Package{Name: DeckName(sourceName)}

	entry := ""
	for _, name := range collectionEntries {
		if arc.Has(name) {
			entry = name
			break
		}
	}

	if entry != "" {
		if err := e.readCollection(arc, entry, pkg); err != nil {
			return nil, err
		}
	} else {
		e.log.Warn().Str("archive", sourceName).Msg("no collection database in archive")
	}

	pkg.Media = mediaEntries(arc, e.log)
	return pkg, nil
}

// DeckName derives a human-readable deck name from the archive's
// source filename. The extension is trimmed regardless of case, to
// match the upload check.
func DeckName(sourceName string) string {
	base := filepath.Base(sourceName)
	if strings.EqualFold(filepath.Ext(base), Extension) {
		return base[:len(base)-len(Extension)]
	}
	return base
}

// readCollection copies the collection entry to a temporary file and
// reads notes and cards from it. Entry I/O failures are fatal; a
// database that cannot be parsed leaves the package empty.
func (e *Extractor) readCollection(arc *archive.Archive, entry string, pkg *domain.Package) error {
	rc, err := arc.OpenEntry(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "deckserve-collection-*.db")
	if err != nil {
		return fmt.Errorf("%w: creating temp collection: %v", ErrExtraction, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("%w: reading entry %s: %v", ErrExtraction, entry, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: writing temp collection: %v", ErrExtraction, closeErr)
	}

	notes, cards, err := readCollectionDB(tmpPath)
	if err != nil {
		// Degraded mode: an unparseable collection is treated the same
		// as an archive with no recognizable content.
		e.log.Warn().Err(err).Str("entry", entry).Msg("collection database unreadable, importing empty deck")
		return nil
	}
	pkg.Notes = notes
	pkg.Cards = cards
	return nil
}

// mediaEntries collects media references: entries under the media/
// prefix, plus files named by the JSON media manifest. Broken or
// unreferenced entries are tolerated.
func mediaEntries(arc *archive.Archive, log zerolog.Logger) []domain.MediaEntry {
	var media []domain.MediaEntry

	for _, name := range arc.Entries() {
		if strings.HasPrefix(name, mediaPrefix) && name != mediaPrefix {
			media = append(media, domain.MediaEntry{Entry: name, Name: strings.TrimPrefix(name, mediaPrefix)})
		}
	}

	if !arc.Has(mediaManifest) {
		return media
	}

	rc, err := arc.OpenEntry(mediaManifest)
	if err != nil {
		log.Warn().Err(err).Msg("media manifest unreadable")
		return media
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		log.Warn().Err(err).Msg("media manifest unreadable")
		return media
	}

	manifest := map[string]string{}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		log.Warn().Err(err).Msg("media manifest is not valid JSON")
		return media
	}
	for entry, name := range manifest {
		if !arc.Has(entry) || name == "" {
			continue
		}
		media = append(media, domain.MediaEntry{Entry: entry, Name: name})
	}
	return media
}
