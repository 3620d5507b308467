package anki

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/deckserve/internal/domain"
)

// fieldSeparator splits the packed note fields in the collection
// database (ASCII unit separator).
const fieldSeparator = "\x1f"

// model describes the slice of the collection's model JSON we need:
// ordered field names per note type.
type model struct {
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
}

// readCollectionDB reads notes and cards from an extracted collection
// database file.
func readCollectionDB(path string) ([]domain.Note, []domain.SourceCard, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to collection database: %w", err)
	}

	notes, err := readNotes(db, readModels(db))
	if err != nil {
		return nil, nil, err
	}

	cards, err := readCards(db)
	if err != nil {
		return nil, nil, err
	}

	return notes, cards, nil
}

// readModels maps model IDs to ordered field names, parsed from the
// models JSON in the col table. A missing col table or row, or
// malformed models JSON, is tolerated; affected notes fall back to
// positional field names.
func readModels(db *sql.DB) map[int64][]string {
	fieldNames := make(map[int64][]string)

	var raw string
	if err := db.QueryRow(`SELECT models FROM col LIMIT 1`).Scan(&raw); err != nil {
		return fieldNames
	}

	parsed := map[string]model{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fieldNames
	}
	for id, m := range parsed {
		mid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		names := make([]string, len(m.Flds))
		for _, f := range m.Flds {
			if f.Ord >= 0 && f.Ord < len(names) {
				names[f.Ord] = f.Name
			}
		}
		fieldNames[mid] = names
	}
	return fieldNames
}

func readNotes(db *sql.DB, fieldNames map[int64][]string) ([]domain.Note, error) {
	rows, err := db.Query(`SELECT id, mid, flds FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var (
			id   int64
			mid  int64
			flds string
		)
		if err := rows.Scan(&id, &mid, &flds); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}

		values := strings.Split(flds, fieldSeparator)
		names := fieldNames[mid]
		fields := make(map[string]string, len(values))
		for i, v := range values {
			fields[fieldName(names, i)] = v
		}
		notes = append(notes, domain.Note{
			ID:     strconv.FormatInt(id, 10),
			Fields: fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// fieldName resolves the name for field position i: the model's field
// name when known, Front/Back for the first two positions otherwise.
func fieldName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	switch i {
	case 0:
		return "Front"
	case 1:
		return "Back"
	}
	return fmt.Sprintf("Field %d", i+1)
}

func readCards(db *sql.DB) ([]domain.SourceCard, error) {
	rows, err := db.Query(`SELECT id, nid, ord FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.SourceCard
	for rows.Next() {
		var id, nid int64
		var ord int
		if err := rows.Scan(&id, &nid, &ord); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, domain.SourceCard{
			ID:       strconv.FormatInt(id, 10),
			NoteID:   strconv.FormatInt(nid, 10),
			Template: ord,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}
