package domain

// Note is a source unit of content with named fields (Front, Back, ...)
// before being split into cards. IDs are opaque strings: Anki collections
// use numeric note IDs, markdown sources use content hashes.
type Note struct {
	ID     string
	Fields map[string]string
}

// SourceCard links a source card to its note. Template is the card
// template ordinal within the note's model.
type SourceCard struct {
	ID       string
	NoteID   string
	Template int
}

// MediaEntry is a media file referenced by an archive: Entry is the
// archive entry name, Name the real filename it should be stored under.
type MediaEntry struct {
	Entry string
	Name  string
}

// Package is the intermediate representation produced by content
// extraction, before schema normalization.
type Package struct {
	Name  string
	Notes []Note
	Cards []SourceCard
	Media []MediaEntry
}

// NoteByID returns the note with the given ID, or nil.
func (p *Package) NoteByID(id string) *Note {
	for i := range p.Notes {
		if p.Notes[i].ID == id {
			return &p.Notes[i]
		}
	}
	return nil
}
