package storage

const schema = `
-- Imported decks with denormalized counts, recalculated at write time.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    card_count INTEGER NOT NULL DEFAULT 0,
    lesson_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

-- Lessons group cards within a deck; import creates one per deck.
CREATE TABLE IF NOT EXISTS lessons (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    name TEXT NOT NULL,
    card_count INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    lesson_id TEXT,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    audio_ref TEXT,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id),
    FOREIGN KEY(lesson_id) REFERENCES lessons(id)
);

-- Tokens derived from card text; position is zero-based within the card.
CREATE TABLE IF NOT EXISTS tokens (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    text TEXT NOT NULL,
    position INTEGER NOT NULL,
    is_word INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_lessons_deck ON lessons(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_cards_lesson ON cards(lesson_id);
CREATE INDEX IF NOT EXISTS idx_tokens_card ON tokens(card_id, position);
`
