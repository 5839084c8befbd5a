// Package sqlite is the local vocabulary database, backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/vocabsync/internal/vocab"
)

const schema = `
CREATE TABLE IF NOT EXISTS words (
    id               INTEGER PRIMARY KEY,
    term             TEXT NOT NULL,
    definition       TEXT NOT NULL DEFAULT '',
    phonetic         TEXT NOT NULL DEFAULT '',
    audio_url        TEXT NOT NULL DEFAULT '',
    examples_fetched INTEGER NOT NULL DEFAULT 0,
    updated_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_words_examples_fetched ON words(examples_fetched);

CREATE TABLE IF NOT EXISTS examples (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    word_id     INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
    sentence    TEXT NOT NULL,
    translation TEXT NOT NULL DEFAULT '',
    UNIQUE (word_id, sentence)
);
CREATE INDEX IF NOT EXISTS idx_examples_translation ON examples(translation);
`

// ErrNotFound is returned when an update targets a missing row.
var ErrNotFound = errors.New("sqlite: row not found")

// Store implements vocab.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ vocab.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn, err := fileDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// fileDSN renders path as an absolute, escaped file: URI carrying the
// connection pragmas.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	return u.String(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertWord inserts w or refreshes the stored copy. A zero ID lets the
// database assign one.
func (s *Store) UpsertWord(ctx context.Context, w vocab.Word) error {
	var id sql.NullInt64
	if w.ID != 0 {
		id = sql.NullInt64{Int64: w.ID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO words (id, term, definition, phonetic, audio_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     term = excluded.term,
		     definition = excluded.definition,
		     phonetic = excluded.phonetic,
		     audio_url = excluded.audio_url,
		     updated_at = excluded.updated_at`,
		id, w.Term, w.Definition, w.Phonetic, w.AudioURL, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert word: %w", err)
	}
	return nil
}

// WordsWithoutExamples lists words whose examples were never fetched.
func (s *Store) WordsWithoutExamples(ctx context.Context) ([]vocab.WordRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term FROM words WHERE examples_fetched = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query words without examples: %w", err)
	}
	defer rows.Close()

	var refs []vocab.WordRef
	for rows.Next() {
		var ref vocab.WordRef
		if err := rows.Scan(&ref.ID, &ref.Term); err != nil {
			return nil, fmt.Errorf("scan word ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// InsertExamples stores examples for wordID and marks the word as fetched,
// even when examples is empty.
func (s *Store) InsertExamples(ctx context.Context, wordID int64, examples []vocab.Example) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE words SET examples_fetched = 1, updated_at = ? WHERE id = ?`, s.now().UTC(), wordID)
	if err != nil {
		return fmt.Errorf("mark examples fetched: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("word %d: %w", wordID, ErrNotFound)
	}
	for _, ex := range examples {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO examples (word_id, sentence, translation) VALUES (?, ?, ?)
			 ON CONFLICT(word_id, sentence) DO NOTHING`,
			wordID, ex.Sentence, ex.Translation,
		); err != nil {
			return fmt.Errorf("insert example: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit examples: %w", err)
	}
	return nil
}

// SentencesWithoutTranslation lists example sentences lacking a translation.
func (s *Store) SentencesWithoutTranslation(ctx context.Context) ([]vocab.Sentence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sentence FROM examples WHERE translation = '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query untranslated sentences: %w", err)
	}
	defer rows.Close()

	var out []vocab.Sentence
	for rows.Next() {
		var sentence vocab.Sentence
		if err := rows.Scan(&sentence.ID, &sentence.Text); err != nil {
			return nil, fmt.Errorf("scan sentence: %w", err)
		}
		out = append(out, sentence)
	}
	return out, rows.Err()
}

// SetTranslation stores the translation of one example sentence.
func (s *Store) SetTranslation(ctx context.Context, sentenceID int64, translation string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE examples SET translation = ? WHERE id = ?`, translation, sentenceID)
	if err != nil {
		return fmt.Errorf("set translation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sentence %d: %w", sentenceID, ErrNotFound)
	}
	return nil
}

// WordsWithAudio lists words that carry a pronunciation URL.
func (s *Store) WordsWithAudio(ctx context.Context) ([]vocab.Word, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term, definition, phonetic, audio_url
		 FROM words WHERE audio_url <> '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query words with audio: %w", err)
	}
	defer rows.Close()

	var words []vocab.Word
	for rows.Next() {
		var w vocab.Word
		if err := rows.Scan(&w.ID, &w.Term, &w.Definition, &w.Phonetic, &w.AudioURL); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// Counts summarizes the database contents.
type Counts struct {
	Words        int `json:"words"`
	WithExamples int `json:"with_examples"`
	Examples     int `json:"examples"`
	Untranslated int `json:"untranslated"`
	WithAudio    int `json:"with_audio"`
}

// Counts returns row counts for status reporting.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := s.db.QueryRowContext(ctx, `
		SELECT
		    (SELECT COUNT(*) FROM words),
		    (SELECT COUNT(*) FROM words WHERE examples_fetched = 1),
		    (SELECT COUNT(*) FROM examples),
		    (SELECT COUNT(*) FROM examples WHERE translation = ''),
		    (SELECT COUNT(*) FROM words WHERE audio_url <> '')`)
	if err := row.Scan(&c.Words, &c.WithExamples, &c.Examples, &c.Untranslated, &c.WithAudio); err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}
