package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vocabsync/internal/vocab"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "vocab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreWordLifecycle(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 1, Term: "apple", AudioURL: "http://a/apple.mp3"}))
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 2, Term: "pear"}))
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 1, Term: "apple", Definition: "a fruit", AudioURL: "http://a/apple2.mp3"}))

	refs, err := s.WordsWithoutExamples(ctx)
	require.NoError(t, err)
	require.Equal(t, []vocab.WordRef{{ID: 1, Term: "apple"}, {ID: 2, Term: "pear"}}, refs)

	withAudio, err := s.WordsWithAudio(ctx)
	require.NoError(t, err)
	require.Len(t, withAudio, 1)
	require.Equal(t, "a fruit", withAudio[0].Definition)
	require.Equal(t, "http://a/apple2.mp3", withAudio[0].AudioURL)
}

func TestStoreExamplesAndTranslations(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 1, Term: "apple"}))
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 2, Term: "pear"}))

	require.NoError(t, s.InsertExamples(ctx, 1, []vocab.Example{
		{Sentence: "I eat an apple."},
		{Sentence: "Apples are red.", Translation: "Les pommes sont rouges."},
		{Sentence: "I eat an apple."},
	}))
	require.NoError(t, s.InsertExamples(ctx, 2, nil))

	refs, err := s.WordsWithoutExamples(ctx)
	require.NoError(t, err)
	require.Empty(t, refs)

	sentences, err := s.SentencesWithoutTranslation(ctx)
	require.NoError(t, err)
	require.Len(t, sentences, 1)
	require.Equal(t, "I eat an apple.", sentences[0].Text)

	require.NoError(t, s.SetTranslation(ctx, sentences[0].ID, "Je mange une pomme."))
	sentences, err = s.SentencesWithoutTranslation(ctx)
	require.NoError(t, err)
	require.Empty(t, sentences)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, Counts{Words: 2, WithExamples: 2, Examples: 2}, counts)
}

func TestStoreMissingRows(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	err := s.InsertExamples(ctx, 42, []vocab.Example{{Sentence: "x"}})
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	require.ErrorIs(t, s.SetTranslation(ctx, 42, "y"), ErrNotFound)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts.Examples)
}

func TestStoreReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocab.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 9, Term: "plum"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Words)
}

func TestOpenEscapesPath(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "odd?dir#1 %x")
	path := filepath.Join(dir, "vocab.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertWord(ctx, vocab.Word{ID: 1, Term: "pera"}))
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Words)
}
