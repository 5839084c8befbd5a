package vocab

import (
	"context"
	"fmt"
)

// WordSource lists the remote word book and stores each word locally.
type WordSource struct {
	dict  Dictionary
	store Store
}

// NewWordSource binds dict and store.
func NewWordSource(dict Dictionary, store Store) *WordSource {
	return &WordSource{dict: dict, store: store}
}

// Pending returns every word in the remote word book.
func (s *WordSource) Pending(ctx context.Context) ([]Word, error) {
	words, err := s.dict.Words(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote words: %w", err)
	}
	return words, nil
}

// Commit stores w.
func (s *WordSource) Commit(ctx context.Context, w Word) error {
	if err := s.store.UpsertWord(ctx, w); err != nil {
		return fmt.Errorf("store word %q: %w", w.Term, err)
	}
	return nil
}

// ExampleSource fetches example sentences for stored words that have none.
type ExampleSource struct {
	dict  Dictionary
	store Store
}

// NewExampleSource binds dict and store.
func NewExampleSource(dict Dictionary, store Store) *ExampleSource {
	return &ExampleSource{dict: dict, store: store}
}

// Pending returns the stored words whose examples were never fetched.
func (s *ExampleSource) Pending(ctx context.Context) ([]WordRef, error) {
	refs, err := s.store.WordsWithoutExamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("list words without examples: %w", err)
	}
	return refs, nil
}

// Commit fetches the examples of ref and stores them.
func (s *ExampleSource) Commit(ctx context.Context, ref WordRef) error {
	examples, err := s.dict.Examples(ctx, ref.Term)
	if err != nil {
		return fmt.Errorf("fetch examples for %q: %w", ref.Term, err)
	}
	if err := s.store.InsertExamples(ctx, ref.ID, examples); err != nil {
		return fmt.Errorf("store examples for %q: %w", ref.Term, err)
	}
	return nil
}

// SentenceSource translates stored example sentences.
type SentenceSource struct {
	dict  Dictionary
	store Store
}

// NewSentenceSource binds dict and store.
func NewSentenceSource(dict Dictionary, store Store) *SentenceSource {
	return &SentenceSource{dict: dict, store: store}
}

// Pending returns the stored sentences without a translation.
func (s *SentenceSource) Pending(ctx context.Context) ([]Sentence, error) {
	sentences, err := s.store.SentencesWithoutTranslation(ctx)
	if err != nil {
		return nil, fmt.Errorf("list untranslated sentences: %w", err)
	}
	return sentences, nil
}

// Commit translates one sentence and stores the result.
func (s *SentenceSource) Commit(ctx context.Context, sentence Sentence) error {
	translation, err := s.dict.Translate(ctx, sentence.Text)
	if err != nil {
		return fmt.Errorf("translate sentence %d: %w", sentence.ID, err)
	}
	if err := s.store.SetTranslation(ctx, sentence.ID, translation); err != nil {
		return fmt.Errorf("store translation %d: %w", sentence.ID, err)
	}
	return nil
}
