// Package vocab holds the vocabulary domain: the records the workers move
// around, the remote and local collaborators they talk to, and the sources
// that bind the two into batches.
package vocab

import (
	"context"
	"encoding/json"
	"fmt"
)

// Word is one entry of the remote word book.
type Word struct {
	ID         int64  `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Phonetic   string `json:"phonetic,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// WordRef identifies a stored word that still needs enrichment.
type WordRef struct {
	ID   int64
	Term string
}

// Example is an example sentence for a word.
type Example struct {
	Sentence    string `json:"sentence"`
	Translation string `json:"translation,omitempty"`
}

// Sentence is a stored example sentence lacking a translation.
type Sentence struct {
	ID   int64
	Text string
}

// AudioItem is one pronunciation file to fetch: the local destination and
// its remote source.
type AudioItem struct {
	Path string
	URL  string
}

// Credential maps session cookie names to values.
type Credential map[string]string

// Serialize returns the JSON form handed to login observers. Keys are sorted.
func (c Credential) Serialize() (string, error) {
	if c == nil {
		c = Credential{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("serialize credential: %w", err)
	}
	return string(b), nil
}

// ParseCredential decodes the JSON form produced by Serialize. null yields
// an empty credential.
func ParseCredential(data []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}
	if c == nil {
		c = Credential{}
	}
	return c, nil
}

// Dictionary is the remote vocabulary service.
type Dictionary interface {
	Words(ctx context.Context) ([]Word, error)
	Examples(ctx context.Context, term string) ([]Example, error)
	Translate(ctx context.Context, text string) (string, error)
	CheckLogin(ctx context.Context, cred Credential) (bool, error)
}

// Store is the local vocabulary database.
type Store interface {
	UpsertWord(ctx context.Context, w Word) error
	WordsWithoutExamples(ctx context.Context) ([]WordRef, error)
	InsertExamples(ctx context.Context, wordID int64, examples []Example) error
	SentencesWithoutTranslation(ctx context.Context) ([]Sentence, error)
	SetTranslation(ctx context.Context, sentenceID int64, translation string) error
	WordsWithAudio(ctx context.Context) ([]Word, error)
}
