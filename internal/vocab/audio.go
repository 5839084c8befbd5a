package vocab

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// AudioExt is the extension given to pronunciation files.
const AudioExt = ".mp3"

// AudioItems maps every word with an audio URL to a destination under dir.
// Words whose sanitized names collide keep only the first occurrence so that
// no two items share a destination.
func AudioItems(words []Word, dir string) []AudioItem {
	seen := make(map[string]struct{}, len(words))
	items := make([]AudioItem, 0, len(words))
	for _, w := range words {
		if w.AudioURL == "" {
			continue
		}
		name := FileName(w.Term)
		if name == "" {
			continue
		}
		p := filepath.Join(dir, name+AudioExt)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		items = append(items, AudioItem{Path: p, URL: w.AudioURL})
	}
	return items
}

// LoadAudioItems reads the stored words with audio and maps them under dir.
func LoadAudioItems(ctx context.Context, store Store, dir string) ([]AudioItem, error) {
	words, err := store.WordsWithAudio(ctx)
	if err != nil {
		return nil, fmt.Errorf("list words with audio: %w", err)
	}
	return AudioItems(words, dir), nil
}

// FileName turns a term into a safe file name: letters, digits, '-', '_'
// and '.' are kept, whitespace becomes '_', everything else is dropped.
func FileName(term string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(term) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == '.':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
