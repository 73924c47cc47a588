package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Word-specific validation errors
var (
	// ErrWordIDEmpty is returned when a word ID is empty or nil.
	ErrWordIDEmpty = errors.New("word ID cannot be empty")

	// ErrWordSurfaceEmpty is returned when a word's surface form is empty.
	ErrWordSurfaceEmpty = errors.New("word surface form cannot be empty")

	// ErrWordPOSEmpty is returned when a word's part of speech is empty.
	ErrWordPOSEmpty = errors.New("word part of speech cannot be empty")

	// ErrWordRankInvalid is returned when a word's frequency rank is not positive.
	ErrWordRankInvalid = errors.New("word frequency rank must be greater than 0")

	// ErrWordLanguageEmpty is returned when a word's language is empty.
	ErrWordLanguageEmpty = errors.New("word language cannot be empty")
)

// Word is one lexical item of the vocabulary catalog. Its identity is the
// (surface form, part of speech) pair within a language; the frequency rank
// orders the catalog from most common (rank 1) upward. Words are immutable
// reference data once loaded.
type Word struct {
	ID            uuid.UUID `json:"id"`
	Surface       string    `json:"surface"`
	PartOfSpeech  string    `json:"part_of_speech"`
	FrequencyRank int       `json:"frequency_rank"`
	Language      string    `json:"language"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewWord creates a new Word with the given surface form, part of speech,
// frequency rank and language. It generates a new UUID for the word ID.
// Returns an error if validation fails.
func NewWord(surface, pos string, rank int, language string) (*Word, error) {
	word := &Word{
		ID:            uuid.New(),
		Surface:       surface,
		PartOfSpeech:  pos,
		FrequencyRank: rank,
		Language:      language,
		CreatedAt:     time.Now().UTC(),
	}

	if err := word.Validate(); err != nil {
		return nil, err
	}

	return word, nil
}

// Validate checks if the Word has valid data.
// Returns an error if any field fails validation.
func (w *Word) Validate() error {
	if w.ID == uuid.Nil {
		return ErrWordIDEmpty
	}

	if w.Surface == "" {
		return ErrWordSurfaceEmpty
	}

	if w.PartOfSpeech == "" {
		return ErrWordPOSEmpty
	}

	if w.FrequencyRank <= 0 {
		return ErrWordRankInvalid
	}

	if w.Language == "" {
		return ErrWordLanguageEmpty
	}

	return nil
}

// WordIDSet returns the deduplicated IDs of the given words, preserving the
// order of first appearance.
func WordIDSet(words []*Word) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(words))
	ids := make([]uuid.UUID, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w.ID]; ok {
			continue
		}
		seen[w.ID] = struct{}{}
		ids = append(ids, w.ID)
	}
	return ids
}
