package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wortweg/wortweg-api/internal/domain"
)

// WordStore defines the interface for vocabulary catalog persistence.
// The catalog is append-only reference data: words are loaded in bulk and
// then read, never updated or removed.
type WordStore interface {
	// CreateMultiple saves a batch of words, skipping any whose
	// (surface, part of speech, language) identity already exists so
	// catalog loads are idempotent.
	// Returns validation errors from the domain Word if data is invalid.
	CreateMultiple(ctx context.Context, words []*domain.Word) error

	// GetByID retrieves a word by its unique ID.
	// Returns ErrWordNotFound if the word does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Word, error)

	// GetBySurface retrieves a word by its surface form, part of speech
	// and language. Returns ErrWordNotFound if the word does not exist.
	GetBySurface(ctx context.Context, surface, pos, language string) (*domain.Word, error)

	// ListByFrequency retrieves up to limit words of the given language
	// ordered by ascending frequency rank (most common first).
	ListByFrequency(ctx context.Context, language string, limit int) ([]*domain.Word, error)
}
