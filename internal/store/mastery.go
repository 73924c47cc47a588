package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wortweg/wortweg-api/internal/domain"
)

// MasteryStore defines the interface for per-user word mastery persistence.
// Mastery is one integer score per (user, word) pair; the absence of a row
// is the distinct "unseen" state.
type MasteryStore interface {
	// GetScore retrieves the current mastery record for a user and word.
	// Returns ErrMasteryNotFound if the user has never been scored on the
	// word, i.e. the word is unseen.
	GetScore(ctx context.Context, userID, wordID uuid.UUID) (*domain.MasteryRecord, error)

	// RecordScore upserts the mastery score for a user and word in a single
	// atomic statement. Returns domain.ErrInvalidScore if the score is out
	// of range; no partial write occurs.
	RecordScore(ctx context.Context, userID, wordID uuid.UUID, score int) error

	// WordsDueForReview retrieves words the user has seen whose score is
	// strictly below threshold, ordered by least recently practiced first,
	// up to limit. Returns an empty slice when nothing is due.
	WordsDueForReview(ctx context.Context, userID uuid.UUID, threshold, limit int) ([]*domain.Word, error)

	// WordsNeverSeen retrieves words of the given language the user has no
	// mastery record for, ordered by ascending frequency rank, up to limit.
	WordsNeverSeen(ctx context.Context, userID uuid.UUID, language string, limit int) ([]*domain.Word, error)

	// WithTx returns a new MasteryStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) MasteryStore
}
