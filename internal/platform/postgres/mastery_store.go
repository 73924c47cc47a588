package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// PostgresMasteryStore implements the store.MasteryStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMasteryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMasteryStore creates a new PostgreSQL implementation of the MasteryStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMasteryStore(db store.DBTX, logger *slog.Logger) *PostgresMasteryStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMasteryStore{
		db:     db,
		logger: logger.With(slog.String("component", "mastery_store")),
	}
}

// Ensure PostgresMasteryStore implements store.MasteryStore interface
var _ store.MasteryStore = (*PostgresMasteryStore)(nil)

// WithTx implements store.MasteryStore.WithTx
// It returns a new MasteryStore that uses the provided transaction.
func (s *PostgresMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore {
	return &PostgresMasteryStore{
		db:     tx,
		logger: s.logger,
	}
}

// GetScore implements store.MasteryStore.GetScore
// Returns store.ErrMasteryNotFound when the user has never been scored on
// the word. Callers treat that as the unseen state, not as score zero.
func (s *PostgresMasteryStore) GetScore(ctx context.Context, userID, wordID uuid.UUID) (*domain.MasteryRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, word_id, score, updated_at
		FROM learning_data
		WHERE user_id = $1 AND word_id = $2
	`

	var record domain.MasteryRecord
	err := s.db.QueryRowContext(ctx, query, userID, wordID).Scan(
		&record.UserID,
		&record.WordID,
		&record.Score,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("word unseen by user",
				slog.String("user_id", userID.String()),
				slog.String("word_id", wordID.String()))
			return nil, store.ErrMasteryNotFound
		}
		log.Error("failed to get mastery score",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("word_id", wordID.String()))
		return nil, MapError(err)
	}

	return &record, nil
}

// RecordScore implements store.MasteryStore.RecordScore
// The write is a single upsert, so the record either fully reflects the new
// score or is left untouched. Returns domain.ErrInvalidScore if the score is
// out of range.
func (s *PostgresMasteryStore) RecordScore(ctx context.Context, userID, wordID uuid.UUID, score int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.ValidScore(score) {
		log.Warn("rejected out-of-range mastery score",
			slog.String("user_id", userID.String()),
			slog.String("word_id", wordID.String()),
			slog.Int("score", score))
		return domain.ErrInvalidScore
	}

	query := `
		INSERT INTO learning_data (user_id, word_id, score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, word_id)
		DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, userID, wordID, score, time.Now().UTC())
	if err != nil {
		log.Error("failed to record mastery score",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("word_id", wordID.String()))
		return MapError(err)
	}

	log.Debug("mastery score recorded",
		slog.String("user_id", userID.String()),
		slog.String("word_id", wordID.String()),
		slog.Int("score", score))
	return nil
}

// WordsDueForReview implements store.MasteryStore.WordsDueForReview
// Seen words below the threshold are returned least recently practiced
// first, so long-neglected words surface before recently failed ones.
func (s *PostgresMasteryStore) WordsDueForReview(
	ctx context.Context,
	userID uuid.UUID,
	threshold, limit int,
) ([]*domain.Word, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT w.id, w.surface, w.part_of_speech, w.frequency_rank, w.language, w.created_at
		FROM learning_data ld
		JOIN words w ON w.id = ld.word_id
		WHERE ld.user_id = $1 AND ld.score < $2
		ORDER BY ld.updated_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, threshold, limit)
	if err != nil {
		log.Error("failed to query words due for review",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}

	words, err := collectWords(rows, log)
	if err != nil {
		return nil, err
	}

	log.Debug("words due for review",
		slog.String("user_id", userID.String()),
		slog.Int("threshold", threshold),
		slog.Int("count", len(words)))
	return words, nil
}

// WordsNeverSeen implements store.MasteryStore.WordsNeverSeen
// Unseen words are returned most common first so learners meet high-value
// vocabulary early.
func (s *PostgresMasteryStore) WordsNeverSeen(
	ctx context.Context,
	userID uuid.UUID,
	language string,
	limit int,
) ([]*domain.Word, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT w.id, w.surface, w.part_of_speech, w.frequency_rank, w.language, w.created_at
		FROM words w
		WHERE w.language = $2
		  AND NOT EXISTS (
			SELECT 1 FROM learning_data ld
			WHERE ld.user_id = $1 AND ld.word_id = w.id
		  )
		ORDER BY w.frequency_rank ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, language, limit)
	if err != nil {
		log.Error("failed to query unseen words",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}

	words, err := collectWords(rows, log)
	if err != nil {
		return nil, err
	}

	log.Debug("unseen words selected",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(words)))
	return words, nil
}
