package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// PostgresWordStore implements the store.WordStore interface
// using a PostgreSQL database as the storage backend.
type PostgresWordStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresWordStore creates a new PostgreSQL implementation of the WordStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresWordStore(db store.DBTX, logger *slog.Logger) *PostgresWordStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresWordStore{
		db:     db,
		logger: logger.With(slog.String("component", "word_store")),
	}
}

// Ensure PostgresWordStore implements store.WordStore interface
var _ store.WordStore = (*PostgresWordStore)(nil)

// CreateMultiple implements store.WordStore.CreateMultiple
// Words whose (surface, part of speech, language) identity already exists
// are skipped, so repeated corpus loads are idempotent.
func (s *PostgresWordStore) CreateMultiple(ctx context.Context, words []*domain.Word) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, word := range words {
		if err := word.Validate(); err != nil {
			log.Warn("word validation failed during create",
				slog.String("error", err.Error()),
				slog.String("surface", word.Surface))
			return err
		}
	}

	query := `
		INSERT INTO words (id, surface, part_of_speech, frequency_rank, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (surface, part_of_speech, language) DO NOTHING
	`

	inserted := 0
	for _, word := range words {
		result, err := s.db.ExecContext(
			ctx,
			query,
			word.ID,
			word.Surface,
			word.PartOfSpeech,
			word.FrequencyRank,
			word.Language,
			word.CreatedAt,
		)
		if err != nil {
			log.Error("failed to create word",
				slog.String("error", err.Error()),
				slog.String("surface", word.Surface))
			return MapError(err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	log.Info("words created",
		slog.Int("requested", len(words)),
		slog.Int("inserted", inserted))
	return nil
}

// GetByID implements store.WordStore.GetByID
// Returns store.ErrWordNotFound if the word does not exist.
func (s *PostgresWordStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Word, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, surface, part_of_speech, frequency_rank, language, created_at
		FROM words
		WHERE id = $1
	`

	word, err := scanWord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("word not found", slog.String("word_id", id.String()))
			return nil, store.ErrWordNotFound
		}
		log.Error("failed to get word by ID",
			slog.String("error", err.Error()),
			slog.String("word_id", id.String()))
		return nil, MapError(err)
	}

	return word, nil
}

// GetBySurface implements store.WordStore.GetBySurface
// Returns store.ErrWordNotFound if the word does not exist.
func (s *PostgresWordStore) GetBySurface(ctx context.Context, surface, pos, language string) (*domain.Word, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, surface, part_of_speech, frequency_rank, language, created_at
		FROM words
		WHERE surface = $1 AND part_of_speech = $2 AND language = $3
	`

	word, err := scanWord(s.db.QueryRowContext(ctx, query, surface, pos, language))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("word not found",
				slog.String("surface", surface),
				slog.String("part_of_speech", pos))
			return nil, store.ErrWordNotFound
		}
		log.Error("failed to get word by surface",
			slog.String("error", err.Error()),
			slog.String("surface", surface))
		return nil, MapError(err)
	}

	return word, nil
}

// ListByFrequency implements store.WordStore.ListByFrequency
// Words are ordered most common first.
func (s *PostgresWordStore) ListByFrequency(ctx context.Context, language string, limit int) ([]*domain.Word, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, surface, part_of_speech, frequency_rank, language, created_at
		FROM words
		WHERE language = $1
		ORDER BY frequency_rank ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, language, limit)
	if err != nil {
		log.Error("failed to list words by frequency",
			slog.String("error", err.Error()),
			slog.String("language", language))
		return nil, MapError(err)
	}

	return collectWords(rows, log)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWord(row rowScanner) (*domain.Word, error) {
	var word domain.Word
	err := row.Scan(
		&word.ID,
		&word.Surface,
		&word.PartOfSpeech,
		&word.FrequencyRank,
		&word.Language,
		&word.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &word, nil
}

// collectWords drains a word query result into a slice, returning an empty
// slice rather than nil when no rows matched.
func collectWords(rows *sql.Rows, log *slog.Logger) ([]*domain.Word, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	words := []*domain.Word{}
	for rows.Next() {
		word, err := scanWord(rows)
		if err != nil {
			log.Error("failed to scan word row", slog.String("error", err.Error()))
			return nil, err
		}
		words = append(words, word)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return words, nil
}
