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

// PostgresLessonStore implements the store.LessonStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLessonStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLessonStore creates a new PostgreSQL implementation of the LessonStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresLessonStore(db store.DBTX, logger *slog.Logger) *PostgresLessonStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLessonStore{
		db:     db,
		logger: logger.With(slog.String("component", "lesson_store")),
	}
}

// Ensure PostgresLessonStore implements store.LessonStore interface
var _ store.LessonStore = (*PostgresLessonStore)(nil)

// WithTx implements store.LessonStore.WithTx
// It returns a new LessonStore that uses the provided transaction.
func (s *PostgresLessonStore) WithTx(tx *sql.Tx) store.LessonStore {
	return &PostgresLessonStore{
		db:     tx,
		logger: s.logger,
	}
}

// CreateWithPlan implements store.LessonStore.CreateWithPlan
// A partial unique index on unfinished lessons enforces the one-open-lesson
// invariant; violating it surfaces as store.ErrDuplicate.
func (s *PostgresLessonStore) CreateWithPlan(ctx context.Context, lesson *domain.Lesson) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := lesson.Validate(); err != nil {
		log.Warn("lesson validation failed during create",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lesson.ID.String()))
		return err
	}

	lessonQuery := `
		INSERT INTO user_lessons (id, user_id, status, current_sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(
		ctx,
		lessonQuery,
		lesson.ID,
		lesson.UserID,
		lesson.Status,
		lesson.CurrentSequence,
		lesson.CreatedAt,
		lesson.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create lesson",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lesson.ID.String()),
			slog.String("user_id", lesson.UserID.String()))
		return MapError(err)
	}

	slotQuery := `
		INSERT INTO lesson_slots (lesson_id, sequence_number, word_id, is_review, task_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, slot := range lesson.Slots {
		var taskID any
		if slot.TaskID != nil {
			taskID = *slot.TaskID
		}
		if _, err := s.db.ExecContext(
			ctx,
			slotQuery,
			slot.LessonID,
			slot.SequenceNumber,
			slot.WordID,
			slot.IsReview,
			taskID,
		); err != nil {
			log.Error("failed to create lesson slot",
				slog.String("error", err.Error()),
				slog.String("lesson_id", lesson.ID.String()),
				slog.Int("sequence_number", slot.SequenceNumber))
			return MapError(err)
		}
	}

	log.Info("lesson created successfully",
		slog.String("lesson_id", lesson.ID.String()),
		slog.String("user_id", lesson.UserID.String()),
		slog.Int("slot_count", len(lesson.Slots)))
	return nil
}

// GetByID implements store.LessonStore.GetByID
// Returns store.ErrLessonNotFound if the lesson does not exist.
func (s *PostgresLessonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, status, current_sequence, created_at, updated_at
		FROM user_lessons
		WHERE id = $1
	`

	lesson, err := scanLesson(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("lesson not found", slog.String("lesson_id", id.String()))
			return nil, store.ErrLessonNotFound
		}
		log.Error("failed to get lesson by ID",
			slog.String("error", err.Error()),
			slog.String("lesson_id", id.String()))
		return nil, MapError(err)
	}

	if err := s.loadSlots(ctx, lesson); err != nil {
		return nil, err
	}

	return lesson, nil
}

// GetUnfinishedForUser implements store.LessonStore.GetUnfinishedForUser
// Returns store.ErrLessonNotFound when the user has no open lesson.
func (s *PostgresLessonStore) GetUnfinishedForUser(ctx context.Context, userID uuid.UUID) (*domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, status, current_sequence, created_at, updated_at
		FROM user_lessons
		WHERE user_id = $1 AND status <> 'finished'
	`

	lesson, err := scanLesson(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrLessonNotFound
		}
		log.Error("failed to get unfinished lesson",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}

	if err := s.loadSlots(ctx, lesson); err != nil {
		return nil, err
	}

	return lesson, nil
}

// SetSlotTask implements store.LessonStore.SetSlotTask
// Returns store.ErrLessonNotFound if the slot does not exist.
func (s *PostgresLessonStore) SetSlotTask(
	ctx context.Context,
	lessonID uuid.UUID,
	sequenceNumber int,
	taskID uuid.UUID,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE lesson_slots
		SET task_id = $1
		WHERE lesson_id = $2 AND sequence_number = $3
	`
	result, err := s.db.ExecContext(ctx, query, taskID, lessonID, sequenceNumber)
	if err != nil {
		log.Error("failed to set slot task",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()),
			slog.Int("sequence_number", sequenceNumber))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "lesson slot"); err != nil {
		return err
	}

	log.Debug("slot task bound",
		slog.String("lesson_id", lessonID.String()),
		slog.Int("sequence_number", sequenceNumber),
		slog.String("task_id", taskID.String()))
	return nil
}

// SaveEvaluation implements store.LessonStore.SaveEvaluation
// The evaluation and its per-word scores are appended; history is never
// updated in place. A unique constraint allows one entry per lesson slot, so
// a second evaluation for the same slot surfaces as store.ErrDuplicate.
func (s *PostgresLessonStore) SaveEvaluation(ctx context.Context, eval *domain.Evaluation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := eval.Validate(); err != nil {
		log.Warn("evaluation validation failed during save",
			slog.String("error", err.Error()),
			slog.String("lesson_id", eval.LessonID.String()))
		return err
	}

	entryQuery := `
		INSERT INTO history_entries (id, lesson_id, sequence_number, task_id, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(
		ctx,
		entryQuery,
		eval.ID,
		eval.LessonID,
		eval.SequenceNumber,
		eval.TaskID,
		eval.Response,
		eval.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save evaluation",
			slog.String("error", err.Error()),
			slog.String("lesson_id", eval.LessonID.String()),
			slog.Int("sequence_number", eval.SequenceNumber))
		return MapError(err)
	}

	scoreQuery := `
		INSERT INTO entry_scores (entry_id, word_id, score)
		VALUES ($1, $2, $3)
	`
	for _, score := range eval.Scores {
		if _, err := s.db.ExecContext(ctx, scoreQuery, eval.ID, score.WordID, score.Score); err != nil {
			log.Error("failed to save entry score",
				slog.String("error", err.Error()),
				slog.String("entry_id", eval.ID.String()),
				slog.String("word_id", score.WordID.String()))
			return MapError(err)
		}
	}

	log.Info("evaluation saved",
		slog.String("lesson_id", eval.LessonID.String()),
		slog.Int("sequence_number", eval.SequenceNumber),
		slog.Int("score_count", len(eval.Scores)))
	return nil
}

// UpdateProgress implements store.LessonStore.UpdateProgress
// Returns store.ErrLessonNotFound if the lesson does not exist.
func (s *PostgresLessonStore) UpdateProgress(
	ctx context.Context,
	lessonID uuid.UUID,
	currentSequence int,
	status domain.LessonStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := status.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE user_lessons
		SET current_sequence = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, currentSequence, status, time.Now().UTC(), lessonID)
	if err != nil {
		log.Error("failed to update lesson progress",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "lesson"); err != nil {
		return err
	}

	log.Debug("lesson progress updated",
		slog.String("lesson_id", lessonID.String()),
		slog.Int("current_sequence", currentSequence),
		slog.String("status", string(status)))
	return nil
}

// LatestScores implements store.LessonStore.LatestScores
// For each word graded during the lesson, only the score of the most recent
// evaluation counts.
func (s *PostgresLessonStore) LatestScores(ctx context.Context, lessonID uuid.UUID) ([]domain.EntryScore, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT DISTINCT ON (es.word_id) es.word_id, es.score
		FROM entry_scores es
		JOIN history_entries he ON he.id = es.entry_id
		WHERE he.lesson_id = $1
		ORDER BY es.word_id, he.created_at DESC, he.sequence_number DESC
	`

	rows, err := s.db.QueryContext(ctx, query, lessonID)
	if err != nil {
		log.Error("failed to query latest scores",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	scores := []domain.EntryScore{}
	for rows.Next() {
		var score domain.EntryScore
		if err := rows.Scan(&score.WordID, &score.Score); err != nil {
			log.Error("failed to scan score row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return scores, nil
}

// loadSlots populates a lesson's planned slots in sequence order.
func (s *PostgresLessonStore) loadSlots(ctx context.Context, lesson *domain.Lesson) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT lesson_id, sequence_number, word_id, is_review, task_id
		FROM lesson_slots
		WHERE lesson_id = $1
		ORDER BY sequence_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, lesson.ID)
	if err != nil {
		log.Error("failed to query lesson slots",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lesson.ID.String()))
		return MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	lesson.Slots = nil
	for rows.Next() {
		var slot domain.LessonSlot
		var taskID uuid.NullUUID
		if err := rows.Scan(&slot.LessonID, &slot.SequenceNumber, &slot.WordID, &slot.IsReview, &taskID); err != nil {
			log.Error("failed to scan slot row", slog.String("error", err.Error()))
			return MapError(err)
		}
		if taskID.Valid {
			id := taskID.UUID
			slot.TaskID = &id
		}
		lesson.Slots = append(lesson.Slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return MapError(err)
	}

	return nil
}

func scanLesson(row rowScanner) (*domain.Lesson, error) {
	var lesson domain.Lesson
	var status string
	err := row.Scan(
		&lesson.ID,
		&lesson.UserID,
		&status,
		&lesson.CurrentSequence,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lesson.Status = domain.LessonStatus(status)
	return &lesson, nil
}
