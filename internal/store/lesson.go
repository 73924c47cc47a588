package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wortweg/wortweg-api/internal/domain"
)

// LessonStore defines the interface for lesson, plan and history persistence.
type LessonStore interface {
	// CreateWithPlan saves a lesson together with all of its planned slots
	// in one transaction; use WithTx to join a larger one.
	CreateWithPlan(ctx context.Context, lesson *domain.Lesson) error

	// GetByID retrieves a lesson with its slots by ID.
	// Returns ErrLessonNotFound if the lesson does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lesson, error)

	// GetUnfinishedForUser retrieves the user's open lesson, if any.
	// At most one lesson per user is ever unfinished.
	// Returns ErrLessonNotFound when every lesson is finished.
	GetUnfinishedForUser(ctx context.Context, userID uuid.UUID) (*domain.Lesson, error)

	// SetSlotTask binds a task to one planned slot of a lesson.
	// Returns ErrLessonNotFound if the slot does not exist.
	SetSlotTask(ctx context.Context, lessonID uuid.UUID, sequenceNumber int, taskID uuid.UUID) error

	// SaveEvaluation appends a graded attempt with its per-word scores.
	SaveEvaluation(ctx context.Context, eval *domain.Evaluation) error

	// UpdateProgress moves a lesson's cursor and status.
	// Returns ErrLessonNotFound if the lesson does not exist.
	UpdateProgress(ctx context.Context, lessonID uuid.UUID, currentSequence int, status domain.LessonStatus) error

	// LatestScores retrieves the most recent entry score per word across a
	// lesson's evaluations, for the end-of-lesson summary.
	LatestScores(ctx context.Context, lessonID uuid.UUID) ([]domain.EntryScore, error)

	// WithTx returns a new LessonStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) LessonStore
}
