// Package lesson orchestrates the study loop: starting a lesson from a plan,
// serving tasks slot by slot, grading submissions and recording mastery.
package lesson

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/service/scheduler"
	"github.com/wortweg/wortweg-api/internal/store"
)

// Lesson flow errors
var (
	// ErrLessonInProgress is returned when a user tries to start a lesson
	// while another one is still open. The open lesson must be finished or
	// resumed instead.
	ErrLessonInProgress = errors.New("user already has an unfinished lesson")

	// ErrStaleSubmission is returned when a submission names a slot or task
	// that is not the lesson's current one, typically after a retried or
	// duplicated request. Nothing is recorded for a stale submission.
	ErrStaleSubmission = errors.New("submission does not match the current task")
)

// Planner selects and orders the words for a user's next lesson.
type Planner interface {
	Plan(ctx context.Context, userID uuid.UUID, language string) ([]scheduler.PlannedWord, error)
}

// TaskProvider materializes a task for a set of words, reusing stored tasks
// where possible.
type TaskProvider interface {
	TaskForWords(ctx context.Context, words []*domain.Word, taskType domain.TaskType, excludeTaskIDs []uuid.UUID) (*domain.Task, error)
}

// Evaluator grades a response against a task, one score per target word.
type Evaluator interface {
	Evaluate(ctx context.Context, task *domain.Task, words []*domain.Word, response string) ([]domain.EntryScore, error)
}

// TaskView is the slice of a lesson the learner faces next: one task at one
// position, with enough context to render and to submit.
type TaskView struct {
	LessonID       uuid.UUID       `json:"lesson_id"`
	SequenceNumber int             `json:"sequence_number"`
	TotalSlots     int             `json:"total_slots"`
	TaskID         uuid.UUID       `json:"task_id"`
	TaskType       domain.TaskType `json:"task_type"`
	Prompt         string          `json:"prompt"`
	IsReview       bool            `json:"is_review"`
}

// StartResult is the outcome of starting a lesson. Finished is true when the
// plan came out empty, in which case Task is nil.
type StartResult struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Finished bool      `json:"finished"`
	Task     *TaskView `json:"task,omitempty"`
}

// SubmitResult reports the grades for one submission and what comes next.
// Next is nil when the lesson finished or the next task could not be
// prepared yet; in the latter case the client fetches it separately.
type SubmitResult struct {
	Scores   []domain.EntryScore `json:"scores"`
	Finished bool                `json:"finished"`
	Summary  []domain.EntryScore `json:"summary,omitempty"`
	Next     *TaskView           `json:"next,omitempty"`
}

// Summary is the end-of-lesson report: the latest score per practiced word.
type Summary struct {
	LessonID uuid.UUID           `json:"lesson_id"`
	Scores   []domain.EntryScore `json:"scores"`
}

// Service runs lessons end to end. It owns the transaction that makes a
// graded submission atomic: history entry, mastery updates and cursor move
// commit together or not at all.
type Service struct {
	db           *sql.DB
	runInTx      func(ctx context.Context, fn store.TxFn) error
	userStore    store.UserStore
	wordStore    store.WordStore
	lessonStore  store.LessonStore
	masteryStore store.MasteryStore
	taskStore    store.TaskStore
	planner      Planner
	tasks        TaskProvider
	evaluator    Evaluator
	language     string
	logger       *slog.Logger
}

// NewService creates the lesson service. If log is nil, a default logger
// will be used.
func NewService(
	db *sql.DB,
	userStore store.UserStore,
	wordStore store.WordStore,
	lessonStore store.LessonStore,
	masteryStore store.MasteryStore,
	taskStore store.TaskStore,
	planner Planner,
	tasks TaskProvider,
	evaluator Evaluator,
	language string,
	log *slog.Logger,
) *Service {
	if db == nil {
		panic("db cannot be nil")
	}
	if userStore == nil || wordStore == nil || lessonStore == nil || masteryStore == nil || taskStore == nil {
		panic("stores cannot be nil")
	}
	if planner == nil || tasks == nil || evaluator == nil {
		panic("planner, task provider and evaluator cannot be nil")
	}
	if language == "" {
		panic("language cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		db:           db,
		userStore:    userStore,
		wordStore:    wordStore,
		lessonStore:  lessonStore,
		masteryStore: masteryStore,
		taskStore:    taskStore,
		planner:      planner,
		tasks:        tasks,
		evaluator:    evaluator,
		language:     language,
		logger:       log.With(slog.String("component", "lesson")),
	}
	s.runInTx = func(ctx context.Context, fn store.TxFn) error {
		return store.RunInTransaction(ctx, s.db, fn)
	}
	return s
}

// taskTypeFor picks the exercise variant for a slot: reviews require
// production (translation), new words start with recognition (four-choice).
func taskTypeFor(slot *domain.LessonSlot) domain.TaskType {
	if slot.IsReview {
		return domain.TaskTypeOneWayTranslation
	}
	return domain.TaskTypeFourChoice
}

// Start plans and creates a new lesson for the user and serves its first
// task. Returns store.ErrUserNotFound for unknown users and
// ErrLessonInProgress when an unfinished lesson exists. A user with nothing
// due and no unseen vocabulary gets an already finished lesson with no task.
//
// The first task is generated before the lesson is persisted, so a
// generation outage leaves no half-started lesson behind.
func (s *Service) Start(ctx context.Context, userID uuid.UUID) (*StartResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.userStore.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	open, err := s.lessonStore.GetUnfinishedForUser(ctx, userID)
	if err == nil {
		return nil, fmt.Errorf("%w: lesson %s", ErrLessonInProgress, open.ID)
	}
	if !errors.Is(err, store.ErrLessonNotFound) {
		return nil, fmt.Errorf("checking for open lesson: %w", err)
	}

	planned, err := s.planner.Plan(ctx, userID, s.language)
	if err != nil {
		return nil, fmt.Errorf("planning lesson: %w", err)
	}

	slots := make([]*domain.LessonSlot, len(planned))
	wordsBySlot := make(map[int]*domain.Word, len(planned))
	for i, p := range planned {
		slots[i] = &domain.LessonSlot{
			SequenceNumber: p.SequenceNumber,
			WordID:         p.Word.ID,
			IsReview:       p.IsReview,
		}
		wordsBySlot[p.SequenceNumber] = p.Word
	}

	lesson, err := domain.NewLesson(userID, slots)
	if err != nil {
		return nil, fmt.Errorf("assembling lesson: %w", err)
	}

	if len(slots) == 0 {
		if err := s.lessonStore.CreateWithPlan(ctx, lesson); err != nil {
			return nil, fmt.Errorf("saving empty lesson: %w", err)
		}
		log.Info("empty lesson created",
			slog.String("lesson_id", lesson.ID.String()),
			slog.String("user_id", userID.String()))
		return &StartResult{LessonID: lesson.ID, Finished: true}, nil
	}

	first := lesson.CurrentSlot()
	task, err := s.tasks.TaskForWords(ctx, []*domain.Word{wordsBySlot[first.SequenceNumber]}, taskTypeFor(first), nil)
	if err != nil {
		return nil, fmt.Errorf("preparing first task: %w", err)
	}

	lesson.Status = domain.LessonStatusInProgress
	first.TaskID = &task.ID

	if err := s.lessonStore.CreateWithPlan(ctx, lesson); err != nil {
		return nil, fmt.Errorf("saving lesson: %w", err)
	}

	log.Info("lesson started",
		slog.String("lesson_id", lesson.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("slot_count", len(slots)))

	return &StartResult{
		LessonID: lesson.ID,
		Task:     s.viewFor(lesson, first, task),
	}, nil
}

// NextTask returns the task at the user's open lesson cursor, generating and
// binding one if the slot has none yet. Returns store.ErrLessonNotFound when
// the user has no unfinished lesson. Safe to call repeatedly: a bound slot
// is served as is.
func (s *Service) NextTask(ctx context.Context, userID uuid.UUID) (*TaskView, error) {
	lesson, err := s.lessonStore.GetUnfinishedForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading open lesson: %w", err)
	}

	slot := lesson.CurrentSlot()
	if slot == nil {
		return nil, domain.ErrLessonFinished
	}

	task, err := s.taskForSlot(ctx, lesson, slot)
	if err != nil {
		return nil, err
	}
	return s.viewFor(lesson, slot, task), nil
}

// Submit grades the response to the lesson's current task, records the
// evaluation and mastery scores atomically and advances the cursor. The
// sequence number and task ID must name the current slot exactly; anything
// else fails with ErrStaleSubmission before any state changes. A concurrent
// duplicate for the same slot loses at commit time and also gets
// ErrStaleSubmission, with nothing recorded.
func (s *Service) Submit(
	ctx context.Context,
	userID, lessonID uuid.UUID,
	sequenceNumber int,
	taskID uuid.UUID,
	response string,
) (*SubmitResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lesson, err := s.ownedLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status == domain.LessonStatusFinished {
		return nil, domain.ErrLessonFinished
	}

	slot := lesson.CurrentSlot()
	if slot == nil {
		return nil, domain.ErrLessonFinished
	}
	if sequenceNumber != slot.SequenceNumber || slot.TaskID == nil || *slot.TaskID != taskID {
		return nil, fmt.Errorf("%w: slot %d", ErrStaleSubmission, sequenceNumber)
	}

	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	words, err := s.loadWords(ctx, task.TargetWordIDs)
	if err != nil {
		return nil, err
	}

	scores, err := s.evaluator.Evaluate(ctx, task, words, response)
	if err != nil {
		return nil, fmt.Errorf("grading response: %w", err)
	}

	eval, err := domain.NewEvaluation(lesson.ID, slot.SequenceNumber, taskID, response, scores)
	if err != nil {
		return nil, fmt.Errorf("assembling evaluation: %w", err)
	}

	if err := lesson.Advance(); err != nil {
		return nil, err
	}

	if err := s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		lessons := s.lessonStore.WithTx(tx)
		mastery := s.masteryStore.WithTx(tx)

		if err := lessons.SaveEvaluation(ctx, eval); err != nil {
			return fmt.Errorf("saving evaluation: %w", err)
		}
		for _, sc := range scores {
			if err := mastery.RecordScore(ctx, userID, sc.WordID, sc.Score); err != nil {
				return fmt.Errorf("recording score for word %s: %w", sc.WordID, err)
			}
		}
		return lessons.UpdateProgress(ctx, lesson.ID, lesson.CurrentSequence, lesson.Status)
	}); err != nil {
		// The in-memory check above races with concurrent submissions; the
		// unique history constraint is the arbiter. The loser's transaction
		// rolls back whole, so only the first grading counts.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: slot %d already graded", ErrStaleSubmission, slot.SequenceNumber)
		}
		return nil, err
	}

	result := &SubmitResult{Scores: scores}

	if lesson.Status == domain.LessonStatusFinished {
		result.Finished = true
		result.Summary, err = s.lessonStore.LatestScores(ctx, lesson.ID)
		if err != nil {
			return nil, fmt.Errorf("loading lesson summary: %w", err)
		}
		log.Info("lesson completed",
			slog.String("lesson_id", lesson.ID.String()),
			slog.String("user_id", userID.String()))
		return result, nil
	}

	// The submission is already committed; a generation outage here must not
	// undo it. The next task is left unbound and served by NextTask later.
	next := lesson.CurrentSlot()
	nextTask, err := s.taskForSlot(ctx, lesson, next)
	if err != nil {
		log.Warn("next task not ready, submission recorded",
			slog.String("lesson_id", lesson.ID.String()),
			slog.Int("sequence_number", next.SequenceNumber),
			slog.String("error", err.Error()))
		return result, nil
	}
	result.Next = s.viewFor(lesson, next, nextTask)
	return result, nil
}

// Finish closes the lesson early and returns the latest score per practiced
// word. Finishing an already finished lesson just returns its summary, so
// retries are harmless.
func (s *Service) Finish(ctx context.Context, userID, lessonID uuid.UUID) (*Summary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lesson, err := s.ownedLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}

	if lesson.Status != domain.LessonStatusFinished {
		if err := lesson.Finish(); err != nil {
			return nil, err
		}
		if err := s.lessonStore.UpdateProgress(ctx, lesson.ID, lesson.CurrentSequence, lesson.Status); err != nil {
			return nil, fmt.Errorf("closing lesson: %w", err)
		}
		log.Info("lesson finished early",
			slog.String("lesson_id", lesson.ID.String()),
			slog.String("user_id", userID.String()))
	}

	scores, err := s.lessonStore.LatestScores(ctx, lesson.ID)
	if err != nil {
		return nil, fmt.Errorf("loading lesson summary: %w", err)
	}
	return &Summary{LessonID: lesson.ID, Scores: scores}, nil
}

// ownedLesson loads a lesson and verifies it belongs to the user. Foreign
// lessons are reported as not found rather than forbidden.
func (s *Service) ownedLesson(ctx context.Context, userID, lessonID uuid.UUID) (*domain.Lesson, error) {
	lesson, err := s.lessonStore.GetByID(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("loading lesson: %w", err)
	}
	if lesson.UserID != userID {
		return nil, fmt.Errorf("loading lesson: %w", store.ErrLessonNotFound)
	}
	return lesson, nil
}

// taskForSlot returns the slot's bound task, or generates and binds one. The
// tasks already used by the lesson are excluded so the learner does not see
// the same exercise twice in one session.
func (s *Service) taskForSlot(ctx context.Context, lesson *domain.Lesson, slot *domain.LessonSlot) (*domain.Task, error) {
	if slot.TaskID != nil {
		task, err := s.taskStore.GetByID(ctx, *slot.TaskID)
		if err != nil {
			return nil, fmt.Errorf("loading bound task: %w", err)
		}
		return task, nil
	}

	word, err := s.wordStore.GetByID(ctx, slot.WordID)
	if err != nil {
		return nil, fmt.Errorf("loading slot word: %w", err)
	}

	var used []uuid.UUID
	for _, other := range lesson.Slots {
		if other.TaskID != nil {
			used = append(used, *other.TaskID)
		}
	}

	task, err := s.tasks.TaskForWords(ctx, []*domain.Word{word}, taskTypeFor(slot), used)
	if err != nil {
		return nil, fmt.Errorf("preparing task: %w", err)
	}

	if err := s.lessonStore.SetSlotTask(ctx, lesson.ID, slot.SequenceNumber, task.ID); err != nil {
		return nil, fmt.Errorf("binding task to slot: %w", err)
	}
	slot.TaskID = &task.ID
	return task, nil
}

// loadWords resolves word IDs to full words for grading.
func (s *Service) loadWords(ctx context.Context, ids []uuid.UUID) ([]*domain.Word, error) {
	words := make([]*domain.Word, len(ids))
	for i, id := range ids {
		w, err := s.wordStore.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading word %s: %w", id, err)
		}
		words[i] = w
	}
	return words, nil
}

func (s *Service) viewFor(lesson *domain.Lesson, slot *domain.LessonSlot, task *domain.Task) *TaskView {
	return &TaskView{
		LessonID:       lesson.ID,
		SequenceNumber: slot.SequenceNumber,
		TotalSlots:     len(lesson.Slots),
		TaskID:         task.ID,
		TaskType:       task.Type(),
		Prompt:         task.Prompt,
		IsReview:       slot.IsReview,
	}
}
