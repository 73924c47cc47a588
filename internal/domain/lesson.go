package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LessonStatus describes where a lesson is in its lifecycle.
type LessonStatus string

// Lesson lifecycle states. A lesson moves forward only: created lessons
// become in_progress on the first served task and finished lessons never
// reopen.
const (
	LessonStatusCreated    LessonStatus = "created"
	LessonStatusInProgress LessonStatus = "in_progress"
	LessonStatusFinished   LessonStatus = "finished"
)

// Lesson-specific validation errors
var (
	// ErrLessonIDEmpty is returned when a lesson ID is empty or nil.
	ErrLessonIDEmpty = errors.New("lesson ID cannot be empty")

	// ErrLessonUserIDEmpty is returned when a lesson's user ID is empty.
	ErrLessonUserIDEmpty = errors.New("lesson user ID cannot be empty")

	// ErrLessonStatusInvalid is returned when a lesson status is not a known state.
	ErrLessonStatusInvalid = errors.New("invalid lesson status")

	// ErrLessonPlanInvalid is returned when lesson slots are not numbered
	// as a gapless 1..N sequence.
	ErrLessonPlanInvalid = errors.New("lesson slots must form a gapless sequence from 1")

	// ErrLessonFinished is returned when an operation requires a lesson that
	// is still open but the lesson is already finished.
	ErrLessonFinished = errors.New("lesson is already finished")

	// ErrSlotWordEmpty is returned when a lesson slot has no word.
	ErrSlotWordEmpty = errors.New("lesson slot word ID cannot be empty")

	// ErrEvaluationTaskEmpty is returned when an evaluation references no task.
	ErrEvaluationTaskEmpty = errors.New("evaluation task ID cannot be empty")

	// ErrEvaluationNoScores is returned when an evaluation carries no word scores.
	ErrEvaluationNoScores = errors.New("evaluation must score at least one word")
)

// Validate checks that the lesson status is a known state.
func (s LessonStatus) Validate() error {
	switch s {
	case LessonStatusCreated, LessonStatusInProgress, LessonStatusFinished:
		return nil
	default:
		return ErrLessonStatusInvalid
	}
}

// LessonSlot is one planned position of a lesson: which word is practiced at
// which sequence number, whether it is a review, and the task bound to the
// slot once one has been generated or reused. TaskID is nil until then.
type LessonSlot struct {
	LessonID       uuid.UUID  `json:"lesson_id"`
	SequenceNumber int        `json:"sequence_number"`
	WordID         uuid.UUID  `json:"word_id"`
	IsReview       bool       `json:"is_review"`
	TaskID         *uuid.UUID `json:"task_id,omitempty"`
}

// Validate checks if the LessonSlot has valid data.
func (s *LessonSlot) Validate() error {
	if s.LessonID == uuid.Nil {
		return ErrLessonIDEmpty
	}

	if s.SequenceNumber < 1 {
		return fmt.Errorf("%w: slot %d", ErrLessonPlanInvalid, s.SequenceNumber)
	}

	if s.WordID == uuid.Nil {
		return ErrSlotWordEmpty
	}

	return nil
}

// Lesson is one study session for a user: an ordered plan of word slots and
// a cursor over them. CurrentSequence is the slot the learner faces next;
// slots before it have been answered.
type Lesson struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Status          LessonStatus  `json:"status"`
	CurrentSequence int           `json:"current_sequence"`
	Slots           []*LessonSlot `json:"slots,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewLesson creates a lesson for the given user with the given planned
// slots. Slot lesson IDs are stamped with the new lesson's ID. A lesson with
// no slots is created already finished; otherwise the cursor starts at the
// first slot. Returns an error if validation fails.
func NewLesson(userID uuid.UUID, slots []*LessonSlot) (*Lesson, error) {
	now := time.Now().UTC()
	lesson := &Lesson{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    LessonStatusCreated,
		Slots:     slots,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(slots) == 0 {
		lesson.Status = LessonStatusFinished
		lesson.CurrentSequence = 0
	} else {
		lesson.CurrentSequence = 1
		for _, slot := range slots {
			slot.LessonID = lesson.ID
		}
	}

	if err := lesson.Validate(); err != nil {
		return nil, err
	}

	return lesson, nil
}

// Validate checks if the Lesson has valid data, including the invariant
// that slots are numbered 1..N without gaps or duplicates.
func (l *Lesson) Validate() error {
	if l.ID == uuid.Nil {
		return ErrLessonIDEmpty
	}

	if l.UserID == uuid.Nil {
		return ErrLessonUserIDEmpty
	}

	if err := l.Status.Validate(); err != nil {
		return err
	}

	seen := make(map[int]struct{}, len(l.Slots))
	for _, slot := range l.Slots {
		if err := slot.Validate(); err != nil {
			return err
		}
		if slot.SequenceNumber > len(l.Slots) {
			return fmt.Errorf("%w: slot %d of %d", ErrLessonPlanInvalid, slot.SequenceNumber, len(l.Slots))
		}
		if _, ok := seen[slot.SequenceNumber]; ok {
			return fmt.Errorf("%w: duplicate slot %d", ErrLessonPlanInvalid, slot.SequenceNumber)
		}
		seen[slot.SequenceNumber] = struct{}{}
	}

	return nil
}

// CurrentSlot returns the slot at the lesson's cursor, or nil when the
// lesson is finished or the cursor is past the last slot.
func (l *Lesson) CurrentSlot() *LessonSlot {
	if l.Status == LessonStatusFinished {
		return nil
	}
	for _, slot := range l.Slots {
		if slot.SequenceNumber == l.CurrentSequence {
			return slot
		}
	}
	return nil
}

// Advance moves the cursor past the current slot. When the cursor walks off
// the end of the plan the lesson finishes. Returns ErrLessonFinished if the
// lesson is already finished.
func (l *Lesson) Advance() error {
	if l.Status == LessonStatusFinished {
		return ErrLessonFinished
	}

	l.CurrentSequence++
	l.UpdatedAt = time.Now().UTC()
	if l.CurrentSequence > len(l.Slots) {
		l.Status = LessonStatusFinished
	} else {
		l.Status = LessonStatusInProgress
	}
	return nil
}

// Finish closes the lesson regardless of remaining slots. Returns
// ErrLessonFinished if it is already closed.
func (l *Lesson) Finish() error {
	if l.Status == LessonStatusFinished {
		return ErrLessonFinished
	}

	l.Status = LessonStatusFinished
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// EntryScore is one word's grade from a single attempt.
type EntryScore struct {
	WordID uuid.UUID `json:"word_id"`
	Score  int       `json:"score"`
}

// Evaluation records a graded attempt: which task was answered at which
// lesson position, the raw response, and a score per target word. Evaluations
// are append-only history; mastery is derived from them.
type Evaluation struct {
	ID             uuid.UUID    `json:"id"`
	LessonID       uuid.UUID    `json:"lesson_id"`
	SequenceNumber int          `json:"sequence_number"`
	TaskID         uuid.UUID    `json:"task_id"`
	Response       string       `json:"response"`
	Scores         []EntryScore `json:"scores"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewEvaluation creates an evaluation for a graded attempt.
// Returns an error if validation fails.
func NewEvaluation(lessonID uuid.UUID, sequenceNumber int, taskID uuid.UUID, response string, scores []EntryScore) (*Evaluation, error) {
	eval := &Evaluation{
		ID:             uuid.New(),
		LessonID:       lessonID,
		SequenceNumber: sequenceNumber,
		TaskID:         taskID,
		Response:       response,
		Scores:         scores,
		CreatedAt:      time.Now().UTC(),
	}

	if err := eval.Validate(); err != nil {
		return nil, err
	}

	return eval, nil
}

// Validate checks if the Evaluation has valid data.
// Returns an error if any field fails validation.
func (e *Evaluation) Validate() error {
	if e.ID == uuid.Nil {
		return ErrInvalidID
	}

	if e.LessonID == uuid.Nil {
		return ErrLessonIDEmpty
	}

	if e.SequenceNumber < 1 {
		return fmt.Errorf("%w: sequence %d", ErrLessonPlanInvalid, e.SequenceNumber)
	}

	if e.TaskID == uuid.Nil {
		return ErrEvaluationTaskEmpty
	}

	if len(e.Scores) == 0 {
		return ErrEvaluationNoScores
	}

	for _, s := range e.Scores {
		if s.WordID == uuid.Nil {
			return ErrMasteryWordIDEmpty
		}
		if !ValidScore(s.Score) {
			return ErrInvalidScore
		}
	}

	return nil
}
