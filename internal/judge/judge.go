// Package judge provides the interface for grading free-text answers with an
// external model. It is a boundary like the generation package: services
// depend on the Judge interface, not on a specific provider.
package judge

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors returned by judge implementations
var (
	// ErrJudgeUnavailable is returned when the judging service cannot serve
	// the request. Callers fall back to exact-match grading.
	ErrJudgeUnavailable = errors.New("answer judging unavailable")

	// ErrInvalidVerdict is returned when the judge's response cannot be
	// parsed into per-word scores.
	ErrInvalidVerdict = errors.New("invalid verdict from judge")
)

// Submission is one answer to grade against a task.
type Submission struct {
	// Prompt is the task text the learner saw.
	Prompt string
	// ExpectedAnswer is the reference answer stored with the task.
	ExpectedAnswer string
	// Response is the learner's free-text answer.
	Response string
	// Words maps each target word ID to its surface form so the judge can
	// score words individually.
	Words map[uuid.UUID]string
}

// Judge grades a free-text submission and returns an integer score in
// [domain.MinScore, domain.MaxScore] per target word.
type Judge interface {
	// Grade scores the submission. The returned map has an entry for every
	// word in Submission.Words. Returns ErrJudgeUnavailable when the
	// upstream service fails and ErrInvalidVerdict when its output cannot
	// be interpreted.
	Grade(ctx context.Context, sub Submission) (map[uuid.UUID]int, error)
}
