// Package evaluation grades learner responses. Each task type has its own
// grader; the engine dispatches on the task's type and returns one score per
// target word.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/judge"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
)

// Evaluation errors
var (
	// ErrEvaluationUnavailable is returned when no grader exists for the
	// task's type.
	ErrEvaluationUnavailable = errors.New("no grader for task type")

	// ErrInvalidResponse is returned when a response is not an acceptable
	// input for the task, such as a choice outside the offered options.
	ErrInvalidResponse = errors.New("invalid response for task")
)

// DefaultFourChoicePenalty is the score recorded for every target word of a
// four-choice task answered incorrectly when no penalty is configured. A
// wrong pick is weak evidence, not proof of total ignorance, so it sits
// above MinScore.
const DefaultFourChoicePenalty = 2

// Grader scores one response against one task. Implementations return a
// score in [domain.MinScore, domain.MaxScore] for every word in words.
type Grader interface {
	Grade(ctx context.Context, task *domain.Task, words []*domain.Word, response string) (map[uuid.UUID]int, error)
}

// Engine grades responses by dispatching to the grader registered for the
// task's type.
type Engine struct {
	graders map[domain.TaskType]Grader
	logger  *slog.Logger
}

// NewEngine creates an evaluation engine with the standard graders: exact
// option matching for four-choice tasks and judge-backed grading with an
// exact-match fallback for translations. fourChoicePenalty is the score for
// a wrong pick; values outside the valid score range fall back to
// DefaultFourChoicePenalty. If log is nil, a default logger will be used.
func NewEngine(j judge.Judge, fourChoicePenalty int, log *slog.Logger) *Engine {
	if j == nil {
		panic("judge cannot be nil")
	}
	if !domain.ValidScore(fourChoicePenalty) {
		fourChoicePenalty = DefaultFourChoicePenalty
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "evaluation"))

	return &Engine{
		graders: map[domain.TaskType]Grader{
			domain.TaskTypeFourChoice:        &FourChoiceGrader{PenaltyScore: fourChoicePenalty},
			domain.TaskTypeOneWayTranslation: &TranslationGrader{Judge: j, logger: log},
		},
		logger: log,
	}
}

// Evaluate grades a response against a task and returns one EntryScore per
// target word, in the order of the given words. The words must be the task's
// target words with surfaces loaded.
func (e *Engine) Evaluate(ctx context.Context, task *domain.Task, words []*domain.Word, response string) ([]domain.EntryScore, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	grader, ok := e.graders[task.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEvaluationUnavailable, task.Type())
	}

	scores, err := grader.Grade(ctx, task, words, response)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.EntryScore, 0, len(words))
	for _, w := range words {
		score, ok := scores[w.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no score for word %s", ErrEvaluationUnavailable, w.ID)
		}
		entries = append(entries, domain.EntryScore{WordID: w.ID, Score: domain.ClampScore(score)})
	}

	log.Debug("response graded",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type())),
		slog.Int("word_count", len(entries)))
	return entries, nil
}

// FourChoiceGrader grades multiple-choice answers by exact option match. A
// correct pick earns MaxScore for every target word, a wrong pick earns
// PenaltyScore.
type FourChoiceGrader struct {
	PenaltyScore int
}

var _ Grader = (*FourChoiceGrader)(nil)

// Grade checks the picked option against the task's answer. The response
// must be one of the offered option names; anything else is rejected with
// ErrInvalidResponse rather than graded as wrong.
func (g *FourChoiceGrader) Grade(ctx context.Context, task *domain.Task, words []*domain.Word, response string) (map[uuid.UUID]int, error) {
	pick := strings.ToUpper(strings.TrimSpace(response))

	valid := false
	for _, opt := range domain.FourChoiceOptions {
		if pick == opt {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidResponse, response, domain.FourChoiceOptions)
	}

	score := g.PenaltyScore
	if pick == strings.ToUpper(strings.TrimSpace(task.Answer)) {
		score = domain.MaxScore
	}

	scores := make(map[uuid.UUID]int, len(words))
	for _, w := range words {
		scores[w.ID] = score
	}
	return scores, nil
}

// TranslationGrader grades free-text translations with an external judge.
// When the judge cannot be reached it falls back to normalized exact
// matching against the reference answer, all or nothing.
type TranslationGrader struct {
	Judge  judge.Judge
	logger *slog.Logger
}

var _ Grader = (*TranslationGrader)(nil)

// Grade submits the response to the judge for per-word scores. Judge outages
// and unparseable verdicts degrade to exact matching so a lesson never
// stalls on the grading backend.
func (g *TranslationGrader) Grade(ctx context.Context, task *domain.Task, words []*domain.Word, response string) (map[uuid.UUID]int, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	surfaces := make(map[uuid.UUID]string, len(words))
	for _, w := range words {
		surfaces[w.ID] = w.Surface
	}

	verdict, err := g.Judge.Grade(ctx, judge.Submission{
		Prompt:         task.Prompt,
		ExpectedAnswer: task.Answer,
		Response:       response,
		Words:          surfaces,
	})
	if err != nil {
		if !errors.Is(err, judge.ErrJudgeUnavailable) && !errors.Is(err, judge.ErrInvalidVerdict) {
			return nil, fmt.Errorf("grading translation: %w", err)
		}

		log.Warn("judge unavailable, falling back to exact match",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))

		score := domain.MinScore
		if normalize(response) == normalize(task.Answer) {
			score = domain.MaxScore
		}
		verdict = make(map[uuid.UUID]int, len(words))
		for _, w := range words {
			verdict[w.ID] = score
		}
	}

	return verdict, nil
}

// normalize lowercases, collapses whitespace and strips terminal punctuation
// so trivially equivalent answers compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".!?")
}
