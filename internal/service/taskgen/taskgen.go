// Package taskgen materializes tasks for lesson slots. It reuses stored
// tasks and cached resources where possible and calls the content generator
// only for what is missing, so repeated requests for the same words are
// cheap and deterministic.
package taskgen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// ErrNoTemplates is returned when no template of the requested task type
// exists.
var ErrNoTemplates = errors.New("no templates available for task type")

// Generator produces one task per call. It is the seam between lesson flow
// and content synthesis.
type Generator struct {
	db            *sql.DB
	runInTx       func(ctx context.Context, fn store.TxFn) error
	taskStore     store.TaskStore
	templateStore store.TemplateStore
	synth         generation.Generator
	rng           *rand.Rand
	callTimeout   time.Duration
	logger        *slog.Logger
}

// New creates a task Generator. The rng drives template selection and may be
// seeded for deterministic tests; when nil a time-seeded source is used.
// If log is nil, a default logger will be used.
func New(
	db *sql.DB,
	taskStore store.TaskStore,
	templateStore store.TemplateStore,
	synth generation.Generator,
	rng *rand.Rand,
	callTimeout time.Duration,
	log *slog.Logger,
) *Generator {
	if db == nil {
		panic("db cannot be nil")
	}
	if taskStore == nil || templateStore == nil || synth == nil {
		panic("stores and generator cannot be nil")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	g := &Generator{
		db:            db,
		taskStore:     taskStore,
		templateStore: templateStore,
		synth:         synth,
		rng:           rng,
		callTimeout:   callTimeout,
		logger:        log.With(slog.String("component", "taskgen")),
	}
	g.runInTx = func(ctx context.Context, fn store.TxFn) error {
		return store.RunInTransaction(ctx, g.db, fn)
	}
	return g
}

// TaskForWords returns a task exercising exactly the given words.
//
// Resolution order: an already stored task of the requested type for the
// word set (excluding the given task IDs, typically those already used in
// the current lesson), then assembly from fully cached resources, then one
// synthesis call. When synthesis fails with an unavailable generator or
// yields an answer the task type cannot grade, a different template of the
// same type is tried once before giving up.
func (g *Generator) TaskForWords(
	ctx context.Context,
	words []*domain.Word,
	taskType domain.TaskType,
	excludeTaskIDs []uuid.UUID,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if len(words) == 0 {
		return nil, domain.ErrTaskNoTargetWords
	}
	wordIDs := domain.WordIDSet(words)

	existing, err := g.taskStore.FindTaskForWords(ctx, taskType, wordIDs, excludeTaskIDs)
	if err == nil {
		log.Debug("reusing stored task",
			slog.String("task_id", existing.ID.String()),
			slog.Int("word_count", len(wordIDs)))
		return existing, nil
	}
	if !errors.Is(err, store.ErrTaskNotFound) {
		return nil, fmt.Errorf("looking up stored task: %w", err)
	}

	templates, err := g.templateStore.FindByType(ctx, taskType)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplates, taskType)
	}

	// Try a randomly chosen template; on an unavailable generator retry
	// once with a different template of the same type.
	first := g.rng.Intn(len(templates))
	task, err := g.buildTask(ctx, templates[first], words, wordIDs)
	if err != nil && errors.Is(err, generation.ErrGenerationUnavailable) && len(templates) > 1 {
		second := (first + 1 + g.rng.Intn(len(templates)-1)) % len(templates)
		log.Warn("generation failed, retrying with alternate template",
			slog.String("failed_template", templates[first].Name),
			slog.String("retry_template", templates[second].Name))
		task, err = g.buildTask(ctx, templates[second], words, wordIDs)
	}
	if err != nil {
		return nil, err
	}

	if err := g.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return g.taskStore.WithTx(tx).CreateWithResources(ctx, task)
	}); err != nil {
		return nil, fmt.Errorf("persisting task: %w", err)
	}

	log.Info("task generated",
		slog.String("task_id", task.ID.String()),
		slog.String("template_id", task.TemplateID.String()),
		slog.Int("word_count", len(wordIDs)))
	return task, nil
}

// buildTask assembles a task for one template, preferring cached resources
// and synthesizing only when the cache cannot cover every parameter and the
// answer.
func (g *Generator) buildTask(
	ctx context.Context,
	template *domain.TemplateDef,
	words []*domain.Word,
	wordIDs []uuid.UUID,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	cached := make(map[string]*domain.Resource)
	missing := false
	for _, name := range append(template.ParameterNames(), domain.AnswerParameter) {
		fingerprint := domain.ResourceFingerprint(template.ID, name, wordIDs)
		resource, err := g.taskStore.GetResourceByFingerprint(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, store.ErrResourceNotFound) {
				missing = true
				continue
			}
			return nil, fmt.Errorf("resource cache lookup: %w", err)
		}
		cached[name] = resource
	}

	var result *generation.Result
	if missing {
		var err error
		result, err = g.synthesize(ctx, template, words)
		if err != nil {
			return nil, err
		}
	} else {
		log.Debug("assembling task from cached resources",
			slog.String("template_id", template.ID.String()))
	}

	resources := make(map[string]*domain.Resource, len(template.Parameters)+1)
	for _, name := range template.ParameterNames() {
		if resource, ok := cached[name]; ok {
			resources[name] = resource
			continue
		}
		resource, err := domain.NewResource(template.ID, name, result.Values[name], wordIDs)
		if err != nil {
			return nil, fmt.Errorf("building resource for %q: %w", name, err)
		}
		resources[name] = resource
	}

	var answer string
	answerResource, answerCached := cached[domain.AnswerParameter]
	if answerCached {
		answer = answerResource.Text
	} else {
		answer = result.Answer
	}

	// A four-choice task is graded by option letter. An answer that is not
	// one of the letters can never be matched by a valid pick, so it must
	// not be persisted; the caller treats it like any other generation
	// failure and retries with an alternate template.
	if template.Type == domain.TaskTypeFourChoice && !isOptionLetter(answer) {
		return nil, fmt.Errorf("%w: four-choice answer %q is not one of %v",
			generation.ErrGenerationUnavailable, answer, domain.FourChoiceOptions)
	}

	if !answerCached {
		resource, err := domain.NewResource(template.ID, domain.AnswerParameter, answer, wordIDs)
		if err != nil {
			return nil, fmt.Errorf("building answer resource: %w", err)
		}
		answerResource = resource
	}
	resources[domain.AnswerParameter] = answerResource

	return domain.NewTask(template, resources, answer)
}

// isOptionLetter reports whether the answer names one of the four-choice
// option letters, ignoring case and surrounding whitespace.
func isOptionLetter(answer string) bool {
	pick := strings.ToUpper(strings.TrimSpace(answer))
	for _, opt := range domain.FourChoiceOptions {
		if pick == opt {
			return true
		}
	}
	return false
}

// synthesize makes one bounded generator call for the template and words.
func (g *Generator) synthesize(
	ctx context.Context,
	template *domain.TemplateDef,
	words []*domain.Word,
) (*generation.Result, error) {
	targets := make([]generation.TargetWord, len(words))
	for i, w := range words {
		targets[i] = generation.TargetWord{Surface: w.Surface, PartOfSpeech: w.PartOfSpeech}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	result, err := g.synth.Synthesize(callCtx, generation.Request{
		TemplateText:        template.Text,
		TemplateDescription: template.Description,
		TaskType:            template.Type,
		Parameters:          template.Parameters,
		TargetWords:         targets,
		Examples:            template.Examples,
		SourceLanguage:      template.SourceLanguage,
		TargetLanguage:      template.TargetLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing content: %w", err)
	}
	return result, nil
}
