package taskgen

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
	"github.com/wortweg/wortweg-api/internal/store"
)

// fakeTaskStore serves a canned stored task and resource cache and records
// what gets persisted.
type fakeTaskStore struct {
	stored    *domain.Task
	resources map[string]*domain.Resource

	created      []*domain.Task
	findErr      error
	resourceHits int
}

var _ store.TaskStore = (*fakeTaskStore)(nil)

func (f *fakeTaskStore) CreateWithResources(ctx context.Context, task *domain.Task) error {
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

func (f *fakeTaskStore) FindTaskForWords(ctx context.Context, taskType domain.TaskType, wordIDs, excludeTaskIDs []uuid.UUID) (*domain.Task, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.stored == nil || f.stored.Type() != taskType {
		return nil, store.ErrTaskNotFound
	}
	for _, ex := range excludeTaskIDs {
		if ex == f.stored.ID {
			return nil, store.ErrTaskNotFound
		}
	}
	return f.stored, nil
}

func (f *fakeTaskStore) GetResourceByFingerprint(ctx context.Context, fingerprint string) (*domain.Resource, error) {
	if res, ok := f.resources[fingerprint]; ok {
		f.resourceHits++
		return res, nil
	}
	return nil, store.ErrResourceNotFound
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }

// fakeTemplateStore returns a fixed template list for FindByType.
type fakeTemplateStore struct {
	templates []*domain.TemplateDef
}

var _ store.TemplateStore = (*fakeTemplateStore)(nil)

func (f *fakeTemplateStore) Create(ctx context.Context, template *domain.TemplateDef) error {
	return nil
}

func (f *fakeTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TemplateDef, error) {
	for _, tmpl := range f.templates {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}
	return nil, store.ErrTemplateNotFound
}

func (f *fakeTemplateStore) FindByType(ctx context.Context, taskType domain.TaskType) ([]*domain.TemplateDef, error) {
	out := make([]*domain.TemplateDef, 0, len(f.templates))
	for _, tmpl := range f.templates {
		if tmpl.Type == taskType {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

// fakeSynth counts calls, fails for the template texts listed in failFor and
// answers from answerFor, defaulting to a fixed translation.
type fakeSynth struct {
	calls     int
	failFor   map[string]error
	answerFor map[string]string
}

var _ generation.Generator = (*fakeSynth)(nil)

func (f *fakeSynth) Synthesize(ctx context.Context, req generation.Request) (*generation.Result, error) {
	f.calls++
	if err, ok := f.failFor[req.TemplateText]; ok {
		return nil, err
	}
	values := make(map[string]string, len(req.Parameters))
	for _, p := range req.Parameters {
		values[p.Name] = "Der Apfel ist rot."
	}
	answer := "The apple is red."
	if a, ok := f.answerFor[req.TemplateText]; ok {
		answer = a
	}
	return &generation.Result{Values: values, Answer: answer}, nil
}

func translationTemplate(t *testing.T, name string) *domain.TemplateDef {
	t.Helper()
	tmpl, err := domain.NewTemplateDef(
		name,
		domain.TaskTypeOneWayTranslation,
		"Übersetze: $sentence",
		"Translate the sentence into English.",
		[]string{"Das Haus ist groß. -> The house is big."},
		[]domain.Parameter{{Name: "sentence", Description: "a sentence using the target words", Position: 1}},
		"de", "en",
	)
	require.NoError(t, err)
	return tmpl
}

func fourChoiceTemplate(t *testing.T, name, text string) *domain.TemplateDef {
	t.Helper()
	tmpl, err := domain.NewTemplateDef(
		name,
		domain.TaskTypeFourChoice,
		text,
		"Offer four translations, exactly one correct.",
		[]string{"Was bedeutet „Apfel“? A) apple B) pear C) plum D) grape -> A"},
		[]domain.Parameter{
			{Name: "A", Description: "option A", Position: 1},
			{Name: "B", Description: "option B", Position: 2},
			{Name: "C", Description: "option C", Position: 3},
			{Name: "D", Description: "option D", Position: 4},
		},
		"de", "en",
	)
	require.NoError(t, err)
	return tmpl
}

func testWords(t *testing.T, n int) []*domain.Word {
	t.Helper()
	words := make([]*domain.Word, n)
	for i := range words {
		var err error
		words[i], err = domain.NewWord("wort", "NOUN", i+1, "de")
		require.NoError(t, err)
	}
	return words
}

// testGenerator wires a Generator around fakes without a database. The
// transaction runner invokes the callback with a nil transaction, which the
// fake task store ignores.
func testGenerator(taskStore store.TaskStore, templateStore store.TemplateStore, synth generation.Generator, seed int64) *Generator {
	g := &Generator{
		taskStore:     taskStore,
		templateStore: templateStore,
		synth:         synth,
		rng:           rand.New(rand.NewSource(seed)),
		callTimeout:   time.Second,
		logger:        slog.Default(),
	}
	g.runInTx = func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, nil)
	}
	return g
}

func TestTaskForWordsReusesStoredTask(t *testing.T) {
	t.Parallel()

	tmpl := translationTemplate(t, "translate-de-en")
	words := testWords(t, 2)
	wordIDs := domain.WordIDSet(words)

	sentence, err := domain.NewResource(tmpl.ID, "sentence", "Der Apfel ist rot.", wordIDs)
	require.NoError(t, err)
	stored, err := domain.NewTask(tmpl, map[string]*domain.Resource{"sentence": sentence}, "The apple is red.")
	require.NoError(t, err)

	taskStore := &fakeTaskStore{stored: stored}
	synth := &fakeSynth{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	got, err := g.TaskForWords(context.Background(), words, domain.TaskTypeOneWayTranslation, nil)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Zero(t, synth.calls, "a stored task should short-circuit generation")
	assert.Empty(t, taskStore.created)
}

func TestTaskForWordsRespectsExclusions(t *testing.T) {
	t.Parallel()

	tmpl := translationTemplate(t, "translate-de-en")
	words := testWords(t, 1)
	wordIDs := domain.WordIDSet(words)

	sentence, err := domain.NewResource(tmpl.ID, "sentence", "Der Apfel ist rot.", wordIDs)
	require.NoError(t, err)
	stored, err := domain.NewTask(tmpl, map[string]*domain.Resource{"sentence": sentence}, "The apple is red.")
	require.NoError(t, err)

	taskStore := &fakeTaskStore{stored: stored}
	synth := &fakeSynth{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	// Excluding the only stored task forces a fresh generation.
	got, err := g.TaskForWords(context.Background(), words, domain.TaskTypeOneWayTranslation, []uuid.UUID{stored.ID})
	require.NoError(t, err)
	assert.NotEqual(t, stored.ID, got.ID)
	assert.Equal(t, 1, synth.calls)
	require.Len(t, taskStore.created, 1)
}

func TestTaskForWordsAssemblesFromCachedResources(t *testing.T) {
	t.Parallel()

	tmpl := translationTemplate(t, "translate-de-en")
	words := testWords(t, 2)
	wordIDs := domain.WordIDSet(words)

	sentence, err := domain.NewResource(tmpl.ID, "sentence", "Der Apfel ist rot.", wordIDs)
	require.NoError(t, err)
	answer, err := domain.NewResource(tmpl.ID, domain.AnswerParameter, "The apple is red.", wordIDs)
	require.NoError(t, err)

	taskStore := &fakeTaskStore{resources: map[string]*domain.Resource{
		sentence.Fingerprint: sentence,
		answer.Fingerprint:   answer,
	}}
	synth := &fakeSynth{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	got, err := g.TaskForWords(context.Background(), words, domain.TaskTypeOneWayTranslation, nil)
	require.NoError(t, err)

	assert.Zero(t, synth.calls, "a full resource cache hit should not call the generator")
	assert.Equal(t, "Übersetze: Der Apfel ist rot.", got.Prompt)
	assert.Equal(t, "The apple is red.", got.Answer)
	assert.ElementsMatch(t, wordIDs, got.TargetWordIDs)
	require.Len(t, taskStore.created, 1, "an assembled task is still persisted for reuse")
}

func TestTaskForWordsSynthesizesOnCacheMiss(t *testing.T) {
	t.Parallel()

	tmpl := translationTemplate(t, "translate-de-en")
	words := testWords(t, 1)

	taskStore := &fakeTaskStore{}
	synth := &fakeSynth{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	got, err := g.TaskForWords(context.Background(), words, domain.TaskTypeOneWayTranslation, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, synth.calls)
	assert.Equal(t, "Übersetze: Der Apfel ist rot.", got.Prompt)
	assert.Equal(t, "The apple is red.", got.Answer)
	require.Len(t, taskStore.created, 1)
	assert.Equal(t, got.ID, taskStore.created[0].ID)

	// The answer rides along as a cached resource for future assembly.
	assert.Contains(t, got.Resources, domain.AnswerParameter)
	assert.Equal(t, "The apple is red.", got.Resources[domain.AnswerParameter].Text)
}

func TestTaskForWordsRetriesAlternateTemplate(t *testing.T) {
	t.Parallel()

	good := translationTemplate(t, "translate-plain")
	bad, err := domain.NewTemplateDef(
		"translate-context",
		domain.TaskTypeOneWayTranslation,
		"Übersetze im Kontext: $sentence",
		"Translate the sentence into English, keeping register.",
		[]string{"Das Haus ist groß. -> The house is big."},
		[]domain.Parameter{{Name: "sentence", Description: "a sentence using the target words", Position: 1}},
		"de", "en",
	)
	require.NoError(t, err)

	synth := &fakeSynth{failFor: map[string]error{
		bad.Text: generation.ErrGenerationUnavailable,
	}}
	taskStore := &fakeTaskStore{}
	templates := &fakeTemplateStore{templates: []*domain.TemplateDef{good, bad}}

	// Probe seeds until the first pick lands on the failing template, so the
	// retry path is what produces the task.
	for seed := int64(0); seed < 64; seed++ {
		if rand.New(rand.NewSource(seed)).Intn(2) == 1 {
			g := testGenerator(taskStore, templates, synth, seed)
			got, err := g.TaskForWords(context.Background(), testWords(t, 1), domain.TaskTypeOneWayTranslation, nil)
			require.NoError(t, err)
			assert.Equal(t, good.ID, got.TemplateID)
			assert.Equal(t, 2, synth.calls, "one failed call plus one retry")
			return
		}
	}
	t.Fatal("no seed selected the failing template first")
}

func TestTaskForWordsReuseHonorsTaskType(t *testing.T) {
	t.Parallel()

	translation := translationTemplate(t, "translate-de-en")
	words := testWords(t, 1)
	wordIDs := domain.WordIDSet(words)

	sentence, err := domain.NewResource(translation.ID, "sentence", "Der Apfel ist rot.", wordIDs)
	require.NoError(t, err)
	stored, err := domain.NewTask(translation, map[string]*domain.Resource{"sentence": sentence}, "The apple is red.")
	require.NoError(t, err)

	fourChoice := fourChoiceTemplate(t, "choose-translation",
		"Welche Übersetzung passt? A) $A B) $B C) $C D) $D")
	taskStore := &fakeTaskStore{stored: stored}
	synth := &fakeSynth{answerFor: map[string]string{fourChoice.Text: "B"}}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{fourChoice}}, synth, 1)

	got, err := g.TaskForWords(context.Background(), words, domain.TaskTypeFourChoice, nil)
	require.NoError(t, err)
	assert.NotEqual(t, stored.ID, got.ID, "a stored task of another type must not be reused")
	assert.Equal(t, domain.TaskTypeFourChoice, got.Type())
	assert.Equal(t, 1, synth.calls)
}

func TestTaskForWordsRejectsNonOptionFourChoiceAnswer(t *testing.T) {
	t.Parallel()

	tmpl := fourChoiceTemplate(t, "choose-translation",
		"Welche Übersetzung passt? A) $A B) $B C) $C D) $D")
	synth := &fakeSynth{answerFor: map[string]string{tmpl.Text: "opt-A"}}
	taskStore := &fakeTaskStore{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	_, err := g.TaskForWords(context.Background(), testWords(t, 1), domain.TaskTypeFourChoice, nil)
	assert.ErrorIs(t, err, generation.ErrGenerationUnavailable)
	assert.Empty(t, taskStore.created, "a task nobody can answer must not be persisted")
}

func TestTaskForWordsRetriesAfterNonOptionAnswer(t *testing.T) {
	t.Parallel()

	good := fourChoiceTemplate(t, "choose-translation",
		"Welche Übersetzung passt? A) $A B) $B C) $C D) $D")
	bad := fourChoiceTemplate(t, "choose-meaning",
		"Was bedeutet das Wort? A) $A B) $B C) $C D) $D")

	synth := &fakeSynth{answerFor: map[string]string{
		good.Text: "A",
		bad.Text:  "the house",
	}}
	taskStore := &fakeTaskStore{}
	templates := &fakeTemplateStore{templates: []*domain.TemplateDef{good, bad}}

	// Probe seeds until the first pick lands on the template with the
	// ungradable answer, so the retry path is what produces the task.
	for seed := int64(0); seed < 64; seed++ {
		if rand.New(rand.NewSource(seed)).Intn(2) == 1 {
			g := testGenerator(taskStore, templates, synth, seed)
			got, err := g.TaskForWords(context.Background(), testWords(t, 1), domain.TaskTypeFourChoice, nil)
			require.NoError(t, err)
			assert.Equal(t, good.ID, got.TemplateID)
			assert.Equal(t, "A", got.Answer)
			assert.Equal(t, 2, synth.calls, "one rejected answer plus one retry")
			return
		}
	}
	t.Fatal("no seed selected the failing template first")
}

func TestTaskForWordsGenerationUnavailable(t *testing.T) {
	t.Parallel()

	tmpl := translationTemplate(t, "translate-de-en")
	synth := &fakeSynth{failFor: map[string]error{
		tmpl.Text: generation.ErrGenerationUnavailable,
	}}
	taskStore := &fakeTaskStore{}
	g := testGenerator(taskStore, &fakeTemplateStore{templates: []*domain.TemplateDef{tmpl}}, synth, 1)

	_, err := g.TaskForWords(context.Background(), testWords(t, 1), domain.TaskTypeOneWayTranslation, nil)
	assert.ErrorIs(t, err, generation.ErrGenerationUnavailable)
	assert.Equal(t, 1, synth.calls, "a single template leaves nothing to retry with")
	assert.Empty(t, taskStore.created)
}

func TestTaskForWordsNoTemplates(t *testing.T) {
	t.Parallel()

	g := testGenerator(&fakeTaskStore{}, &fakeTemplateStore{}, &fakeSynth{}, 1)

	_, err := g.TaskForWords(context.Background(), testWords(t, 1), domain.TaskTypeOneWayTranslation, nil)
	assert.ErrorIs(t, err, ErrNoTemplates)
}

func TestTaskForWordsNoWords(t *testing.T) {
	t.Parallel()

	g := testGenerator(&fakeTaskStore{}, &fakeTemplateStore{}, &fakeSynth{}, 1)

	_, err := g.TaskForWords(context.Background(), nil, domain.TaskTypeOneWayTranslation, nil)
	assert.ErrorIs(t, err, domain.ErrTaskNoTargetWords)
}
