package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/judge"
)

// fakeJudge returns a canned verdict or error and records the submission.
type fakeJudge struct {
	verdict map[uuid.UUID]int
	err     error

	got *judge.Submission
}

var _ judge.Judge = (*fakeJudge)(nil)

func (f *fakeJudge) Grade(ctx context.Context, sub judge.Submission) (map[uuid.UUID]int, error) {
	f.got = &sub
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func testWords(t *testing.T, surfaces ...string) []*domain.Word {
	t.Helper()
	words := make([]*domain.Word, len(surfaces))
	for i, s := range surfaces {
		var err error
		words[i], err = domain.NewWord(s, "NOUN", i+1, "de")
		require.NoError(t, err)
	}
	return words
}

func translationTask(t *testing.T, words []*domain.Word) *domain.Task {
	t.Helper()
	tmpl, err := domain.NewTemplateDef(
		"translate-de-en",
		domain.TaskTypeOneWayTranslation,
		"Übersetze: $sentence",
		"Translate the sentence into English.",
		[]string{"Das Haus ist groß. -> The house is big."},
		[]domain.Parameter{{Name: "sentence", Description: "a sentence using the target words", Position: 1}},
		"de", "en",
	)
	require.NoError(t, err)

	sentence, err := domain.NewResource(tmpl.ID, "sentence", "Der Apfel ist rot.", domain.WordIDSet(words))
	require.NoError(t, err)
	task, err := domain.NewTask(tmpl, map[string]*domain.Resource{"sentence": sentence}, "The apple is red.")
	require.NoError(t, err)
	return task
}

func fourChoiceTask(t *testing.T, words []*domain.Word, answer string) *domain.Task {
	t.Helper()
	tmpl, err := domain.NewTemplateDef(
		"choose-translation",
		domain.TaskTypeFourChoice,
		"Was bedeutet „Haus“? A) $A B) $B C) $C D) $D",
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

	wordIDs := domain.WordIDSet(words)
	resources := make(map[string]*domain.Resource, 4)
	for i, name := range domain.FourChoiceOptions {
		res, err := domain.NewResource(tmpl.ID, name, []string{"house", "mouse", "horse", "hound"}[i], wordIDs)
		require.NoError(t, err)
		resources[name] = res
	}
	task, err := domain.NewTask(tmpl, resources, answer)
	require.NoError(t, err)
	return task
}

func TestEvaluateFourChoiceCorrect(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Haus")
	task := fourChoiceTask(t, words, "A")
	engine := NewEngine(&fakeJudge{}, DefaultFourChoicePenalty, nil)

	scores, err := engine.Evaluate(context.Background(), task, words, "a")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, words[0].ID, scores[0].WordID)
	assert.Equal(t, domain.MaxScore, scores[0].Score, "case and whitespace must not matter")
}

func TestEvaluateFourChoiceWrong(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Haus", "Apfel")
	task := fourChoiceTask(t, words, "A")
	engine := NewEngine(&fakeJudge{}, DefaultFourChoicePenalty, nil)

	scores, err := engine.Evaluate(context.Background(), task, words, "C")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for _, s := range scores {
		assert.Equal(t, DefaultFourChoicePenalty, s.Score)
	}
}

func TestEvaluateFourChoiceInvalidOption(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Haus")
	task := fourChoiceTask(t, words, "A")
	engine := NewEngine(&fakeJudge{}, DefaultFourChoicePenalty, nil)

	_, err := engine.Evaluate(context.Background(), task, words, "E")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = engine.Evaluate(context.Background(), task, words, "the house")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEvaluateTranslationUsesJudge(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel", "rot")
	task := translationTask(t, words)
	j := &fakeJudge{verdict: map[uuid.UUID]int{
		words[0].ID: 9,
		words[1].ID: 14, // out of range, must be clamped
	}}
	engine := NewEngine(j, DefaultFourChoicePenalty, nil)

	scores, err := engine.Evaluate(context.Background(), task, words, "The apple is red.")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 9, scores[0].Score)
	assert.Equal(t, domain.MaxScore, scores[1].Score)

	require.NotNil(t, j.got)
	assert.Equal(t, task.Prompt, j.got.Prompt)
	assert.Equal(t, task.Answer, j.got.ExpectedAnswer)
	assert.Equal(t, "Apfel", j.got.Words[words[0].ID])
}

func TestEvaluateTranslationJudgeDownExactMatch(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel")
	task := translationTask(t, words)
	engine := NewEngine(&fakeJudge{err: judge.ErrJudgeUnavailable}, DefaultFourChoicePenalty, nil)

	scores, err := engine.Evaluate(context.Background(), task, words, "  the APPLE is red  ")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, domain.MaxScore, scores[0].Score, "normalized match should earn full score")
}

func TestEvaluateTranslationJudgeDownMismatch(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel")
	task := translationTask(t, words)
	engine := NewEngine(&fakeJudge{err: judge.ErrInvalidVerdict}, DefaultFourChoicePenalty, nil)

	scores, err := engine.Evaluate(context.Background(), task, words, "The pear is green.")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, domain.MinScore, scores[0].Score)
}

func TestEvaluateTranslationJudgeHardError(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel")
	task := translationTask(t, words)
	engine := NewEngine(&fakeJudge{err: errors.New("context canceled")}, DefaultFourChoicePenalty, nil)

	_, err := engine.Evaluate(context.Background(), task, words, "The apple is red.")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEvaluationUnavailable)
}

func TestEvaluateUnknownTaskType(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel")
	task := translationTask(t, words)
	task.Template.Type = "CLOZE" // not registered

	engine := NewEngine(&fakeJudge{}, DefaultFourChoicePenalty, nil)
	_, err := engine.Evaluate(context.Background(), task, words, "x")
	assert.ErrorIs(t, err, ErrEvaluationUnavailable)
}

func TestEvaluateMissingWordInVerdict(t *testing.T) {
	t.Parallel()

	words := testWords(t, "Apfel", "rot")
	task := translationTask(t, words)
	j := &fakeJudge{verdict: map[uuid.UUID]int{words[0].ID: 8}}
	engine := NewEngine(j, DefaultFourChoicePenalty, nil)

	_, err := engine.Evaluate(context.Background(), task, words, "The apple is red.")
	assert.ErrorIs(t, err, ErrEvaluationUnavailable)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "the apple is red", normalize("  The  APPLE is red. "))
	assert.Equal(t, "the apple is red", normalize("the apple is red!?"))
	assert.Equal(t, "", normalize("   "))
}
