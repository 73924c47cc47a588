package gemini

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wortweg/wortweg-api/internal/config"
	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	tmpl, err := template.New("synthesis").Parse(promptTemplateText)
	require.NoError(t, err)
	return &Generator{
		logger:         slog.New(slog.NewTextHandler(os.Stderr, nil)),
		promptTemplate: tmpl,
		model:          "test-model",
	}
}

func translationRequest() generation.Request {
	return generation.Request{
		TemplateText:        "Translate into English: $sentence",
		TemplateDescription: "Ask the learner to translate one sentence.",
		TaskType:            domain.TaskTypeOneWayTranslation,
		Parameters: []domain.Parameter{
			{Name: "sentence", Description: "a sentence using the target words", Position: 1},
		},
		TargetWords: []generation.TargetWord{
			{Surface: "Haus", PartOfSpeech: "NOUN"},
			{Surface: "Apfel", PartOfSpeech: "NOUN"},
		},
		Examples:       []string{"Translate into English: Das Haus ist groß."},
		SourceLanguage: "de",
		TargetLanguage: "en",
	}
}

func TestNewGeneratorConfigValidation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := NewGenerator(context.Background(), nil, config.LLMConfig{GeminiAPIKey: "k", GeminiModel: "m"})
	assert.Error(t, err, "nil logger should be rejected")

	_, err = NewGenerator(context.Background(), logger, config.LLMConfig{GeminiModel: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig, "missing API key should be rejected")

	_, err = NewGenerator(context.Background(), logger, config.LLMConfig{GeminiAPIKey: "k"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig, "missing model name should be rejected")
}

func TestCreatePrompt(t *testing.T) {
	t.Parallel()

	g := testGenerator(t)
	prompt, err := g.createPrompt(context.Background(), translationRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "Translate into English: $sentence")
	assert.Contains(t, prompt, "Haus (NOUN)")
	assert.Contains(t, prompt, "Apfel (NOUN)")
	assert.Contains(t, prompt, `"answer"`)

	// Incomplete requests are rejected before any API call
	_, err = g.createPrompt(context.Background(), generation.Request{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	g := testGenerator(t)
	req := translationRequest()

	result, err := g.parseResult(req, map[string]string{
		"sentence": "Das Haus und der Apfel.",
		"answer":   "The house and the apple.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Das Haus und der Apfel.", result.Values["sentence"])
	assert.Equal(t, "The house and the apple.", result.Answer)

	// Missing answer
	_, err = g.parseResult(req, map[string]string{"sentence": "Das Haus."})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	// Missing parameter value
	_, err = g.parseResult(req, map[string]string{"answer": "The house."})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}
