package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"github.com/wortweg/wortweg-api/internal/config"
	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
	"google.golang.org/genai"
)

// Retry tuning for transient API failures.
const (
	maxRetries       = 3
	baseDelaySeconds = 2
)

// promptTemplateText instructs the model to fill every template parameter
// and produce the expected answer, returning a single JSON object keyed by
// parameter name plus "answer".
const promptTemplateText = `You are a language-learning content writer creating one exercise.

Exercise template ({{.TaskType}}, {{.SourceLanguage}} -> {{.TargetLanguage}}):
{{.TemplateText}}

What the template is for: {{.TemplateDescription}}

Fill each placeholder:
{{- range .Parameters}}
- {{.Name}}: {{.Description}}
{{- end}}

The content must use ALL of these vocabulary words:
{{- range .TargetWords}}
- {{.Surface}} ({{.PartOfSpeech}})
{{- end}}
{{- if .Examples}}

Completed examples of this template:
{{- range .Examples}}
{{.}}
{{- end}}
{{- end}}

Respond with a single JSON object and nothing else. It must have one string
value per placeholder name, plus an "answer" key holding the exact expected
answer to the completed exercise.`

// Generator implements the generation.Generator interface using Google's
// Gemini API.
type Generator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// Compile-time check that Generator satisfies the interface.
var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a new Gemini-backed Generator with the provided
// dependencies. Returns generation.ErrInvalidConfig when the configuration
// is unusable.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.GeminiModel == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("synthesis").Parse(promptTemplateText)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger:         logger.With(slog.String("component", "gemini_generator")),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.GeminiModel,
	}, nil
}

// Synthesize produces text for every parameter of the requested template
// plus the expected answer. Transient API failures are retried with
// exponential backoff; malformed or blocked responses fail immediately.
func (g *Generator) Synthesize(ctx context.Context, req generation.Request) (*generation.Result, error) {
	prompt, err := g.createPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	values, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		if errors.Is(err, generation.ErrTransientFailure) {
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationUnavailable, err)
		}
		return nil, err
	}

	return g.parseResult(req, values)
}

// createPrompt renders the synthesis prompt for the given request.
func (g *Generator) createPrompt(ctx context.Context, req generation.Request) (string, error) {
	if req.TemplateText == "" || len(req.TargetWords) == 0 {
		return "", ErrEmptyRequest
	}

	g.logger.DebugContext(ctx, "generating prompt from template",
		slog.String("task_type", string(req.TaskType)),
		slog.Int("parameter_count", len(req.Parameters)),
		slog.Int("target_word_count", len(req.TargetWords)))

	var promptBuffer bytes.Buffer
	if err := g.promptTemplate.Execute(&promptBuffer, req); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return promptBuffer.String(), nil
}

// callWithRetry makes the Gemini API call with exponential backoff and
// jitter for transient errors. Permanent errors (blocked content, malformed
// output) are returned immediately without retrying.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (map[string]string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making Gemini API call",
			slog.Int("attempt", attemptNum),
			slog.Int("max_attempts", maxRetries+1))

		values, transient, err := g.callOnce(ctx, prompt, genConfig)
		if err == nil {
			g.logger.InfoContext(ctx, "Gemini API call successful",
				slog.Int("attempt", attemptNum))
			return values, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			slog.Int("attempt", attemptNum),
			slog.String("error", err.Error()))

		if !transient {
			return nil, err
		}

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d)",
				generation.ErrTransientFailure, maxRetries)
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying after delay",
			slog.Int("attempt", attemptNum),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.logger.WarnContext(ctx, "API call cancelled during retry delay",
				slog.Int("attempt", attemptNum))
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single API call. The boolean reports whether the
// returned error is worth retrying.
func (g *Generator) callOnce(
	ctx context.Context,
	prompt string,
	genConfig *genai.GenerateContentConfig,
) (map[string]string, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, true, fmt.Errorf("gemini API call: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, false, fmt.Errorf("%w: blocked by safety filters", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, false, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, false, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}

	return values, false, nil
}

// parseResult validates the model output against the request: every declared
// parameter and the answer must be present and non-empty.
func (g *Generator) parseResult(req generation.Request, values map[string]string) (*generation.Result, error) {
	answer, ok := values[domain.AnswerParameter]
	if !ok || answer == "" {
		return nil, fmt.Errorf("%w: missing expected answer", generation.ErrInvalidResponse)
	}

	paramValues := make(map[string]string, len(req.Parameters))
	for _, p := range req.Parameters {
		v, ok := values[p.Name]
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: missing value for parameter %q",
				generation.ErrInvalidResponse, p.Name)
		}
		paramValues[p.Name] = v
	}

	return &generation.Result{
		Values: paramValues,
		Answer: answer,
	}, nil
}
