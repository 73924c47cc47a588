// Package openai implements the judge.Judge interface against the OpenAI
// chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"resty.dev/v3"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/judge"
)

// Client grades free-text answers with an OpenAI chat model.
type Client struct {
	httpClient       *resty.Client
	model            string
	maxRetryAttempts uint
	logger           *slog.Logger
}

// Compile-time check that Client satisfies the interface.
var _ judge.Judge = (*Client)(nil)

// NewClient creates an OpenAI-backed judge.
func NewClient(apiKey, model string, retryAttempts uint, logger *slog.Logger) *Client {
	client := resty.New()
	client.SetBaseURL("https://api.openai.com/v1")
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:       client,
		model:            model,
		maxRetryAttempts: retryAttempts,
		logger:           logger.With(slog.String("component", "openai_judge")),
	}
}

// Close releases the underlying HTTP client.
func (client *Client) Close() error {
	return client.httpClient.Close()
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const gradingSystemPrompt = `You are an expert grader for a vocabulary learning app.

You receive an exercise prompt, the reference answer and a learner's answer.
The learner's answer exercises specific vocabulary words. Grade, per word,
how well the answer demonstrates command of that word on an integer scale
from 0 (no command) to 10 (full command).

Grading guidance:
- Compare meaning, not surface form. Synonyms and valid paraphrases of the
  reference answer earn high scores.
- Minor spelling or inflection slips cost little when the word choice shows
  the learner knows the word.
- An answer that ignores or misuses a word scores that word low even when
  the rest of the answer is fine.
- An empty or unrelated answer scores every word 0.

Respond with ONLY a JSON object mapping each listed word exactly as given to
its integer score. No text outside the JSON.`

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Incomplete responses can show up as JSON parse failures
	if strings.Contains(errStr, "unexpected end of JSON input") {
		return true
	}

	// Network-related errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "i/o timeout") {
		return true
	}

	// 5xx server errors and rate limiting
	if strings.Contains(errStr, "response error 5") || strings.Contains(errStr, "response error 429") {
		return true
	}

	return false
}

// Grade implements the judge.Judge interface. It scores the submission per
// word, retrying transient failures with backoff. Returns
// judge.ErrJudgeUnavailable when every attempt fails so callers can fall
// back to exact-match grading.
func (client *Client) Grade(ctx context.Context, sub judge.Submission) (map[uuid.UUID]int, error) {
	var result map[uuid.UUID]int
	if err := retry.Do(
		func() error {
			scores, err := client.grade(ctx, sub)
			if err != nil {
				if !isRetryableError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = scores
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	); err != nil {
		if strings.Contains(err.Error(), judge.ErrInvalidVerdict.Error()) {
			return nil, fmt.Errorf("%w: %v", judge.ErrInvalidVerdict, err)
		}
		return nil, fmt.Errorf("%w: %v", judge.ErrJudgeUnavailable, err)
	}
	return result, nil
}

func (client *Client) grade(ctx context.Context, sub judge.Submission) (map[uuid.UUID]int, error) {
	if len(sub.Words) == 0 {
		return map[uuid.UUID]int{}, nil
	}

	userPrompt, err := client.getUserPrompt(sub)
	if err != nil {
		return nil, fmt.Errorf("getUserPrompt > %w", err)
	}

	requestBody := ChatCompletionRequest{
		Model: client.model,
		Messages: []Message{
			{Role: RoleSystem, Content: gradingSystemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
	}

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return nil, fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	responseBody := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty response body or choices", judge.ErrInvalidVerdict.Error())
	}

	content := responseBody.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("%s: empty response content", judge.ErrInvalidVerdict.Error())
	}
	client.logger.Debug("openai judge response content",
		"response", content)

	return parseVerdict(content, sub.Words)
}

// gradingInput is the user-message payload: everything the judge needs to
// score one submission.
type gradingInput struct {
	Prompt          string   `json:"prompt"`
	ReferenceAnswer string   `json:"reference_answer"`
	LearnerAnswer   string   `json:"learner_answer"`
	Words           []string `json:"words"`
}

func (client *Client) getUserPrompt(sub judge.Submission) (string, error) {
	words := make([]string, 0, len(sub.Words))
	for _, surface := range sub.Words {
		words = append(words, surface)
	}

	input := gradingInput{
		Prompt:          sub.Prompt,
		ReferenceAnswer: sub.ExpectedAnswer,
		LearnerAnswer:   sub.Response,
		Words:           words,
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("json.Marshal > %w", err)
	}
	return string(encoded), nil
}

// parseVerdict decodes the model's surface-keyed score object and maps it
// back onto word IDs, clamping each score into the valid range.
func parseVerdict(content string, words map[uuid.UUID]string) (map[uuid.UUID]int, error) {
	var bySurface map[string]int
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&bySurface); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(%s) > %w", content, err)
	}

	scores := make(map[uuid.UUID]int, len(words))
	for id, surface := range words {
		score, ok := bySurface[surface]
		if !ok {
			return nil, fmt.Errorf("%s: no score for word %q", judge.ErrInvalidVerdict.Error(), surface)
		}
		scores[id] = domain.ClampScore(score)
	}
	return scores, nil
}
