package generation

import (
	"context"

	"github.com/wortweg/wortweg-api/internal/domain"
)

// TargetWord is one vocabulary item the generated content must exercise.
type TargetWord struct {
	Surface      string
	PartOfSpeech string
}

// Request describes one synthesis call: a template's shape and the words its
// content must exercise.
type Request struct {
	// TemplateText is the prompt shape with $name placeholders.
	TemplateText string
	// TemplateDescription tells the model what the template is for.
	TemplateDescription string
	// TaskType selects the exercise variant being filled.
	TaskType domain.TaskType
	// Parameters are the template's declared slots in position order.
	Parameters []domain.Parameter
	// TargetWords are the vocabulary items the content must use.
	TargetWords []TargetWord
	// Examples are worked instances of the template guiding the model.
	Examples []string
	// SourceLanguage and TargetLanguage name the language pair.
	SourceLanguage string
	TargetLanguage string
}

// Result is the synthesized content: one text value per template parameter
// plus the expected answer for grading.
type Result struct {
	// Values maps each parameter name to its generated text.
	Values map[string]string
	// Answer is the expected answer to the rendered task.
	Answer string
}

// Generator defines the interface for synthesizing task content.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
type Generator interface {
	// Synthesize produces text for every parameter of a template plus the
	// expected answer, exercising the requested target words.
	//
	// Returns ErrGenerationUnavailable when the upstream service cannot
	// serve the request, ErrInvalidResponse when its output cannot be used,
	// and ErrContentBlocked when safety filters reject the content.
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
