package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the exercise variant a template produces. Grading and
// rendering strategies are selected by task type.
type TaskType string

// Known task type values. The set is extensible: new variants only need a
// grader and templates of that type.
const (
	TaskTypeOneWayTranslation TaskType = "ONE_WAY_TRANSLATION"
	TaskTypeFourChoice        TaskType = "FOUR_CHOICE"
)

// FourChoiceOptions are the parameter names that hold the answer options of
// a FOUR_CHOICE template; the correct answer is one of these names.
var FourChoiceOptions = []string{"A", "B", "C", "D"}

// Validate checks that the task type is a known variant.
func (t TaskType) Validate() error {
	switch t {
	case TaskTypeOneWayTranslation, TaskTypeFourChoice:
		return nil
	default:
		return ErrInvalidTaskType
	}
}

// Template-specific validation errors
var (
	// ErrTemplateIDEmpty is returned when a template ID is empty or nil.
	ErrTemplateIDEmpty = errors.New("template ID cannot be empty")

	// ErrTemplateNameEmpty is returned when a template's unique name is empty.
	ErrTemplateNameEmpty = errors.New("template name cannot be empty")

	// ErrTemplateTextEmpty is returned when a template's text is empty.
	ErrTemplateTextEmpty = errors.New("template text cannot be empty")

	// ErrTemplateDescriptionEmpty is returned when a template's description is empty.
	ErrTemplateDescriptionEmpty = errors.New("template description cannot be empty")

	// ErrTemplateNoExamples is returned when a template carries no worked examples.
	ErrTemplateNoExamples = errors.New("template must have at least one example")

	// ErrTemplateNoParameters is returned when a template declares no parameters.
	ErrTemplateNoParameters = errors.New("template must declare at least one parameter")

	// ErrTemplateLanguageEmpty is returned when a template's language pair is incomplete.
	ErrTemplateLanguageEmpty = errors.New("template source and target languages cannot be empty")

	// ErrTemplateParamMismatch is returned when the placeholders in the
	// template text and the declared parameter names are not the same set,
	// or when a substitution is attempted with missing or extra values.
	ErrTemplateParamMismatch = errors.New("template parameters do not match")
)

// Parameter declares one named slot of a template that a Resource must fill.
// The description tells the content generator what text belongs in the slot.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// TemplateDef is a reusable task blueprint: a prompt shape with $name
// placeholders, a parameter schema, worked examples and a language pair.
// Templates are immutable reference data; one TemplateDef may back
// arbitrarily many tasks.
type TemplateDef struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Type           TaskType    `json:"task_type"`
	Text           string      `json:"text"`
	Description    string      `json:"description"`
	Examples       []string    `json:"examples"`
	Parameters     []Parameter `json:"parameters"`
	SourceLanguage string      `json:"source_language"`
	TargetLanguage string      `json:"target_language"`
	CreatedAt      time.Time   `json:"created_at"`
}

// placeholderPattern matches $name and ${name} placeholders in template text.
var placeholderPattern = regexp.MustCompile(`\$\{?([A-Za-z][A-Za-z0-9_]*)\}?`)

// NewTemplateDef creates a new TemplateDef and validates it, including the
// invariant that the placeholders in text are exactly the declared
// parameter names.
func NewTemplateDef(
	name string,
	taskType TaskType,
	text string,
	description string,
	examples []string,
	parameters []Parameter,
	sourceLanguage, targetLanguage string,
) (*TemplateDef, error) {
	tmpl := &TemplateDef{
		ID:             uuid.New(),
		Name:           name,
		Type:           taskType,
		Text:           text,
		Description:    description,
		Examples:       examples,
		Parameters:     parameters,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		CreatedAt:      time.Now().UTC(),
	}

	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	return tmpl, nil
}

// Validate checks if the TemplateDef has valid data.
// Returns an error if any field fails validation.
func (t *TemplateDef) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTemplateIDEmpty
	}

	if t.Name == "" {
		return ErrTemplateNameEmpty
	}

	if err := t.Type.Validate(); err != nil {
		return err
	}

	if t.Text == "" {
		return ErrTemplateTextEmpty
	}

	if t.Description == "" {
		return ErrTemplateDescriptionEmpty
	}

	if len(t.Examples) == 0 {
		return ErrTemplateNoExamples
	}

	if len(t.Parameters) == 0 {
		return ErrTemplateNoParameters
	}

	if t.SourceLanguage == "" || t.TargetLanguage == "" {
		return ErrTemplateLanguageEmpty
	}

	declared := t.ParameterNames()
	placeholders := t.placeholderNames()
	if !sameNameSet(declared, placeholders) {
		return fmt.Errorf("%w: declared %v, placeholders %v",
			ErrTemplateParamMismatch, declared, placeholders)
	}

	return nil
}

// ParameterNames returns the declared parameter names in position order.
func (t *TemplateDef) ParameterNames() []string {
	params := make([]Parameter, len(t.Parameters))
	copy(params, t.Parameters)
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Position < params[j].Position
	})

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// Render substitutes each placeholder in the template text with the value
// bound to its parameter name. The value keys must be exactly the declared
// parameter names: missing or extra keys fail with ErrTemplateParamMismatch.
func (t *TemplateDef) Render(values map[string]string) (string, error) {
	declared := t.ParameterNames()
	if len(values) != len(declared) {
		return "", fmt.Errorf("%w: got %d values for %d parameters",
			ErrTemplateParamMismatch, len(values), len(declared))
	}
	for _, name := range declared {
		if _, ok := values[name]; !ok {
			return "", fmt.Errorf("%w: missing value for %q", ErrTemplateParamMismatch, name)
		}
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return values[name]
	})
	return rendered, nil
}

// placeholderNames returns the deduplicated placeholder names found in the
// template text, in order of first appearance.
func (t *TemplateDef) placeholderNames() []string {
	matches := placeholderPattern.FindAllStringSubmatch(t.Text, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
