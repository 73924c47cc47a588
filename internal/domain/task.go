package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnswerParameter is the reserved pseudo-parameter name under which a task's
// expected answer is cached. It never appears in template text.
const AnswerParameter = "answer"

// Task and resource validation errors
var (
	// ErrResourceIDEmpty is returned when a resource ID is empty or nil.
	ErrResourceIDEmpty = errors.New("resource ID cannot be empty")

	// ErrResourceTextEmpty is returned when a resource's text is empty.
	ErrResourceTextEmpty = errors.New("resource text cannot be empty")

	// ErrResourceNoWords is returned when a resource targets no words.
	ErrResourceNoWords = errors.New("resource must target at least one word")

	// ErrResourceFingerprintEmpty is returned when a resource's fingerprint is empty.
	ErrResourceFingerprintEmpty = errors.New("resource fingerprint cannot be empty")

	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskTemplateEmpty is returned when a task has no template.
	ErrTaskTemplateEmpty = errors.New("task template cannot be empty")

	// ErrTaskPromptEmpty is returned when a task's rendered prompt is empty.
	ErrTaskPromptEmpty = errors.New("task prompt cannot be empty")

	// ErrTaskAnswerEmpty is returned when a task's expected answer is empty.
	ErrTaskAnswerEmpty = errors.New("task answer cannot be empty")

	// ErrTaskNoTargetWords is returned when a task exercises no words. Every
	// task must contribute scores to at least one word.
	ErrTaskNoTargetWords = errors.New("task must target at least one word")
)

// Resource is one generated text fragment bound to a template parameter and
// the set of words it exercises. Resources are content-addressed by
// fingerprint so the same (template, parameter, word set) request is
// generated once and reused across tasks and users.
type Resource struct {
	ID          uuid.UUID   `json:"id"`
	Text        string      `json:"text"`
	WordIDs     []uuid.UUID `json:"word_ids"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ResourceFingerprint derives the cache key for a generated resource from
// the template, the parameter it fills and the words it must exercise. The
// word IDs are sorted so the key is insensitive to input order.
func ResourceFingerprint(templateID uuid.UUID, parameter string, wordIDs []uuid.UUID) string {
	sorted := make([]string, len(wordIDs))
	for i, id := range wordIDs {
		sorted[i] = id.String()
	}
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(templateID.String()))
	h.Write([]byte{0})
	h.Write([]byte(parameter))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// NewResource creates a resource holding generated text for the given
// template parameter and target words. Returns an error if validation fails.
func NewResource(templateID uuid.UUID, parameter, text string, wordIDs []uuid.UUID) (*Resource, error) {
	resource := &Resource{
		ID:          uuid.New(),
		Text:        text,
		WordIDs:     wordIDs,
		Fingerprint: ResourceFingerprint(templateID, parameter, wordIDs),
		CreatedAt:   time.Now().UTC(),
	}

	if err := resource.Validate(); err != nil {
		return nil, err
	}

	return resource, nil
}

// Validate checks if the Resource has valid data.
// Returns an error if any field fails validation.
func (r *Resource) Validate() error {
	if r.ID == uuid.Nil {
		return ErrResourceIDEmpty
	}

	if r.Text == "" {
		return ErrResourceTextEmpty
	}

	if len(r.WordIDs) == 0 {
		return ErrResourceNoWords
	}

	if r.Fingerprint == "" {
		return ErrResourceFingerprintEmpty
	}

	return nil
}

// Task is a fully materialized exercise: a template with every parameter
// bound to a resource, the rendered prompt shown to the learner and the
// expected answer used for grading. Tasks are immutable once created and may
// be served to any number of users.
type Task struct {
	ID         uuid.UUID            `json:"id"`
	TemplateID uuid.UUID            `json:"template_id"`
	Template   *TemplateDef         `json:"template,omitempty"`
	Resources  map[string]*Resource `json:"resources,omitempty"`
	Prompt     string               `json:"prompt"`
	Answer     string               `json:"answer"`
	// TargetWordIDs is the deduplicated union of the words exercised by the
	// task's resources. Grading fans a single attempt score out to each of
	// these words.
	TargetWordIDs []uuid.UUID `json:"target_word_ids"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewTask assembles a task from a template, one resource per declared
// parameter and the expected answer. The resources map may also carry the
// reserved AnswerParameter entry caching the answer; it is ignored for
// rendering and word targeting. The prompt is rendered immediately so a
// stored task can be served without touching the template again.
func NewTask(template *TemplateDef, resources map[string]*Resource, answer string) (*Task, error) {
	if template == nil {
		return nil, ErrTaskTemplateEmpty
	}

	values := make(map[string]string, len(template.Parameters))
	for _, name := range template.ParameterNames() {
		if res, ok := resources[name]; ok {
			values[name] = res.Text
		}
	}

	prompt, err := template.Render(values)
	if err != nil {
		return nil, fmt.Errorf("rendering task prompt: %w", err)
	}

	targets := make([]uuid.UUID, 0, len(resources))
	seen := make(map[uuid.UUID]struct{})
	for _, name := range template.ParameterNames() {
		for _, id := range resources[name].WordIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			targets = append(targets, id)
		}
	}

	task := &Task{
		ID:            uuid.New(),
		TemplateID:    template.ID,
		Template:      template,
		Resources:     resources,
		Prompt:        prompt,
		Answer:        answer,
		TargetWordIDs: targets,
		CreatedAt:     time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.TemplateID == uuid.Nil {
		return ErrTaskTemplateEmpty
	}

	if t.Prompt == "" {
		return ErrTaskPromptEmpty
	}

	if t.Answer == "" {
		return ErrTaskAnswerEmpty
	}

	if len(t.TargetWordIDs) == 0 {
		return ErrTaskNoTargetWords
	}

	return nil
}

// Type returns the task's variant. It requires the template to be loaded.
func (t *Task) Type() TaskType {
	if t.Template == nil {
		return ""
	}
	return t.Template.Type
}
