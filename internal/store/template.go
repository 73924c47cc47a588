package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wortweg/wortweg-api/internal/domain"
)

// TemplateStore defines the interface for task template persistence.
// Templates are immutable reference data loaded at startup.
type TemplateStore interface {
	// Create saves a new template with its parameter schema.
	// Templates with a name that already exists are skipped so seed loads
	// are idempotent.
	Create(ctx context.Context, template *domain.TemplateDef) error

	// GetByID retrieves a template and its parameters by ID.
	// Returns ErrTemplateNotFound if the template does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TemplateDef, error)

	// FindByType retrieves all templates of the given task type.
	// Returns an empty slice if none exist.
	FindByType(ctx context.Context, taskType domain.TaskType) ([]*domain.TemplateDef, error)
}
