package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wortweg/wortweg-api/internal/domain"
)

// TaskStore defines the interface for task and resource persistence.
// Tasks and resources are shared across users: the generator checks for an
// existing task or cached resources before calling the content generator.
type TaskStore interface {
	// CreateWithResources saves a task together with any resources not yet
	// in the store, linking existing resources by fingerprint. The whole
	// write happens in one transaction; use WithTx to join a larger one.
	CreateWithResources(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task with its template and resources loaded.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// FindTaskForWords retrieves an existing task of the given type whose
	// target word set is exactly wordIDs, excluding the given task IDs
	// (already used in the current lesson). Returns ErrTaskNotFound when no
	// reusable task exists.
	FindTaskForWords(ctx context.Context, taskType domain.TaskType, wordIDs []uuid.UUID, excludeTaskIDs []uuid.UUID) (*domain.Task, error)

	// GetResourceByFingerprint retrieves a cached resource by its content
	// fingerprint. Returns ErrResourceNotFound on a cache miss.
	GetResourceByFingerprint(ctx context.Context, fingerprint string) (*domain.Resource, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
