package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
// It returns a new TaskStore that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// CreateWithResources implements store.TaskStore.CreateWithResources
// Resources already cached under the same fingerprint are linked instead of
// re-inserted. The caller is expected to run this inside a transaction when
// atomicity with other writes matters.
func (s *PostgresTaskStore) CreateWithResources(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	taskQuery := `
		INSERT INTO tasks (id, template_id, prompt, answer, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		taskQuery,
		task.ID,
		task.TemplateID,
		task.Prompt,
		task.Answer,
		task.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	linkQuery := `
		INSERT INTO task_resources (task_id, parameter_name, resource_id)
		VALUES ($1, $2, $3)
	`
	for name, resource := range task.Resources {
		resourceID, err := s.ensureResource(ctx, resource)
		if err != nil {
			return err
		}

		if _, err := s.db.ExecContext(ctx, linkQuery, task.ID, name, resourceID); err != nil {
			log.Error("failed to link task resource",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()),
				slog.String("parameter", name))
			return MapError(err)
		}
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("template_id", task.TemplateID.String()),
		slog.Int("resource_count", len(task.Resources)))
	return nil
}

// ensureResource inserts the resource unless one with the same fingerprint
// exists, returning the ID of the stored row either way.
func (s *PostgresTaskStore) ensureResource(ctx context.Context, resource *domain.Resource) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	existing, err := s.GetResourceByFingerprint(ctx, resource.Fingerprint)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrResourceNotFound) {
		return uuid.Nil, err
	}

	resourceQuery := `
		INSERT INTO resources (id, text, fingerprint, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(
		ctx,
		resourceQuery,
		resource.ID,
		resource.Text,
		resource.Fingerprint,
		resource.CreatedAt,
	); err != nil {
		log.Error("failed to create resource",
			slog.String("error", err.Error()),
			slog.String("resource_id", resource.ID.String()))
		return uuid.Nil, MapError(err)
	}

	wordQuery := `
		INSERT INTO resource_words (resource_id, word_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	for _, wordID := range resource.WordIDs {
		if _, err := s.db.ExecContext(ctx, wordQuery, resource.ID, wordID); err != nil {
			log.Error("failed to link resource word",
				slog.String("error", err.Error()),
				slog.String("resource_id", resource.ID.String()),
				slog.String("word_id", wordID.String()))
			return uuid.Nil, MapError(err)
		}
	}

	return resource.ID, nil
}

// GetByID implements store.TaskStore.GetByID
// The task is returned with its template and resources fully loaded.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, template_id, prompt, answer, created_at
		FROM tasks
		WHERE id = $1
	`

	var task domain.Task
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.TemplateID,
		&task.Prompt,
		&task.Answer,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	templateStore := NewPostgresTemplateStore(s.db, s.logger)
	task.Template, err = templateStore.GetByID(ctx, task.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := s.loadTaskResources(ctx, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

// loadTaskResources populates the task's resources map, word targets and
// resource fingerprints from the linking tables.
func (s *PostgresTaskStore) loadTaskResources(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT tr.parameter_name, r.id, r.text, r.fingerprint, r.created_at, rw.word_id
		FROM task_resources tr
		JOIN resources r ON r.id = tr.resource_id
		LEFT JOIN resource_words rw ON rw.resource_id = r.id
		WHERE tr.task_id = $1
		ORDER BY tr.parameter_name, rw.word_id
	`

	rows, err := s.db.QueryContext(ctx, query, task.ID)
	if err != nil {
		log.Error("failed to query task resources",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	task.Resources = make(map[string]*domain.Resource)
	for rows.Next() {
		var (
			name        string
			resourceID  uuid.UUID
			text        string
			fingerprint string
			createdAt   sql.NullTime
			wordID      uuid.NullUUID
		)
		if err := rows.Scan(&name, &resourceID, &text, &fingerprint, &createdAt, &wordID); err != nil {
			log.Error("failed to scan task resource row", slog.String("error", err.Error()))
			return MapError(err)
		}

		resource, ok := task.Resources[name]
		if !ok {
			resource = &domain.Resource{
				ID:          resourceID,
				Text:        text,
				Fingerprint: fingerprint,
				CreatedAt:   createdAt.Time,
			}
			task.Resources[name] = resource
		}
		if wordID.Valid {
			resource.WordIDs = append(resource.WordIDs, wordID.UUID)
		}
	}
	if err := rows.Err(); err != nil {
		return MapError(err)
	}

	task.TargetWordIDs = targetWordUnion(task.Resources)
	return nil
}

// targetWordUnion deduplicates the word IDs of every non-answer resource.
func targetWordUnion(resources map[string]*domain.Resource) []uuid.UUID {
	names := make([]string, 0, len(resources))
	for name := range resources {
		if name == domain.AnswerParameter {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[uuid.UUID]struct{})
	var targets []uuid.UUID
	for _, name := range names {
		for _, id := range resources[name].WordIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			targets = append(targets, id)
		}
	}
	return targets
}

// FindTaskForWords implements store.TaskStore.FindTaskForWords
// It looks for a task of the requested type whose target word set is exactly
// wordIDs, skipping the excluded tasks. Returns store.ErrTaskNotFound when
// nothing is reusable.
func (s *PostgresTaskStore) FindTaskForWords(
	ctx context.Context,
	taskType domain.TaskType,
	wordIDs []uuid.UUID,
	excludeTaskIDs []uuid.UUID,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(wordIDs) == 0 {
		return nil, store.ErrTaskNotFound
	}

	// The word sets are compared as sorted uuid arrays. IDs travel as
	// comma-joined strings so the query works with any driver.
	query := `
		SELECT t.id
		FROM tasks t
		JOIN templates tp ON tp.id = t.template_id AND tp.task_type = $3
		JOIN task_resources tr ON tr.task_id = t.id AND tr.parameter_name <> 'answer'
		JOIN resource_words rw ON rw.resource_id = tr.resource_id
		WHERE NOT (t.id::text = ANY(string_to_array(NULLIF($2, ''), ',')))
		   OR $2 = ''
		GROUP BY t.id
		HAVING array_agg(DISTINCT rw.word_id ORDER BY rw.word_id) = (
			SELECT array_agg(x ORDER BY x)
			FROM unnest(string_to_array($1, ',')::uuid[]) AS x
		)
		LIMIT 1
	`

	sorted := make([]string, len(wordIDs))
	for i, id := range wordIDs {
		sorted[i] = id.String()
	}
	sort.Strings(sorted)

	excluded := make([]string, len(excludeTaskIDs))
	for i, id := range excludeTaskIDs {
		excluded[i] = id.String()
	}

	var taskID uuid.UUID
	err := s.db.QueryRowContext(
		ctx,
		query,
		strings.Join(sorted, ","),
		strings.Join(excluded, ","),
		string(taskType),
	).Scan(&taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("no reusable task for word set",
				slog.Int("word_count", len(wordIDs)))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to find task for words",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return s.GetByID(ctx, taskID)
}

// GetResourceByFingerprint implements store.TaskStore.GetResourceByFingerprint
// Returns store.ErrResourceNotFound on a cache miss.
func (s *PostgresTaskStore) GetResourceByFingerprint(ctx context.Context, fingerprint string) (*domain.Resource, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, text, fingerprint, created_at
		FROM resources
		WHERE fingerprint = $1
	`

	var resource domain.Resource
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&resource.ID,
		&resource.Text,
		&resource.Fingerprint,
		&resource.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResourceNotFound
		}
		log.Error("failed to get resource by fingerprint",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	wordQuery := `
		SELECT word_id
		FROM resource_words
		WHERE resource_id = $1
		ORDER BY word_id
	`
	rows, err := s.db.QueryContext(ctx, wordQuery, resource.ID)
	if err != nil {
		log.Error("failed to query resource words",
			slog.String("error", err.Error()),
			slog.String("resource_id", resource.ID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var wordID uuid.UUID
		if err := rows.Scan(&wordID); err != nil {
			return nil, MapError(err)
		}
		resource.WordIDs = append(resource.WordIDs, wordID)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &resource, nil
}
