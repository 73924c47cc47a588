package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// PostgresTemplateStore implements the store.TemplateStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTemplateStore creates a new PostgreSQL implementation of the TemplateStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresTemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

// Ensure PostgresTemplateStore implements store.TemplateStore interface
var _ store.TemplateStore = (*PostgresTemplateStore)(nil)

// Create implements store.TemplateStore.Create
// A template whose name already exists is skipped along with its parameters,
// so seed loads are idempotent.
func (s *PostgresTemplateStore) Create(ctx context.Context, template *domain.TemplateDef) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := template.Validate(); err != nil {
		log.Warn("template validation failed during create",
			slog.String("error", err.Error()),
			slog.String("template_name", template.Name))
		return err
	}

	examples, err := json.Marshal(template.Examples)
	if err != nil {
		return fmt.Errorf("marshaling template examples: %w", err)
	}

	query := `
		INSERT INTO templates
			(id, name, task_type, text, description, examples, source_language, target_language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		template.ID,
		template.Name,
		template.Type,
		template.Text,
		template.Description,
		examples,
		template.SourceLanguage,
		template.TargetLanguage,
		template.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create template",
			slog.String("error", err.Error()),
			slog.String("template_name", template.Name))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		log.Debug("template already exists, skipping",
			slog.String("template_name", template.Name))
		return nil
	}

	paramQuery := `
		INSERT INTO template_parameters (template_id, name, description, position)
		VALUES ($1, $2, $3, $4)
	`
	for _, p := range template.Parameters {
		if _, err := s.db.ExecContext(ctx, paramQuery, template.ID, p.Name, p.Description, p.Position); err != nil {
			log.Error("failed to create template parameter",
				slog.String("error", err.Error()),
				slog.String("template_name", template.Name),
				slog.String("parameter", p.Name))
			return MapError(err)
		}
	}

	log.Info("template created successfully",
		slog.String("template_id", template.ID.String()),
		slog.String("template_name", template.Name),
		slog.String("task_type", string(template.Type)))
	return nil
}

// GetByID implements store.TemplateStore.GetByID
// Returns store.ErrTemplateNotFound if the template does not exist.
func (s *PostgresTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TemplateDef, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, task_type, text, description, examples, source_language, target_language, created_at
		FROM templates
		WHERE id = $1
	`

	template, err := scanTemplate(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("template not found", slog.String("template_id", id.String()))
			return nil, store.ErrTemplateNotFound
		}
		log.Error("failed to get template by ID",
			slog.String("error", err.Error()),
			slog.String("template_id", id.String()))
		return nil, MapError(err)
	}

	if err := s.loadParameters(ctx, template); err != nil {
		return nil, err
	}

	return template, nil
}

// FindByType implements store.TemplateStore.FindByType
// Returns an empty slice when no templates of the type exist.
func (s *PostgresTemplateStore) FindByType(ctx context.Context, taskType domain.TaskType) ([]*domain.TemplateDef, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, task_type, text, description, examples, source_language, target_language, created_at
		FROM templates
		WHERE task_type = $1
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskType)
	if err != nil {
		log.Error("failed to query templates by type",
			slog.String("error", err.Error()),
			slog.String("task_type", string(taskType)))
		return nil, MapError(err)
	}

	templates, err := collectTemplates(rows, log)
	if err != nil {
		return nil, MapError(err)
	}

	for _, template := range templates {
		if err := s.loadParameters(ctx, template); err != nil {
			return nil, err
		}
	}

	return templates, nil
}

// loadParameters populates a template's parameter schema in position order.
func (s *PostgresTemplateStore) loadParameters(ctx context.Context, template *domain.TemplateDef) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT name, description, position
		FROM template_parameters
		WHERE template_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, template.ID)
	if err != nil {
		log.Error("failed to query template parameters",
			slog.String("error", err.Error()),
			slog.String("template_id", template.ID.String()))
		return MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	template.Parameters = nil
	for rows.Next() {
		var p domain.Parameter
		if err := rows.Scan(&p.Name, &p.Description, &p.Position); err != nil {
			log.Error("failed to scan parameter row", slog.String("error", err.Error()))
			return MapError(err)
		}
		template.Parameters = append(template.Parameters, p)
	}
	if err := rows.Err(); err != nil {
		return MapError(err)
	}

	return nil
}

// collectTemplates drains a template query result, returning an empty slice
// rather than nil when no rows matched.
func collectTemplates(rows *sql.Rows, log *slog.Logger) ([]*domain.TemplateDef, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	templates := []*domain.TemplateDef{}
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			log.Error("failed to scan template row", slog.String("error", err.Error()))
			return nil, err
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return templates, nil
}

func scanTemplate(row rowScanner) (*domain.TemplateDef, error) {
	var template domain.TemplateDef
	var taskType string
	var examples []byte

	err := row.Scan(
		&template.ID,
		&template.Name,
		&taskType,
		&template.Text,
		&template.Description,
		&examples,
		&template.SourceLanguage,
		&template.TargetLanguage,
		&template.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	template.Type = domain.TaskType(taskType)
	if err := json.Unmarshal(examples, &template.Examples); err != nil {
		return nil, fmt.Errorf("unmarshaling template examples: %w", err)
	}

	return &template, nil
}
