package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/wortweg/wortweg-api/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(nil))

	err := MapError(sql.ErrNoRows)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = MapError(&pgconn.PgError{Code: uniqueViolationCode})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = MapError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "lesson_slots_word_id_fkey"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.Contains(t, err.Error(), "lesson_slots_word_id_fkey")

	err = MapError(&pgconn.PgError{Code: checkViolationCode})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	// Unmapped errors pass through untouched
	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain))
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode})
	fk := fmt.Errorf("insert: %w", &pgconn.PgError{Code: foreignKeyViolationCode})

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.False(t, IsUniqueViolation(nil))
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckRowsAffected(fakeResult{rows: 1}, "lesson"))

	err := CheckRowsAffected(fakeResult{rows: 0}, "lesson")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "lesson")

	err = CheckRowsAffected(fakeResult{rows: 0}, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, CheckRowsAffected(nil, "lesson"))
	assert.Error(t, CheckRowsAffected(fakeResult{err: errors.New("driver does not support")}, "lesson"))
}
