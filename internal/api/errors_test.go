package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
	"github.com/wortweg/wortweg-api/internal/judge"
	"github.com/wortweg/wortweg-api/internal/service/evaluation"
	"github.com/wortweg/wortweg-api/internal/service/lesson"
	"github.com/wortweg/wortweg-api/internal/service/taskgen"
	"github.com/wortweg/wortweg-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{store.ErrUserNotFound, http.StatusNotFound},
		{store.ErrLessonNotFound, http.StatusNotFound},
		{fmt.Errorf("loading task: %w", store.ErrTaskNotFound), http.StatusNotFound},
		{store.ErrUsernameExists, http.StatusConflict},
		{lesson.ErrLessonInProgress, http.StatusConflict},
		{lesson.ErrStaleSubmission, http.StatusConflict},
		{domain.ErrLessonFinished, http.StatusConflict},
		{evaluation.ErrInvalidResponse, http.StatusBadRequest},
		{store.ErrInvalidEntity, http.StatusBadRequest},
		{generation.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{judge.ErrJudgeUnavailable, http.StatusServiceUnavailable},
		{evaluation.ErrEvaluationUnavailable, http.StatusServiceUnavailable},
		{taskgen.ErrNoTemplates, http.StatusServiceUnavailable},
		{errors.New("driver: bad connection"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, MapErrorToStatusCode(c.err), "error: %v", c.err)
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	// Internal detail must never leak through the safe message.
	raw := fmt.Errorf("pq: connection to 10.0.0.3:5432 refused")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(raw))
	assert.NotContains(t, GetSafeErrorMessage(raw), "10.0.0.3")

	assert.Equal(t, "User not found", GetSafeErrorMessage(store.ErrUserNotFound))
	assert.Equal(t, "An unfinished lesson already exists",
		GetSafeErrorMessage(fmt.Errorf("%w: lesson x", lesson.ErrLessonInProgress)))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
