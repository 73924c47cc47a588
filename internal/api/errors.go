package api

import (
	"errors"
	"net/http"

	"github.com/wortweg/wortweg-api/internal/api/shared"
	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/generation"
	"github.com/wortweg/wortweg-api/internal/judge"
	"github.com/wortweg/wortweg-api/internal/service/evaluation"
	"github.com/wortweg/wortweg-api/internal/service/lesson"
	"github.com/wortweg/wortweg-api/internal/service/taskgen"
	"github.com/wortweg/wortweg-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrLessonNotFound),
		errors.Is(err, store.ErrWordNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrUsernameExists),
		errors.Is(err, lesson.ErrLessonInProgress),
		errors.Is(err, lesson.ErrStaleSubmission),
		errors.Is(err, domain.ErrLessonFinished):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, evaluation.ErrInvalidResponse),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidScore):
		return http.StatusBadRequest

	// Upstream outages: the client may retry later
	case errors.Is(err, generation.ErrGenerationUnavailable),
		errors.Is(err, judge.ErrJudgeUnavailable),
		errors.Is(err, evaluation.ErrEvaluationUnavailable),
		errors.Is(err, taskgen.ErrNoTemplates):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrLessonNotFound):
		return "Lesson not found"

	case errors.Is(err, store.ErrWordNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrUsernameExists):
		return "Username is already taken"

	case errors.Is(err, lesson.ErrLessonInProgress):
		return "An unfinished lesson already exists"

	case errors.Is(err, lesson.ErrStaleSubmission):
		return "Submission does not match the current task"

	case errors.Is(err, domain.ErrLessonFinished):
		return "Lesson is already finished"

	case errors.Is(err, evaluation.ErrInvalidResponse):
		return "Response is not valid for this task"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidScore):
		return "Invalid request"

	case errors.Is(err, generation.ErrGenerationUnavailable),
		errors.Is(err, taskgen.ErrNoTemplates):
		return "Task generation is temporarily unavailable"

	case errors.Is(err, judge.ErrJudgeUnavailable),
		errors.Is(err, evaluation.ErrEvaluationUnavailable):
		return "Answer grading is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// RespondServiceError maps a service error to its status code and safe
// message in one step. Used by handlers after a service call fails.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
}
