package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/api/shared"
	"github.com/wortweg/wortweg-api/internal/service/lesson"
)

// LessonService is the surface of the lesson service the handlers depend on.
type LessonService interface {
	Start(ctx context.Context, userID uuid.UUID) (*lesson.StartResult, error)
	NextTask(ctx context.Context, userID uuid.UUID) (*lesson.TaskView, error)
	Submit(ctx context.Context, userID, lessonID uuid.UUID, sequenceNumber int, taskID uuid.UUID, response string) (*lesson.SubmitResult, error)
	Finish(ctx context.Context, userID, lessonID uuid.UUID) (*lesson.Summary, error)
}

// LessonHandler handles lesson-related HTTP requests.
type LessonHandler struct {
	lessonService LessonService
	validator     *validator.Validate
}

// NewLessonHandler creates a new LessonHandler.
func NewLessonHandler(lessonService LessonService) *LessonHandler {
	return &LessonHandler{
		lessonService: lessonService,
		validator:     validator.New(),
	}
}

// StartLesson handles POST /api/users/{userID}/lessons requests.
func (h *LessonHandler) StartLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.lessonService.Start(r.Context(), userID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, result)
}

// GetNextTask handles GET /api/users/{userID}/lessons/next requests.
func (h *LessonHandler) GetNextTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	view, err := h.lessonService.NextTask(r.Context(), userID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// SubmitAnswer handles POST /api/users/{userID}/lessons/{lessonID}/submit requests.
func (h *LessonHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	lessonID, ok := pathUUID(w, r, "lessonID")
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	result, err := h.lessonService.Submit(r.Context(), userID, lessonID, req.SequenceNumber, taskID, req.Response)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// FinishLesson handles POST /api/users/{userID}/lessons/{lessonID}/finish requests.
func (h *LessonHandler) FinishLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	lessonID, ok := pathUUID(w, r, "lessonID")
	if !ok {
		return
	}

	summary, err := h.lessonService.Finish(r.Context(), userID, lessonID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// pathUUID parses one UUID path parameter, writing a 400 response on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
