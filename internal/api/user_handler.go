package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wortweg/wortweg-api/internal/api/shared"
	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/store"
)

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	userStore store.UserStore
	validator *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userStore store.UserStore) *UserHandler {
	return &UserHandler{
		userStore: userStore,
		validator: validator.New(),
	}
}

// CreateUser handles POST /api/users requests.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := domain.NewUser(req.Username)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid username", err)
		return
	}

	if err := h.userStore.Create(r.Context(), user); err != nil {
		RespondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	})
}
