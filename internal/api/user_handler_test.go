package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/store"
)

type fakeUserStore struct {
	created *domain.User
	err     error
}

var _ store.UserStore = (*fakeUserStore)(nil)

func (f *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	if f.err != nil {
		return f.err
	}
	f.created = user
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, store.ErrUserNotFound
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, store.ErrUserNotFound
}

func createUserRequest(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return createUserRequestWith(t, &fakeUserStore{}, body)
}

func createUserRequestWith(t *testing.T, users *fakeUserStore, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewUserHandler(users)
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	handler.CreateUser(rec, req)
	return rec
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	users := &fakeUserStore{}
	rec := createUserRequestWith(t, users, `{"username":"anna"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, users.created)
	assert.Equal(t, "anna", users.created.Username)

	var got UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, users.created.ID.String(), got.ID)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, createUserRequest(t, ``).Code)
	assert.Equal(t, http.StatusBadRequest, createUserRequest(t, `{"username":""}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		createUserRequest(t, `{"username":"`+strings.Repeat("a", domain.MaxUsernameLength+1)+`"}`).Code)
}

func TestCreateUserDuplicate(t *testing.T) {
	t.Parallel()

	rec := createUserRequestWith(t, &fakeUserStore{err: store.ErrUsernameExists}, `{"username":"anna"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already taken")
}
