package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxUsernameLength is the maximum number of characters in a username.
const MaxUsernameLength = 20

// User-specific validation errors
var (
	// ErrUserIDEmpty is returned when a user ID is empty or nil.
	ErrUserIDEmpty = errors.New("user ID cannot be empty")

	// ErrUsernameEmpty is returned when a username is empty.
	ErrUsernameEmpty = errors.New("username cannot be empty")

	// ErrUsernameTooLong is returned when a username exceeds MaxUsernameLength.
	ErrUsernameTooLong = errors.New("username is too long")
)

// User represents a learner. Each user owns a partition of mastery records
// and a history of lessons.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new User with the given username.
// It generates a new UUID for the user ID and sets the creation timestamp.
// Returns an error if validation fails.
func NewUser(username string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
// Returns an error if any field fails validation.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrUserIDEmpty
	}

	if u.Username == "" {
		return ErrUsernameEmpty
	}

	if len(u.Username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}

	return nil
}
