package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Score bounds for mastery and entry scores.
const (
	MinScore = 0
	MaxScore = 10
)

// Mastery-specific validation errors
var (
	// ErrMasteryUserIDEmpty is returned when a mastery record's user ID is empty.
	ErrMasteryUserIDEmpty = errors.New("mastery record user ID cannot be empty")

	// ErrMasteryWordIDEmpty is returned when a mastery record's word ID is empty.
	ErrMasteryWordIDEmpty = errors.New("mastery record word ID cannot be empty")
)

// MasteryRecord tracks a user's recall strength for one word as an integer
// score in [MinScore, MaxScore]. A record exists only after the first graded
// attempt; a word with no record is in the distinct Unseen state, which is
// not the same as score 0.
type MasteryRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	WordID    uuid.UUID `json:"word_id"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMasteryRecord creates a mastery record for a user and word with the
// given score. Returns an error if validation fails.
func NewMasteryRecord(userID, wordID uuid.UUID, score int) (*MasteryRecord, error) {
	record := &MasteryRecord{
		UserID:    userID,
		WordID:    wordID,
		Score:     score,
		UpdatedAt: time.Now().UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the MasteryRecord has valid data.
// Returns an error if any field fails validation.
func (r *MasteryRecord) Validate() error {
	if r.UserID == uuid.Nil {
		return ErrMasteryUserIDEmpty
	}

	if r.WordID == uuid.Nil {
		return ErrMasteryWordIDEmpty
	}

	if !ValidScore(r.Score) {
		return ErrInvalidScore
	}

	return nil
}

// ValidScore reports whether score lies within [MinScore, MaxScore].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// ClampScore forces score into [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
