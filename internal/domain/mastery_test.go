package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewMasteryRecord(t *testing.T) {
	t.Parallel() // Enable parallel execution
	userID := uuid.New()
	wordID := uuid.New()

	record, err := NewMasteryRecord(userID, wordID, 7)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if record.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, record.UserID)
	}

	if record.WordID != wordID {
		t.Errorf("Expected word ID %s, got %s", wordID, record.WordID)
	}

	if record.Score != 7 {
		t.Errorf("Expected score 7, got %d", record.Score)
	}

	if record.UpdatedAt.IsZero() {
		t.Error("Expected non-zero UpdatedAt time")
	}

	// Test invalid user ID
	_, err = NewMasteryRecord(uuid.Nil, wordID, 7)
	if err != ErrMasteryUserIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrMasteryUserIDEmpty, err)
	}

	// Test invalid word ID
	_, err = NewMasteryRecord(userID, uuid.Nil, 7)
	if err != ErrMasteryWordIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrMasteryWordIDEmpty, err)
	}

	// Test out-of-range scores
	for _, score := range []int{-1, 11, 100} {
		_, err = NewMasteryRecord(userID, wordID, score)
		if err != ErrInvalidScore {
			t.Errorf("Expected error %v for score %d, got %v", ErrInvalidScore, score, err)
		}
	}
}

func TestValidScore(t *testing.T) {
	t.Parallel() // Enable parallel execution
	cases := []struct {
		score int
		want  bool
	}{
		{-1, false},
		{0, true},
		{5, true},
		{10, true},
		{11, false},
	}

	for _, tc := range cases {
		if got := ValidScore(tc.score); got != tc.want {
			t.Errorf("ValidScore(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel() // Enable parallel execution
	cases := []struct {
		score int
		want  int
	}{
		{-5, 0},
		{0, 0},
		{7, 7},
		{10, 10},
		{42, 10},
	}

	for _, tc := range cases {
		if got := ClampScore(tc.score); got != tc.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tc.score, got, tc.want)
		}
	}
}
