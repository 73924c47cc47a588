package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewWord(t *testing.T) {
	t.Parallel() // Enable parallel execution
	// Test valid word creation
	word, err := NewWord("Haus", "NOUN", 120, "de")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if word.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if word.Surface != "Haus" {
		t.Errorf("Expected surface %q, got %q", "Haus", word.Surface)
	}

	if word.PartOfSpeech != "NOUN" {
		t.Errorf("Expected part of speech NOUN, got %s", word.PartOfSpeech)
	}

	if word.FrequencyRank != 120 {
		t.Errorf("Expected rank 120, got %d", word.FrequencyRank)
	}

	if word.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Test invalid surface
	_, err = NewWord("", "NOUN", 120, "de")
	if err != ErrWordSurfaceEmpty {
		t.Errorf("Expected error %v, got %v", ErrWordSurfaceEmpty, err)
	}

	// Test invalid part of speech
	_, err = NewWord("Haus", "", 120, "de")
	if err != ErrWordPOSEmpty {
		t.Errorf("Expected error %v, got %v", ErrWordPOSEmpty, err)
	}

	// Test invalid rank
	_, err = NewWord("Haus", "NOUN", 0, "de")
	if err != ErrWordRankInvalid {
		t.Errorf("Expected error %v, got %v", ErrWordRankInvalid, err)
	}

	// Test invalid language
	_, err = NewWord("Haus", "NOUN", 120, "")
	if err != ErrWordLanguageEmpty {
		t.Errorf("Expected error %v, got %v", ErrWordLanguageEmpty, err)
	}
}

func TestWordIDSet(t *testing.T) {
	t.Parallel() // Enable parallel execution
	a, _ := NewWord("Haus", "NOUN", 120, "de")
	b, _ := NewWord("Apfel", "NOUN", 310, "de")

	ids := WordIDSet([]*Word{a, b, a, b, a})

	if len(ids) != 2 {
		t.Fatalf("Expected 2 IDs, got %d", len(ids))
	}

	if ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("Expected first-appearance order [%s %s], got %v", a.ID, b.ID, ids)
	}
}
