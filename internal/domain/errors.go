package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidScore is returned when a mastery or entry score falls
	// outside the [MinScore, MaxScore] range.
	ErrInvalidScore = errors.New("score out of range")

	// ErrInvalidTaskType is returned when a task type is not one of the
	// known variants.
	ErrInvalidTaskType = errors.New("invalid task type")
)
