package gemini

import "errors"

// Errors specific to the Gemini generator.
var (
	// ErrEmptyRequest is returned when a synthesis request has no template
	// text or no target words.
	ErrEmptyRequest = errors.New("synthesis request is incomplete")
)
