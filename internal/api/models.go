package api

import "time"

// Common request/response structures

// CreateUserRequest defines the payload for the user registration endpoint.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=20"`
}

// UserResponse represents the response data for a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitAnswerRequest defines the payload for answering a lesson's current
// task. SequenceNumber and TaskID pin the submission to one slot so retried
// requests cannot be graded twice.
type SubmitAnswerRequest struct {
	SequenceNumber int    `json:"sequence_number" validate:"required,min=1"`
	TaskID         string `json:"task_id"         validate:"required,uuid"`
	Response       string `json:"response"        validate:"required,min=1"`
}
