package domain

import "errors"

var (
	// ErrSubjectNotFound is returned when a subject has no questions in the source.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrNoQuestions indicates the question source is empty for a random or full-exam draw.
	ErrNoQuestions = errors.New("no questions available")
	// ErrSessionActive is returned when a chat already has a quiz session running.
	ErrSessionActive = errors.New("a quiz session is already running in this chat")
	// ErrInvalidQuestion indicates a question row could not be turned into a poll.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrDelivery wraps failures of the poll delivery channel.
	ErrDelivery = errors.New("poll delivery failed")
)
