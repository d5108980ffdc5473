package domain

import "errors"

var (
	// ErrUpstream signals a non-2xx or malformed response from an external
	// service (embedding provider, vector search backend, or completion API).
	ErrUpstream = errors.New("upstream service error")
	// ErrTimeout signals an external call that exceeded its bound.
	ErrTimeout = errors.New("upstream call timed out")
	// ErrValidation signals an invalid request or configuration value.
	ErrValidation = errors.New("validation failed")
	// ErrConversationNotFound signals a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrUnknownAgent signals an agent name outside the supported set.
	ErrUnknownAgent = errors.New("unknown agent")
)
