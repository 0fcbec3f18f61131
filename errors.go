package activitypg

import "errors"

// Common errors
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("activitypg: invalid configuration")

	// ErrClientNotStarted is returned when calling methods before Start()
	ErrClientNotStarted = errors.New("activitypg: client not started")

	// ErrClientAlreadyStarted is returned when Start() is called twice
	ErrClientAlreadyStarted = errors.New("activitypg: client already started")
)
