package dialogue

import "errors"

var (
	// ErrSessionState reports a session whose step is outside the transition table.
	ErrSessionState = errors.New("invalid session state")
	// ErrMalformedOutput reports backend summary text that is not the expected JSON object.
	// It is always recovered locally with a fallback summary.
	ErrMalformedOutput = errors.New("malformed backend output")
	// ErrEmptyMessage is returned when a turn carries no text.
	ErrEmptyMessage = errors.New("message is required")
)
