// Package coach produces leadership reports and chat answers through a
// text-generation provider, and offers the HTTP client the widget uses to
// reach them.
package coach

import "errors"

// GenerationError wraps every failure to obtain generated text. Message is
// safe to show to end users; Cause is for logs.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError returns a GenerationError with a user-facing message.
func NewGenerationError(message string, cause error) *GenerationError {
	return &GenerationError{Message: message, Cause: cause}
}

// GenerationMessage returns the user-facing message carried by err, or a
// generic one when err is not a GenerationError.
func GenerationMessage(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Message != "" {
		return genErr.Message
	}
	return "unexpected error"
}
