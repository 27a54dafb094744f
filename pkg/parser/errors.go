package parser

import (
	"errors"

	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Common errors returned by the parser package.
var (
	// ErrNotInteraction is returned for messages that carry no usage, such
	// as user messages. Callers skip these silently.
	ErrNotInteraction = errors.New("message is not an assistant interaction")

	// ErrNegativeTokenCount is returned when any token count is negative.
	ErrNegativeTokenCount = usage.ErrNegativeTokens

	// ErrMalformedJSON is returned when a message file cannot be decoded.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrFileTooLarge is returned when a file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)

// ParseError provides context about a parsing failure.
type ParseError struct {
	Path string // File being parsed
	Data string // The malformed content (truncated if too long)
	Err  error  // Underlying error
}

func (e *ParseError) Error() string {
	maxLen := 100
	data := e.Data
	if len(data) > maxLen {
		data = data[:maxLen] + "..."
	}
	return formatError("parse error", e.Path, data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError provides context about a validation failure.
type ValidationError struct {
	Path      string // File being validated
	MessageID string // Message ID being validated
	Err       error  // Underlying error
}

func (e *ValidationError) Error() string {
	return formatError("validation error", e.Path, e.MessageID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// formatError creates a consistent error message format.
func formatError(prefix, path, context string, err error) string {
	msg := prefix
	if path != "" {
		msg += " in " + path
	}
	if context != "" {
		msg += ": " + context
	}
	return msg + ": " + err.Error()
}
