package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// MaxFileSize is the maximum allowed message file size (10MB).
	// Files larger than this will be rejected to prevent memory exhaustion.
	MaxFileSize = 10 * 1024 * 1024
)

// Parser provides methods for parsing OpenCode message files.
type Parser interface {
	// ParseFile reads and validates a single message file.
	//
	// Parameters:
	//   - path: Path to the message JSON file
	//
	// Returns:
	//   - Parsed message
	//   - ErrNotInteraction for messages without usage
	//   - *ParseError or *ValidationError for bad files
	//
	// Thread-safety: This method is safe to call concurrently with different files.
	ParseFile(path string) (*Message, error)

	// Parse decodes and validates message content.
	//
	// Thread-safety: This method is thread-safe.
	Parse(data []byte) (*Message, error)

	// ParseSessionInfo reads a session metadata file.
	ParseSessionInfo(path string) (*SessionInfo, error)
}

// jsonParser implements the Parser interface.
type jsonParser struct{}

// New creates a new Parser instance.
func New() Parser {
	return &jsonParser{}
}

// ParseFile implements Parser.ParseFile.
func (p *jsonParser) ParseFile(path string) (*Message, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}

	msg, err := p.Parse(data)
	if err != nil {
		return nil, withPath(err, path)
	}

	return msg, nil
}

// Parse implements Parser.Parse.
func (p *jsonParser) Parse(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("%w: empty file", ErrMalformedJSON)}
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &ParseError{Data: string(data), Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}

	// Validate the parsed message
	if err := msg.Validate(); err != nil {
		if err == ErrNotInteraction {
			return nil, err
		}
		return nil, &ValidationError{MessageID: msg.ID, Err: err}
	}

	return &msg, nil
}

// ParseSessionInfo implements Parser.ParseSessionInfo.
func (p *jsonParser) ParseSessionInfo(path string) (*SessionInfo, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &ParseError{Path: path, Data: string(data), Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}

	return &info, nil
}

func readLimited(path string) ([]byte, error) {
	// Check file size
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: size=%d, max=%d",
			ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	// #nosec G304: path is validated by caller
	data, err := os.ReadFile(filepath.Clean(path)) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func withPath(err error, path string) error {
	switch e := err.(type) {
	case *ParseError:
		e.Path = path
	case *ValidationError:
		e.Path = path
	}
	return err
}
