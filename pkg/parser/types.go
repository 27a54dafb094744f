// Package parser provides parsing for OpenCode message files. Each file
// under a session directory holds one message; assistant messages carry
// the token usage of one interaction.
//
// The parser is strict about a single file and leaves the policy for bad
// files to the caller: the reader logs and skips them so one corrupt
// message never fails a whole session.
//
// Example usage:
//
//	p := parser.New()
//	msg, err := p.ParseFile("/path/to/ses_abc/msg_001.json")
//	if errors.Is(err, parser.ErrNotInteraction) {
//	    return nil // user message, no usage
//	}
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Tokens: %d\n", msg.Usage().Total())
package parser

import (
	"path/filepath"
	"time"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// RoleAssistant is the role of messages that carry token usage.
const RoleAssistant = "assistant"

// Message is a single OpenCode message file.
//
// Invariant: Role is RoleAssistant for every message returned without
// error by the parser.
// Invariant: Tokens counts are non-negative.
type Message struct {
	ID         string  `json:"id"`
	Role       string  `json:"role"`
	SessionID  string  `json:"sessionID"`
	ModelID    string  `json:"modelID"`
	ProviderID string  `json:"providerID"`
	Tokens     Tokens  `json:"tokens"`
	Time       *Time   `json:"time,omitempty"`
	Path       *Path   `json:"path,omitempty"`
	Cost       float64 `json:"cost"`
}

// Tokens contains the token counters of one message.
//
// Token types:
// - Input: regular prompt tokens
// - Output: generated tokens
// - Reasoning: generated reasoning tokens, billed as output
// - Cache.Write: tokens written to the prompt cache
// - Cache.Read: tokens served from the prompt cache
type Tokens struct {
	Input     int64 `json:"input"`
	Output    int64 `json:"output"`
	Reasoning int64 `json:"reasoning"`
	Cache     Cache `json:"cache"`
}

// Cache contains prompt cache counters.
type Cache struct {
	Read  int64 `json:"read"`
	Write int64 `json:"write"`
}

// Time holds epoch-millisecond timestamps. Zero means not recorded.
type Time struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
}

// Path holds the working directories of the message.
type Path struct {
	Cwd  string `json:"cwd"`
	Root string `json:"root"`
}

// SessionInfo is the optional per-session metadata file.
type SessionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Usage returns the message tokens with reasoning folded into output.
func (m *Message) Usage() usage.TokenUsage {
	return usage.TokenUsage{
		Input:      m.Tokens.Input,
		Output:     m.Tokens.Output + m.Tokens.Reasoning,
		CacheWrite: m.Tokens.Cache.Write,
		CacheRead:  m.Tokens.Cache.Read,
	}
}

// ProjectName returns the base name of the project root, falling back to
// the working directory. Empty if neither was recorded.
func (m *Message) ProjectName() string {
	if m.Path == nil {
		return ""
	}
	for _, dir := range []string{m.Path.Root, m.Path.Cwd} {
		if dir == "" || dir == "/" || dir == "." {
			continue
		}
		return filepath.Base(filepath.Clean(dir))
	}
	return ""
}

// Interaction converts the message into the interaction record of fileName.
func (m *Message) Interaction(fileName string) session.InteractionFile {
	f := session.InteractionFile{
		FileName: fileName,
		ModelID:  m.ModelID,
		Tokens:   m.Usage(),
	}
	if m.Time != nil {
		f.TimeData = &session.TimeData{
			Created:   fromMillis(m.Time.Created),
			Completed: fromMillis(m.Time.Completed),
		}
	}
	return f
}

// Validate checks if the message satisfies all invariants.
//
// Returns an error if:
//   - Role is not assistant (ErrNotInteraction)
//   - Any token count is negative
//
// Timing anomalies are not rejected here; they are reported by the health
// validator.
//
// Thread-safety: This method is read-only and thread-safe.
func (m *Message) Validate() error {
	if m.Role != RoleAssistant {
		return ErrNotInteraction
	}

	t := m.Tokens
	for _, n := range []int64{t.Input, t.Output, t.Reasoning, t.Cache.Read, t.Cache.Write} {
		if n < 0 {
			return ErrNegativeTokenCount
		}
	}

	return nil
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
