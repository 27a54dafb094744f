// Package session provides the session data model and the session
// aggregator that derives per-session totals from interaction files.
//
// A SessionData stores only what was loaded from disk. Every derived
// value (totals, model set, time bounds, durations) is computed on demand
// by Summarize in a single pass and is never stored redundantly.
//
// Example usage:
//
//	s := session.SessionData{
//	    SessionID:   "ses_abc",
//	    ProjectName: "api",
//	    Files:       files,
//	}
//	sum := s.Summarize()
//	fmt.Printf("Tokens: %d in %d interactions\n", sum.TotalTokens.Total(), sum.InteractionCount)
package session

import (
	"time"

	"github.com/0xmhha/session-monitor/pkg/usage"
)

// TimeData holds the timing of a single interaction.
//
// A zero Created or Completed means the value was not recorded.
type TimeData struct {
	Created   time.Time `json:"created"`
	Completed time.Time `json:"completed"`
}

// DurationMs returns Completed - Created in milliseconds.
//
// The second result is false if either timestamp is missing.
func (t TimeData) DurationMs() (int64, bool) {
	if t.Created.IsZero() || t.Completed.IsZero() {
		return 0, false
	}
	return t.Completed.Sub(t.Created).Milliseconds(), true
}

// InteractionFile is one logged request/response exchange.
//
// Invariant: immutable once loaded.
type InteractionFile struct {
	// FileName is unique within a session.
	FileName string `json:"file_name"`

	// ModelID identifies the model, possibly empty or usage.UnknownModel.
	ModelID string `json:"model_id"`

	// Tokens is the usage recorded for the exchange.
	Tokens usage.TokenUsage `json:"tokens"`

	// TimeData is nil when the exchange carried no timing block.
	TimeData *TimeData `json:"time_data,omitempty"`
}

// DurationMs returns the interaction duration when it is known.
func (f InteractionFile) DurationMs() (int64, bool) {
	if f.TimeData == nil {
		return 0, false
	}
	return f.TimeData.DurationMs()
}

// SessionData is an ordered collection of interactions sharing an id,
// title and project. Files are kept in discovery order, which is not
// necessarily chronological.
type SessionData struct {
	SessionID    string            `json:"session_id"`
	SessionTitle string            `json:"session_title"`
	ProjectName  string            `json:"project_name"`
	Files        []InteractionFile `json:"files"`
}

// Summary holds every value derived from a session's files.
type Summary struct {
	// TotalTokens is the sum over all files.
	TotalTokens usage.TokenUsage

	// InteractionCount is the number of files.
	InteractionCount int

	// ModelsUsed is the sorted set of distinct, non-empty model ids.
	ModelsUsed []string

	// StartTime is the earliest Created among files with both timestamps,
	// zero if none.
	StartTime time.Time

	// EndTime is the latest Completed among files with both timestamps,
	// zero if none.
	EndTime time.Time

	// TotalProcessingTimeMs is the sum of known per-file durations.
	TotalProcessingTimeMs int64

	// ModelTokens is the token total per model id. Files with an empty
	// model id are recorded under usage.UnknownModel.
	ModelTokens map[string]usage.TokenUsage

	// ModelInteractions is the file count per model id, keyed like
	// ModelTokens.
	ModelInteractions map[string]int

	// ZeroTokenInteractions counts files that recorded no tokens.
	ZeroTokenInteractions int

	// MissingTimeData counts files without a timing block.
	MissingTimeData int
}

// HasStart reports whether the session has a start time.
func (s Summary) HasStart() bool {
	return !s.StartTime.IsZero()
}

// HasEnd reports whether the session has an end time.
func (s Summary) HasEnd() bool {
	return !s.EndTime.IsZero()
}

// DurationMs returns EndTime - StartTime in milliseconds when both exist.
func (s Summary) DurationMs() (int64, bool) {
	if !s.HasStart() || !s.HasEnd() {
		return 0, false
	}
	return s.EndTime.Sub(s.StartTime).Milliseconds(), true
}
