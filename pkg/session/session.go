package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Summarize computes every derived value of the session in a single pass
// over its files. A session with no files yields a zero Summary.
func (s *SessionData) Summarize() Summary {
	sum := Summary{
		InteractionCount:  len(s.Files),
		ModelTokens:       make(map[string]usage.TokenUsage),
		ModelInteractions: make(map[string]int),
	}

	for _, f := range s.Files {
		sum.TotalTokens = sum.TotalTokens.Add(f.Tokens)

		key := modelKey(f.ModelID)
		sum.ModelTokens[key] = sum.ModelTokens[key].Add(f.Tokens)
		sum.ModelInteractions[key]++

		if f.Tokens.Total() == 0 {
			sum.ZeroTokenInteractions++
		}

		if f.TimeData == nil {
			sum.MissingTimeData++
			continue
		}

		// Partial timing contributes tokens only.
		td := f.TimeData
		ms, ok := td.DurationMs()
		if !ok {
			continue
		}
		sum.TotalProcessingTimeMs += ms
		if sum.StartTime.IsZero() || td.Created.Before(sum.StartTime) {
			sum.StartTime = td.Created
		}
		if sum.EndTime.IsZero() || td.Completed.After(sum.EndTime) {
			sum.EndTime = td.Completed
		}
	}

	sum.ModelsUsed = modelsUsed(s.Files)
	return sum
}

// TotalTokens returns the sum of tokens over all files.
func (s *SessionData) TotalTokens() usage.TokenUsage {
	var total usage.TokenUsage
	for _, f := range s.Files {
		total = total.Add(f.Tokens)
	}
	return total
}

// InteractionCount returns the number of interaction files.
func (s *SessionData) InteractionCount() int {
	return len(s.Files)
}

// ModelsUsed returns the sorted set of distinct, non-empty model ids.
func (s *SessionData) ModelsUsed() []string {
	return modelsUsed(s.Files)
}

// StartTime returns the earliest recorded creation time.
func (s *SessionData) StartTime() (time.Time, bool) {
	sum := s.Summarize()
	return sum.StartTime, sum.HasStart()
}

// EndTime returns the latest recorded completion time.
func (s *SessionData) EndTime() (time.Time, bool) {
	sum := s.Summarize()
	return sum.EndTime, sum.HasEnd()
}

// DurationMs returns the session duration when both bounds are known.
func (s *SessionData) DurationMs() (int64, bool) {
	sum := s.Summarize()
	return sum.DurationMs()
}

// TotalProcessingTimeMs returns the sum of known per-file durations.
func (s *SessionData) TotalProcessingTimeMs() int64 {
	var total int64
	for _, f := range s.Files {
		if ms, ok := f.DurationMs(); ok {
			total += ms
		}
	}
	return total
}

// Cost returns the session cost under pricing. Unpriced models contribute
// zero.
func (s *SessionData) Cost(pricing usage.PricingTable) decimal.Decimal {
	total := decimal.Zero
	for _, f := range s.Files {
		total = total.Add(usage.Cost(f.Tokens, pricing.Lookup(f.ModelID)))
	}
	return total
}

// ModelCosts returns the cost per model id, keyed like Summary.ModelTokens.
func (s *SessionData) ModelCosts(pricing usage.PricingTable) map[string]decimal.Decimal {
	costs := make(map[string]decimal.Decimal)
	for _, f := range s.Files {
		key := modelKey(f.ModelID)
		cost, ok := costs[key]
		if !ok {
			cost = decimal.Zero
		}
		costs[key] = cost.Add(usage.Cost(f.Tokens, pricing.Lookup(f.ModelID)))
	}
	return costs
}

// UsesModel reports whether any interaction used one of modelIDs.
func (s *SessionData) UsesModel(modelIDs ...string) bool {
	return lo.SomeBy(s.Files, func(f InteractionFile) bool {
		return lo.Contains(modelIDs, f.ModelID)
	})
}

func modelsUsed(files []InteractionFile) []string {
	ids := lo.Uniq(lo.FilterMap(files, func(f InteractionFile, _ int) (string, bool) {
		return f.ModelID, f.ModelID != ""
	}))
	sort.Strings(ids)
	return ids
}

func modelKey(modelID string) string {
	if modelID == "" {
		return usage.UnknownModel
	}
	return modelID
}

// Validate checks the structural invariants of the loaded data: a
// non-empty id and file names unique within the session.
func (s *SessionData) Validate() error {
	if s.SessionID == "" {
		return ErrEmptySessionID
	}

	seen := make(map[string]struct{}, len(s.Files))
	for _, f := range s.Files {
		if _, dup := seen[f.FileName]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFile, f.FileName)
		}
		seen[f.FileName] = struct{}{}
	}
	return nil
}
