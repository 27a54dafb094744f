// Package usage provides the token and cost model shared by every
// analytics component.
//
// Token counts are plain additive integers. Money is carried as
// decimal.Decimal so repeated summation never drifts; rounding to a
// display precision is left to the presentation layer.
//
// Example usage:
//
//	table := usage.PricingTable{
//	    "claude-sonnet-4": usage.PerMillion(
//	        decimal.NewFromInt(3), decimal.NewFromInt(15),
//	        decimal.RequireFromString("3.75"), decimal.RequireFromString("0.30"),
//	    ),
//	}
//	cost, priced := table.Cost("claude-sonnet-4", usage.TokenUsage{Input: 1000})
package usage

import (
	"github.com/shopspring/decimal"
)

// UnknownModel is the model id assigned to interactions that did not
// record one. It is expected to be unpriced and is never reported as a
// pricing gap.
const UnknownModel = "unknown"

// TokenUsage holds the four token counters of one or more interactions.
//
// Invariant: no field is negative. The zero value means "no usage",
// never "unknown".
type TokenUsage struct {
	// Input is the number of regular prompt tokens.
	Input int64 `json:"input" yaml:"input"`

	// Output is the number of generated tokens (reasoning included).
	Output int64 `json:"output" yaml:"output"`

	// CacheWrite is the number of tokens written to the prompt cache.
	CacheWrite int64 `json:"cache_write" yaml:"cache_write"`

	// CacheRead is the number of tokens served from the prompt cache.
	CacheRead int64 `json:"cache_read" yaml:"cache_read"`
}

// Total returns the sum of all four counters.
func (t TokenUsage) Total() int64 {
	return t.Input + t.Output + t.CacheWrite + t.CacheRead
}

// Add returns the field-wise sum of t and other.
func (t TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		Input:      t.Input + other.Input,
		Output:     t.Output + other.Output,
		CacheWrite: t.CacheWrite + other.CacheWrite,
		CacheRead:  t.CacheRead + other.CacheRead,
	}
}

// Sub returns the field-wise difference t - other. The result may be
// negative; it describes a change, not a usage.
func (t TokenUsage) Sub(other TokenUsage) TokenUsage {
	return TokenUsage{
		Input:      t.Input - other.Input,
		Output:     t.Output - other.Output,
		CacheWrite: t.CacheWrite - other.CacheWrite,
		CacheRead:  t.CacheRead - other.CacheRead,
	}
}

// IsZero reports whether no tokens were recorded.
func (t TokenUsage) IsZero() bool {
	return t == TokenUsage{}
}

// Validate checks that every counter is non-negative.
func (t TokenUsage) Validate() error {
	if t.Input < 0 || t.Output < 0 || t.CacheWrite < 0 || t.CacheRead < 0 {
		return ErrNegativeTokens
	}
	return nil
}

// Sum folds a list of usages into one.
func Sum(usages ...TokenUsage) TokenUsage {
	var total TokenUsage
	for _, u := range usages {
		total = total.Add(u)
	}
	return total
}

// ModelPricing holds per-token rates for a single model.
//
// Each rate is currency per token and applies to the TokenUsage field of
// the same name.
type ModelPricing struct {
	Input      decimal.Decimal `json:"input"`
	Output     decimal.Decimal `json:"output"`
	CacheWrite decimal.Decimal `json:"cache_write"`
	CacheRead  decimal.Decimal `json:"cache_read"`

	// ContextWindow is the model's context size in tokens, 0 if unknown.
	ContextWindow int64 `json:"context_window,omitempty"`

	// SessionQuota is an optional spend budget per session, zero if unset.
	SessionQuota decimal.Decimal `json:"session_quota"`
}

// PricingTable maps model ids to their pricing.
type PricingTable map[string]ModelPricing
