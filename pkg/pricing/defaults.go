package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/usage"
)

// defaultRates are the built-in per-million rates, in USD.
var defaultRates = map[string]Rates{
	// Anthropic
	"claude-opus-4-5":            rates("5", "25", "6.25", "0.5", 200_000),
	"claude-opus-4-1":            rates("15", "75", "18.75", "1.5", 200_000),
	"claude-opus-4-20250514":     rates("15", "75", "18.75", "1.5", 200_000),
	"claude-sonnet-4-5":          rates("3", "15", "3.75", "0.3", 200_000),
	"claude-sonnet-4-5-20250929": rates("3", "15", "3.75", "0.3", 200_000),
	"claude-sonnet-4-20250514":   rates("3", "15", "3.75", "0.3", 200_000),
	"claude-3-7-sonnet-20250219": rates("3", "15", "3.75", "0.3", 200_000),
	"claude-3-5-sonnet-20241022": rates("3", "15", "3.75", "0.3", 200_000),
	"claude-3-5-haiku-20241022":  rates("0.8", "4", "1", "0.08", 200_000),
	"claude-haiku-4-5":           rates("1", "5", "1.25", "0.1", 200_000),

	// OpenAI
	"gpt-4o":      rates("2.5", "10", "0", "1.25", 128_000),
	"gpt-4o-mini": rates("0.15", "0.6", "0", "0.075", 128_000),
	"gpt-4.1":     rates("2", "8", "0", "0.5", 1_047_576),
	"o3":          rates("2", "8", "0", "0.5", 200_000),
	"gpt-5":       rates("1.25", "10", "0", "0.125", 400_000),

	// Google
	"gemini-2.5-pro":   rates("1.25", "10", "0", "0.31", 1_048_576),
	"gemini-2.5-flash": rates("0.3", "2.5", "0", "0.075", 1_048_576),
}

// Default returns the built-in pricing table.
//
// A fresh table is built on each call so callers may modify it.
func Default() usage.PricingTable {
	table := make(usage.PricingTable, len(defaultRates))
	for id, r := range defaultRates {
		table[id] = r.ModelPricing()
	}
	return table
}

func rates(input, output, cacheWrite, cacheRead string, contextWindow int64) Rates {
	return Rates{
		Input:         decimal.RequireFromString(input),
		Output:        decimal.RequireFromString(output),
		CacheWrite:    decimal.RequireFromString(cacheWrite),
		CacheRead:     decimal.RequireFromString(cacheRead),
		ContextWindow: contextWindow,
	}
}
