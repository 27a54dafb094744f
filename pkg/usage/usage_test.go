package usage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenUsage_Total(t *testing.T) {
	t.Parallel()

	u := TokenUsage{Input: 100, Output: 50, CacheWrite: 20, CacheRead: 5}
	assert.Equal(t, int64(175), u.Total())
	assert.Equal(t, int64(0), TokenUsage{}.Total())
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	samples := []TokenUsage{
		{},
		{Input: 1},
		{Input: 100, Output: 50},
		{Input: 3, Output: 7, CacheWrite: 11, CacheRead: 13},
		{CacheRead: 1_000_000},
	}

	for _, a := range samples {
		for _, b := range samples {
			assert.Equal(t, a.Total()+b.Total(), a.Add(b).Total(), "total is additive")
			assert.Equal(t, a.Add(b), b.Add(a), "add is commutative")

			for _, c := range samples {
				assert.Equal(t, a.Add(b).Add(c), a.Add(b.Add(c)), "add is associative")
			}
		}
	}
}

func TestSum(t *testing.T) {
	t.Parallel()

	got := Sum(TokenUsage{Input: 1}, TokenUsage{Output: 2}, TokenUsage{CacheRead: 3})
	assert.Equal(t, TokenUsage{Input: 1, Output: 2, CacheRead: 3}, got)
	assert.True(t, Sum().IsZero())
}

func TestTokenUsage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		usage   TokenUsage
		wantErr bool
	}{
		{"zero", TokenUsage{}, false},
		{"positive", TokenUsage{Input: 1, Output: 2, CacheWrite: 3, CacheRead: 4}, false},
		{"negative input", TokenUsage{Input: -1}, true},
		{"negative cache read", TokenUsage{CacheRead: -5}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.usage.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNegativeTokens)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCost(t *testing.T) {
	t.Parallel()

	pricing := PerMillion(
		decimal.RequireFromString("3"),
		decimal.RequireFromString("15"),
		decimal.RequireFromString("3.75"),
		decimal.RequireFromString("0.30"),
	)

	tokens := TokenUsage{Input: 1_000_000, Output: 100_000, CacheWrite: 10_000, CacheRead: 1_000_000}

	// 3 + 1.5 + 0.0375 + 0.3
	want := decimal.RequireFromString("4.8375")
	got := Cost(tokens, &pricing)
	assert.True(t, want.Equal(got), "Cost() = %s, want %s", got, want)
}

func TestCost_NilPricingIsZero(t *testing.T) {
	t.Parallel()

	got := Cost(TokenUsage{Input: 500, Output: 500}, nil)
	assert.True(t, got.IsZero())
}

func TestCost_RepeatedSummationIsExact(t *testing.T) {
	t.Parallel()

	pricing := PerMillion(
		decimal.RequireFromString("0.1"),
		decimal.Zero,
		decimal.Zero,
		decimal.Zero,
	)

	total := decimal.Zero
	for i := 0; i < 10_000; i++ {
		total = total.Add(Cost(TokenUsage{Input: 1}, &pricing))
	}

	assert.True(t, decimal.RequireFromString("0.001").Equal(total), "total = %s", total)
}

func TestPricingTable(t *testing.T) {
	t.Parallel()

	table := PricingTable{
		"model-a": PerMillion(decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.Zero, decimal.Zero),
	}

	require.NotNil(t, table.Lookup("model-a"))
	assert.Nil(t, table.Lookup("model-b"))
	assert.Nil(t, PricingTable(nil).Lookup("model-a"))

	cost, priced := table.Cost("model-a", TokenUsage{Input: 1_000_000})
	assert.True(t, priced)
	assert.True(t, decimal.NewFromInt(1).Equal(cost))

	cost, priced = table.Cost("model-b", TokenUsage{Input: 1_000_000})
	assert.False(t, priced)
	assert.True(t, cost.IsZero())

	assert.Equal(t, []string{"model-a"}, table.Models())
}

func TestPricingTable_Unpriced(t *testing.T) {
	t.Parallel()

	table := PricingTable{"known": {}}

	got := table.Unpriced([]string{"zeta", "known", "", UnknownModel, "alpha", "zeta"})
	assert.Equal(t, []string{"alpha", "zeta"}, got)
	assert.Empty(t, table.Unpriced(nil))
}
