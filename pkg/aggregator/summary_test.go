package aggregator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()

	s := Summarize(sessions, pricing)

	assert.Equal(t, 4, s.TotalSessions)
	assert.Equal(t, 6, s.TotalInteractions)
	assert.Equal(t, usage.TokenUsage{Input: 2_500_007, Output: 500, CacheRead: 40}, s.TotalTokens)
	assert.True(t, decimal.NewFromInt(5).Equal(s.TotalCost))
	assert.Equal(t, []string{"model-a", "model-b", "model-c"}, s.ModelsUsed)
	assert.Equal(t, []string{"model-b", "model-c"}, s.UnpricedModels)
	assert.Equal(t, date("2025-01-06T10:00"), s.EarliestStart)

	stats := s.Statistics
	assert.InDelta(t, 1.5, stats.AvgInteractions, 1e-9)
	assert.True(t, decimal.RequireFromString("1.25").Equal(stats.AvgCost), "avg cost = %s", stats.AvgCost)
	assert.Equal(t, int64(0), stats.MinTokens)
	assert.Equal(t, int64(2_000_500), stats.MaxTokens)
	assert.Greater(t, stats.AvgDurationMs, int64(0))
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, nil)
	assert.Equal(t, 0, s.TotalSessions)
	assert.True(t, s.TotalCost.IsZero())
	assert.Empty(t, s.ModelsUsed)
	assert.True(t, s.EarliestStart.IsZero())
	assert.Zero(t, s.Statistics.AvgTokens)
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []int64{100, 150, 200, 250, 300}

	tests := []struct {
		p    int
		want int64
	}{
		{0, 100},
		{50, 200},
		{75, 250},
		{100, 300},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentile(sorted, tt.p), "p%d", tt.p)
	}

	assert.Equal(t, int64(0), percentile(nil, 50))
}

func TestSummarize_SingleSession(t *testing.T) {
	t.Parallel()

	s := Summarize([]session.SessionData{
		newSession("one", "p", "m", date("2025-05-05T05:00"), usage.TokenUsage{Input: 42}),
	}, nil)

	require.Equal(t, 1, s.TotalSessions)
	assert.Equal(t, int64(42), s.Statistics.P50Tokens)
	assert.Equal(t, int64(42), s.Statistics.P95Tokens)
	assert.Equal(t, int64(60_000), s.Statistics.AvgDurationMs)
	assert.Equal(t, []string{"m"}, s.UnpricedModels)
}
