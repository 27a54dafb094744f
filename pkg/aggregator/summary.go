package aggregator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Summarize describes a session set as a whole, with per-session
// distribution statistics. An empty set yields a zero summary.
func Summarize(sessions []session.SessionData, pricing usage.PricingTable) SessionsSummary {
	items := summarizeAll(sessions, pricing)

	summary := SessionsSummary{
		TotalSessions: len(items),
		TotalCost:     decimal.Zero,
		Statistics:    Statistics{AvgCost: decimal.Zero},
	}

	models := make(map[string]struct{})
	counts := make([]int64, 0, len(items))

	var durationSum, durationCount int64
	for _, it := range items {
		summary.TotalInteractions += it.sum.InteractionCount
		summary.TotalTokens = summary.TotalTokens.Add(it.sum.TotalTokens)
		summary.TotalCost = summary.TotalCost.Add(it.cost)

		for _, m := range it.sum.ModelsUsed {
			models[m] = struct{}{}
		}

		if it.sum.HasStart() && (summary.EarliestStart.IsZero() || it.sum.StartTime.Before(summary.EarliestStart)) {
			summary.EarliestStart = it.sum.StartTime
		}
		if it.sum.HasEnd() && (summary.LatestEnd.IsZero() || it.sum.EndTime.After(summary.LatestEnd)) {
			summary.LatestEnd = it.sum.EndTime
		}

		if ms, ok := it.sum.DurationMs(); ok {
			durationSum += ms
			durationCount++
		}

		counts = append(counts, it.sum.TotalTokens.Total())
	}

	summary.ModelsUsed = sortedKeys(models)
	summary.UnpricedModels = pricing.Unpriced(summary.ModelsUsed)

	if len(items) == 0 {
		return summary
	}

	n := int64(len(items))
	stats := &summary.Statistics
	stats.AvgTokens = float64(summary.TotalTokens.Total()) / float64(n)
	stats.AvgInteractions = float64(summary.TotalInteractions) / float64(n)
	stats.AvgCost = summary.TotalCost.Div(decimal.NewFromInt(n))
	if durationCount > 0 {
		stats.AvgDurationMs = durationSum / durationCount
	}

	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	stats.MinTokens = counts[0]
	stats.MaxTokens = counts[len(counts)-1]
	stats.P50Tokens = percentile(counts, 50)
	stats.P95Tokens = percentile(counts, 95)

	return summary
}

// percentile calculates the nth percentile of a sorted slice.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between closest ranks.
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return int64(float64(sorted[lower])*(1-fraction) + float64(sorted[upper])*fraction)
}
