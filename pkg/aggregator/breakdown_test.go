package aggregator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

func file(name, model string, start time.Time, tokens usage.TokenUsage) session.InteractionFile {
	return session.InteractionFile{
		FileName: name,
		ModelID:  model,
		Tokens:   tokens,
		TimeData: &session.TimeData{Created: start, Completed: start.Add(30 * time.Second)},
	}
}

func breakdownFixture() ([]session.SessionData, usage.PricingTable) {
	mon := date("2025-01-06T10:00")
	wed := date("2025-01-08T09:00")

	sessions := []session.SessionData{
		{
			SessionID:   "s1",
			ProjectName: "api",
			Files: []session.InteractionFile{
				file("1", "model-a", mon, usage.TokenUsage{Input: 1_000_000}),
				file("2", "model-a", mon.Add(time.Minute), usage.TokenUsage{Input: 1_000_000}),
				file("3", "model-b", mon.Add(2*time.Minute), usage.TokenUsage{Output: 500}),
			},
		},
		{
			SessionID:   "s2",
			ProjectName: "web",
			Files: []session.InteractionFile{
				file("1", "model-a", wed, usage.TokenUsage{Input: 500_000}),
				file("2", "", wed.Add(time.Minute), usage.TokenUsage{CacheRead: 40}),
			},
		},
		{SessionID: "empty", ProjectName: ""},
		{
			SessionID:   "untimed",
			ProjectName: "web",
			Files: []session.InteractionFile{
				{FileName: "1", ModelID: "model-c", Tokens: usage.TokenUsage{Input: 7}},
			},
		},
	}

	pricing := usage.PricingTable{
		"model-a": usage.PerMillion(decimal.NewFromInt(2), decimal.Zero, decimal.Zero, decimal.Zero),
	}

	return sessions, pricing
}

func TestModelBreakdown(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()

	report, err := ModelBreakdown(sessions, BreakdownOptions{Location: time.UTC, Pricing: pricing})
	require.NoError(t, err)

	ids := make([]string, 0, len(report.Models))
	for _, m := range report.Models {
		ids = append(ids, m.ModelID)
	}
	// model-a has cost; the rest are ranked by tokens, then id.
	assert.Equal(t, []string{"model-a", "model-b", usage.UnknownModel, "model-c"}, ids)

	a := report.Models[0]
	assert.Equal(t, 2, a.Sessions)
	assert.Equal(t, 3, a.Interactions)
	assert.Equal(t, int64(2_500_000), a.Tokens.Input)
	assert.True(t, decimal.NewFromInt(5).Equal(a.Cost), "cost = %s", a.Cost)
	assert.Equal(t, date("2025-01-06T10:00"), a.FirstSeen)
	assert.Equal(t, date("2025-01-08T09:00"), a.LastSeen)

	b := report.Models[1]
	assert.Equal(t, 1, b.Sessions)
	assert.Equal(t, 1, b.Interactions)
	assert.True(t, b.Cost.IsZero())

	c := report.Models[3]
	assert.True(t, c.FirstSeen.IsZero(), "untimed session has no activity bounds")

	assert.Equal(t, []string{"model-b", "model-c"}, report.UnpricedModels)
	assert.Equal(t, TimeframeAll, report.Timeframe)
}

func TestModelBreakdown_TotalsMatchFilteredSet(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()

	report, err := ModelBreakdown(sessions, BreakdownOptions{Location: time.UTC, Pricing: pricing})
	require.NoError(t, err)

	var tokens usage.TokenUsage
	var interactions, sessionRefs int
	cost := decimal.Zero
	for _, m := range report.Models {
		tokens = tokens.Add(m.Tokens)
		interactions += m.Interactions
		sessionRefs += m.Sessions
		cost = cost.Add(m.Cost)
	}

	var wantTokens usage.TokenUsage
	wantInteractions := 0
	for i := range sessions {
		wantTokens = wantTokens.Add(sessions[i].TotalTokens())
		wantInteractions += sessions[i].InteractionCount()
	}

	assert.Equal(t, wantTokens, tokens)
	assert.Equal(t, wantInteractions, interactions)
	assert.True(t, report.Totals.Cost.Equal(cost))

	// Overall totals count each session once; the per-model view counts a
	// session once per model it used.
	assert.Equal(t, len(sessions), report.Totals.Sessions)
	assert.Equal(t, wantTokens, report.Totals.Tokens)
	assert.Equal(t, wantInteractions, report.Totals.Interactions)
	assert.Equal(t, 5, sessionRefs)
}

func TestModelBreakdown_DateFilter(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()
	start := date("2025-01-07T00:00")

	report, err := ModelBreakdown(sessions, BreakdownOptions{
		Location:  time.UTC,
		Pricing:   pricing,
		StartDate: &start,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Totals.Sessions, "only s2 starts on or after the bound")
	require.Len(t, report.Models, 2)
	assert.Equal(t, "model-a", report.Models[0].ModelID)
	assert.Equal(t, 1, report.Models[0].Sessions)
	assert.Equal(t, usage.UnknownModel, report.Models[1].ModelID)
	assert.Equal(t, &start, report.StartDate)
}

func TestModelBreakdown_InclusiveBounds(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()
	day1 := date("2025-01-06T23:59")

	report, err := ModelBreakdown(sessions, BreakdownOptions{
		Location:  time.UTC,
		Pricing:   pricing,
		StartDate: &day1,
		EndDate:   &day1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Totals.Sessions)
	assert.Equal(t, 3, report.Totals.Interactions)
}

func TestModelBreakdown_Timeframe(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()

	tests := []struct {
		timeframe    Timeframe
		now          string
		wantSessions int
	}{
		{TimeframeAll, "2030-01-01T00:00", 4},
		{TimeframeDaily, "2025-01-08T18:00", 1},
		{TimeframeDaily, "2025-01-07T18:00", 0},
		{TimeframeWeekly, "2025-01-12T18:00", 2},
		{TimeframeWeekly, "2025-01-13T00:00", 0},
		{TimeframeMonthly, "2025-01-31T23:00", 2},
		{TimeframeMonthly, "2025-02-01T00:00", 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.timeframe)+"@"+tt.now, func(t *testing.T) {
			t.Parallel()

			report, err := ModelBreakdown(sessions, BreakdownOptions{
				Timeframe: tt.timeframe,
				Now:       date(tt.now),
				Location:  time.UTC,
				Pricing:   pricing,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSessions, report.Totals.Sessions)
		})
	}
}

func TestBreakdown_InvalidArguments(t *testing.T) {
	t.Parallel()

	start := date("2025-01-10T00:00")
	end := date("2025-01-09T00:00")

	_, err := ModelBreakdown(nil, BreakdownOptions{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = ProjectBreakdown(nil, BreakdownOptions{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = ModelBreakdown(nil, BreakdownOptions{Timeframe: "yearly"})
	assert.ErrorIs(t, err, ErrInvalidTimeframe)

	_, err = ProjectBreakdown(nil, BreakdownOptions{WeekStartDay: 9})
	assert.ErrorIs(t, err, ErrInvalidWeekStartDay)
}

func TestBreakdown_EmptyInput(t *testing.T) {
	t.Parallel()

	models, err := ModelBreakdown(nil, BreakdownOptions{})
	require.NoError(t, err)
	assert.Empty(t, models.Models)
	assert.Equal(t, 0, models.Totals.Sessions)
	assert.Empty(t, models.UnpricedModels)

	projects, err := ProjectBreakdown(nil, BreakdownOptions{})
	require.NoError(t, err)
	assert.Empty(t, projects.Projects)
}

func TestProjectBreakdown(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()

	report, err := ProjectBreakdown(sessions, BreakdownOptions{Location: time.UTC, Pricing: pricing})
	require.NoError(t, err)
	require.Len(t, report.Projects, 3)

	api := report.Projects[0]
	assert.Equal(t, "api", api.ProjectName)
	assert.Equal(t, 1, api.Sessions)
	assert.Equal(t, 3, api.Interactions)
	assert.True(t, decimal.NewFromInt(4).Equal(api.Cost))
	assert.Equal(t, []string{"model-a", "model-b"}, api.ModelsUsed)

	web := report.Projects[1]
	assert.Equal(t, "web", web.ProjectName)
	assert.Equal(t, 2, web.Sessions)
	assert.Equal(t, 3, web.Interactions)
	assert.True(t, decimal.NewFromInt(1).Equal(web.Cost))
	assert.Equal(t, []string{"model-a", "model-c"}, web.ModelsUsed)
	assert.Equal(t, date("2025-01-08T09:00"), web.FirstSeen)

	unknown := report.Projects[2]
	assert.Equal(t, UnknownProject, unknown.ProjectName)
	assert.Equal(t, 1, unknown.Sessions)
	assert.Equal(t, 0, unknown.Interactions)
}

func TestProjectBreakdown_GroupsAreLazy(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()
	start := date("2025-01-08T00:00")

	report, err := ProjectBreakdown(sessions, BreakdownOptions{
		Location:  time.UTC,
		Pricing:   pricing,
		StartDate: &start,
	})
	require.NoError(t, err)
	require.Len(t, report.Projects, 1)
	assert.Equal(t, "web", report.Projects[0].ProjectName)
}

func TestBreakdown_Deterministic(t *testing.T) {
	t.Parallel()

	sessions, pricing := breakdownFixture()
	opts := BreakdownOptions{Location: time.UTC, Pricing: pricing, Now: date("2025-01-08T12:00")}

	first, err := ModelBreakdown(sessions, opts)
	require.NoError(t, err)
	second, err := ModelBreakdown(sessions, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p1, err := ProjectBreakdown(sessions, opts)
	require.NoError(t, err)
	p2, err := ProjectBreakdown(sessions, opts)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestFilterByDate(t *testing.T) {
	t.Parallel()

	sessions, _ := breakdownFixture()
	end := date("2025-01-06T00:00")

	assert.Len(t, FilterByDate(sessions, nil, nil, time.UTC), 4)

	got := FilterByDate(sessions, nil, &end, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
}

func TestFilterByModels(t *testing.T) {
	t.Parallel()

	sessions, _ := breakdownFixture()

	assert.Len(t, FilterByModels(sessions, nil), 4)

	got := FilterByModels(sessions, []string{"model-b", "model-c"})
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "untimed", got[1].SessionID)
}

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Timeframe{
		"":        TimeframeAll,
		"all":     TimeframeAll,
		"Daily":   TimeframeDaily,
		"weekly":  TimeframeWeekly,
		"MONTHLY": TimeframeMonthly,
	} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseTimeframe("hourly")
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}
