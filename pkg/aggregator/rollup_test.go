package aggregator

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

const day = "2006-01-02"

func date(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// newSession returns a session with one interaction starting at start.
func newSession(id, project, model string, start time.Time, tokens usage.TokenUsage) session.SessionData {
	return session.SessionData{
		SessionID:   id,
		ProjectName: project,
		Files: []session.InteractionFile{{
			FileName: id + "_msg.json",
			ModelID:  model,
			Tokens:   tokens,
			TimeData: &session.TimeData{Created: start, Completed: start.Add(time.Minute)},
		}},
	}
}

func utc() Options {
	return Options{Location: time.UTC}
}

func TestDaily_ExampleScenario(t *testing.T) {
	t.Parallel()

	sessions := []session.SessionData{
		newSession("s1", "api", "model-a", date("2025-01-06T10:00"), usage.TokenUsage{Input: 100, Output: 50}),
		newSession("s2", "api", "model-a", date("2025-01-06T15:00"), usage.TokenUsage{Input: 30, Output: 10}),
	}

	days, err := Daily(sessions, utc())
	require.NoError(t, err)
	require.Len(t, days, 1)

	d := days[0]
	assert.Equal(t, "2025-01-06", d.Date.Format(day))
	assert.Equal(t, 2, d.TotalInteractions)
	assert.Equal(t, 2, d.TotalSessions)
	assert.Equal(t, int64(130), d.TotalTokens.Input)
	assert.Equal(t, int64(60), d.TotalTokens.Output)
	assert.Equal(t, []string{"model-a"}, d.ModelsUsed)

	weeks, err := Weekly(sessions, utc())
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	assert.Equal(t, "2025-01-06", weeks[0].StartDate.Format(day))
	assert.Equal(t, "2025-01-12", weeks[0].EndDate.Format(day))
	assert.Equal(t, 2, weeks[0].TotalInteractions)
	assert.Equal(t, 2025, weeks[0].Year)
	assert.Equal(t, 2, weeks[0].Week)
}

func TestRollup_EmptyInput(t *testing.T) {
	t.Parallel()

	r, err := Build(nil, utc())
	require.NoError(t, err)
	assert.Empty(t, r.Daily)
	assert.Empty(t, r.Weekly)
	assert.Empty(t, r.Monthly)
	assert.Equal(t, 0, r.TotalSessions)
	assert.Equal(t, 0, r.SkippedSessions)
}

func TestRollup_InvalidWeekStartDay(t *testing.T) {
	t.Parallel()

	for _, d := range []Weekday{-1, 7} {
		_, err := Weekly(nil, Options{WeekStartDay: d})
		assert.ErrorIs(t, err, ErrInvalidWeekStartDay)

		_, err = Build(nil, Options{WeekStartDay: d})
		assert.ErrorIs(t, err, ErrInvalidWeekStartDay)
	}
}

func TestBuild_SkipsSessionsWithoutStart(t *testing.T) {
	t.Parallel()

	sessions := []session.SessionData{
		newSession("s1", "api", "model-a", date("2025-01-06T10:00"), usage.TokenUsage{Input: 10}),
		{SessionID: "untimed", Files: []session.InteractionFile{{FileName: "a", Tokens: usage.TokenUsage{Input: 99}}}},
		{SessionID: "empty"},
	}

	r, err := Build(sessions, utc())
	require.NoError(t, err)
	assert.Equal(t, 3, r.TotalSessions)
	assert.Equal(t, 2, r.SkippedSessions)

	require.Len(t, r.Daily, 1)
	assert.Equal(t, int64(10), r.Daily[0].TotalTokens.Total())
	assert.Equal(t, 1, r.Daily[0].TotalSessions)
}

// spread returns one session per day for n days starting at first, with
// token totals that differ per day.
func spread(first time.Time, n int) []session.SessionData {
	sessions := make([]session.SessionData, 0, n)
	for i := 0; i < n; i++ {
		start := first.AddDate(0, 0, i).Add(time.Duration(i%5) * time.Hour)
		sessions = append(sessions, newSession(
			fmt.Sprintf("s%02d", i), "p", "model-a", start,
			usage.TokenUsage{Input: int64(i + 1), Output: int64(2 * i)},
		))
	}
	return sessions
}

func TestDaily_PartialTimingDoesNotMoveBucket(t *testing.T) {
	t.Parallel()

	s := newSession("s1", "api", "model-a", date("2025-01-06T10:00"), usage.TokenUsage{Input: 100})
	s.Files = append(s.Files, session.InteractionFile{
		FileName: "s1_early.json",
		ModelID:  "model-a",
		Tokens:   usage.TokenUsage{Input: 40},
		TimeData: &session.TimeData{Created: date("2025-01-04T10:00")},
	})

	days, err := Daily([]session.SessionData{s}, utc())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-01-06", days[0].Date.Format(day))
	assert.Equal(t, 2, days[0].TotalInteractions)
	assert.Equal(t, int64(140), days[0].TotalTokens.Input)
}

func TestWeekly_IsPartitionOfDaily(t *testing.T) {
	t.Parallel()

	sessions := spread(date("2024-12-20T08:00"), 75)

	days, err := Daily(sessions, utc())
	require.NoError(t, err)

	var dailyTotal usage.TokenUsage
	for _, d := range days {
		dailyTotal = dailyTotal.Add(d.TotalTokens)
	}

	for start := Monday; start <= Sunday; start++ {
		start := start
		t.Run(start.String(), func(t *testing.T) {
			t.Parallel()

			weeks, err := Weekly(sessions, Options{Location: time.UTC, WeekStartDay: start})
			require.NoError(t, err)

			seen := make(map[string]int)
			var weeklyTotal usage.TokenUsage
			for i, w := range weeks {
				assert.Equal(t, start, WeekdayOf(w.StartDate), "week starts on configured day")
				assert.Equal(t, 6*24*time.Hour, w.EndDate.Sub(w.StartDate))
				if i > 0 {
					assert.True(t, weeks[i-1].StartDate.Before(w.StartDate), "weeks ascending")
				}

				var daysTotal usage.TokenUsage
				for _, d := range w.Days {
					seen[d.Date.Format(day)]++
					assert.False(t, d.Date.Before(w.StartDate))
					assert.False(t, d.Date.After(w.EndDate))
					daysTotal = daysTotal.Add(d.TotalTokens)
				}
				assert.Equal(t, daysTotal, w.TotalTokens)
				weeklyTotal = weeklyTotal.Add(w.TotalTokens)
			}

			assert.Len(t, seen, len(days))
			for key, n := range seen {
				assert.Equal(t, 1, n, "day %s in exactly one week", key)
			}
			assert.Equal(t, dailyTotal, weeklyTotal)
		})
	}
}

func TestWeekly_StartDayDoesNotChangeSessionSet(t *testing.T) {
	t.Parallel()

	sessions := spread(date("2025-02-20T23:00"), 40)

	ids := func(weeks []WeeklyUsage) []string {
		out := make([]string, 0)
		for _, w := range weeks {
			for _, s := range w.Sessions {
				out = append(out, s.SessionID)
			}
		}
		sort.Strings(out)
		return out
	}

	base, err := Weekly(sessions, utc())
	require.NoError(t, err)
	want := ids(base)
	assert.Len(t, want, len(sessions))

	for start := Tuesday; start <= Sunday; start++ {
		weeks, err := Weekly(sessions, Options{Location: time.UTC, WeekStartDay: start})
		require.NoError(t, err)
		assert.Equal(t, want, ids(weeks), "start day %s", start)
	}
}

func TestRollup_MonthBoundaryWeek(t *testing.T) {
	t.Parallel()

	pricing := usage.PricingTable{
		"model-a": usage.PerMillion(decimal.NewFromInt(1), decimal.Zero, decimal.Zero, decimal.Zero),
	}

	sessions := []session.SessionData{
		newSession("jan", "p", "model-a", date("2025-01-30T12:00"), usage.TokenUsage{Input: 1_000_000}),
		newSession("feb", "p", "model-a", date("2025-02-02T12:00"), usage.TokenUsage{Input: 3_000_000}),
	}

	r, err := Build(sessions, Options{Location: time.UTC, Pricing: pricing})
	require.NoError(t, err)

	// One week spanning both months, reported under its start date.
	require.Len(t, r.Weekly, 1)
	assert.Equal(t, "2025-01-27", r.Weekly[0].StartDate.Format(day))
	assert.Equal(t, "2025-02-02", r.Weekly[0].EndDate.Format(day))
	assert.Equal(t, int64(4_000_000), r.Weekly[0].TotalTokens.Input)

	// Months are attributed per session, not per week.
	require.Len(t, r.Monthly, 2)
	assert.Equal(t, time.January, r.Monthly[0].Month)
	assert.Equal(t, int64(1_000_000), r.Monthly[0].TotalTokens.Input)
	assert.True(t, decimal.NewFromInt(1).Equal(r.Monthly[0].TotalCost))
	assert.Equal(t, time.February, r.Monthly[1].Month)
	assert.Equal(t, int64(3_000_000), r.Monthly[1].TotalTokens.Input)
	assert.True(t, decimal.NewFromInt(3).Equal(r.Monthly[1].TotalCost))
}

func TestRollup_YearBoundary(t *testing.T) {
	t.Parallel()

	sessions := []session.SessionData{
		newSession("a", "p", "m", date("2024-12-31T09:00"), usage.TokenUsage{Input: 1}),
		newSession("b", "p", "m", date("2025-01-01T09:00"), usage.TokenUsage{Input: 2}),
	}

	r, err := Build(sessions, utc())
	require.NoError(t, err)

	require.Len(t, r.Weekly, 1)
	assert.Equal(t, "2024-12-30", r.Weekly[0].StartDate.Format(day))
	assert.Equal(t, 2025, r.Weekly[0].Year)
	assert.Equal(t, 1, r.Weekly[0].Week)

	require.Len(t, r.Monthly, 2)
	assert.Equal(t, 2024, r.Monthly[0].Year)
	assert.Equal(t, 2025, r.Monthly[1].Year)
}

func TestWeekly_LabelFollowsWindowMidpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		date     string
		start    Weekday
		wantYear int
		wantWeek int
	}{
		{"monday start", "2025-01-06T10:00", Monday, 2025, 2},
		{"sunday start across new year", "2027-01-05T10:00", Sunday, 2027, 1},
		{"sunday start late december", "2026-12-29T10:00", Sunday, 2026, 53},
		{"wednesday start", "2025-01-02T10:00", Wednesday, 2025, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sessions := []session.SessionData{
				newSession("s", "p", "m", date(tt.date), usage.TokenUsage{Input: 1}),
			}
			weeks, err := Weekly(sessions, Options{Location: time.UTC, WeekStartDay: tt.start})
			require.NoError(t, err)
			require.Len(t, weeks, 1)
			assert.Equal(t, tt.wantYear, weeks[0].Year)
			assert.Equal(t, tt.wantWeek, weeks[0].Week)
		})
	}
}

func TestWeekRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		date      string
		start     Weekday
		wantFirst string
		wantLast  string
	}{
		{"2025-01-06T10:00", Monday, "2025-01-06", "2025-01-12"},
		{"2025-01-05T10:00", Monday, "2024-12-30", "2025-01-05"},
		{"2025-01-05T10:00", Sunday, "2025-01-05", "2025-01-11"},
		{"2025-01-11T23:59", Sunday, "2025-01-05", "2025-01-11"},
		{"2025-01-08T00:00", Wednesday, "2025-01-08", "2025-01-14"},
		{"2025-01-07T00:00", Wednesday, "2025-01-01", "2025-01-07"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.date+"/"+tt.start.String(), func(t *testing.T) {
			t.Parallel()

			first, last := WeekRange(date(tt.date), tt.start)
			assert.Equal(t, tt.wantFirst, first.Format(day))
			assert.Equal(t, tt.wantLast, last.Format(day))
		})
	}
}

func TestDaily_UsesLocation(t *testing.T) {
	t.Parallel()

	plusTwo := time.FixedZone("UTC+2", 2*60*60)
	sessions := []session.SessionData{
		newSession("late", "p", "m", date("2025-01-06T23:30"), usage.TokenUsage{Input: 1}),
	}

	days, err := Daily(sessions, Options{Location: plusTwo})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-01-07", days[0].Date.Format(day))
	assert.Equal(t, plusTwo, days[0].Date.Location())
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	sessions := spread(date("2025-03-01T06:00"), 30)
	sessions = append(sessions,
		newSession("x", "q", "model-b", date("2025-03-03T06:00"), usage.TokenUsage{CacheRead: 5}),
	)
	opts := Options{Location: time.UTC, WeekStartDay: Thursday}

	first, err := Build(sessions, opts)
	require.NoError(t, err)
	second, err := Build(sessions, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Weekday
		wantErr bool
	}{
		{"monday", Monday, false},
		{"Sunday", Sunday, false},
		{"  wed ", Wednesday, false},
		{"6", Sunday, false},
		{"0", Monday, false},
		{"7", 0, true},
		{"funday", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		got, err := ParseWeekday(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidWeekStartDay, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestFormatWeekRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Jan 06 - 12, 2025", FormatWeekRange(date("2025-01-06T00:00"), date("2025-01-12T00:00")))
	assert.Equal(t, "Jan 27 - Feb 02, 2025", FormatWeekRange(date("2025-01-27T00:00"), date("2025-02-02T00:00")))
	assert.Equal(t, "Dec 30, 2024 - Jan 05, 2025", FormatWeekRange(date("2024-12-30T00:00"), date("2025-01-05T00:00")))
}

func TestFormatDateRange(t *testing.T) {
	t.Parallel()

	a := date("2025-01-01T00:00")
	b := date("2025-01-31T00:00")

	assert.Equal(t, "All time", FormatDateRange(nil, nil))
	assert.Equal(t, "Up to 2025-01-31", FormatDateRange(nil, &b))
	assert.Equal(t, "From 2025-01-01", FormatDateRange(&a, nil))
	assert.Equal(t, "2025-01-01", FormatDateRange(&a, &a))
	assert.Equal(t, "2025-01-01 to 2025-01-31", FormatDateRange(&a, &b))
}

func TestMonthRange(t *testing.T) {
	t.Parallel()

	first, last := MonthRange(2024, time.February, time.UTC)
	assert.Equal(t, "2024-02-01", first.Format(day))
	assert.Equal(t, "2024-02-29", last.Format(day))
}
