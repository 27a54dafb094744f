package aggregator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// ParseWeekday parses a day name, its three-letter abbreviation or a
// Monday-based digit 0..6.
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if v == name || v == name[:3] {
			return Weekday(i), nil
		}
	}

	if n, err := strconv.Atoi(v); err == nil && Weekday(n).Valid() {
		return Weekday(n), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekStartDay, s)
}

// Daily buckets sessions by the local date of their start time.
// Sessions without a start time appear in no bucket.
func Daily(sessions []session.SessionData, opts Options) ([]DailyUsage, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return daily(summarizeAll(sessions, opts.Pricing), opts.Location), nil
}

// Weekly groups the daily buckets into 7-day windows starting on
// opts.WeekStartDay. A window spanning a month boundary is reported once.
func Weekly(sessions []session.SessionData, opts Options) ([]WeeklyUsage, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	days := daily(summarizeAll(sessions, opts.Pricing), opts.Location)
	return weekly(days, opts.WeekStartDay), nil
}

// Monthly groups sessions by the calendar month of their start time. It is
// computed from the sessions directly, never from weekly buckets.
func Monthly(sessions []session.SessionData, opts Options) ([]MonthlyUsage, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return monthly(summarizeAll(sessions, opts.Pricing), opts.Location), nil
}

// Build computes all three groupings from one pass of session summaries.
func Build(sessions []session.SessionData, opts Options) (*Rollup, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	items := summarizeAll(sessions, opts.Pricing)
	days := daily(items, opts.Location)

	skipped := lo.CountBy(items, func(it summarized) bool {
		return !it.sum.HasStart()
	})

	return &Rollup{
		Daily:           days,
		Weekly:          weekly(days, opts.WeekStartDay),
		Monthly:         monthly(items, opts.Location),
		TotalSessions:   len(sessions),
		SkippedSessions: skipped,
	}, nil
}

// WeekRange returns the first and last day of the window containing date.
// Both are midnight in date's location.
func WeekRange(date time.Time, start Weekday) (time.Time, time.Time) {
	day := midnight(date, date.Location())
	offset := (int(WeekdayOf(day)) - int(start) + 7) % 7
	first := day.AddDate(0, 0, -offset)
	return first, first.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, -1)
}

// FormatWeekRange renders a window as "Jan 06 - 12, 2025",
// "Jan 27 - Feb 02, 2025" or "Dec 30, 2024 - Jan 05, 2025".
func FormatWeekRange(start, end time.Time) string {
	switch {
	case start.Year() != end.Year():
		return start.Format("Jan 02, 2006") + " - " + end.Format("Jan 02, 2006")
	case start.Month() != end.Month():
		return start.Format("Jan 02") + " - " + end.Format("Jan 02, 2006")
	default:
		return start.Format("Jan 02") + " - " + end.Format("02, 2006")
	}
}

// FormatDateRange renders an optional date range.
func FormatDateRange(start, end *time.Time) string {
	const layout = "2006-01-02"
	switch {
	case start == nil && end == nil:
		return "All time"
	case start == nil:
		return "Up to " + end.Format(layout)
	case end == nil:
		return "From " + start.Format(layout)
	case start.Format(layout) == end.Format(layout):
		return start.Format(layout)
	default:
		return start.Format(layout) + " to " + end.Format(layout)
	}
}

func (o Options) normalize() (Options, error) {
	if o.Location == nil {
		o.Location = time.Local
	}
	if !o.WeekStartDay.Valid() {
		return o, fmt.Errorf("%w: %d", ErrInvalidWeekStartDay, int(o.WeekStartDay))
	}
	return o, nil
}

// summarized pairs a session with its derived values so each session is
// summarized once per call.
type summarized struct {
	data session.SessionData
	sum  session.Summary
	cost decimal.Decimal
}

func summarizeAll(sessions []session.SessionData, pricing usage.PricingTable) []summarized {
	items := make([]summarized, len(sessions))
	for i := range sessions {
		items[i] = summarized{
			data: sessions[i],
			sum:  sessions[i].Summarize(),
			cost: sessions[i].Cost(pricing),
		}
	}
	return items
}

type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{year: y, month: m, day: d}
}

func (k dateKey) before(o dateKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	if k.month != o.month {
		return k.month < o.month
	}
	return k.day < o.day
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// bucket accumulates sessions into Totals.
type bucket struct {
	sessions []session.SessionData
	totals   Totals
	models   map[string]struct{}
}

func newBucket() *bucket {
	return &bucket{
		totals: Totals{TotalCost: decimal.Zero},
		models: make(map[string]struct{}),
	}
}

func (b *bucket) add(it summarized) {
	b.sessions = append(b.sessions, it.data)
	b.totals.TotalSessions++
	b.totals.TotalInteractions += it.sum.InteractionCount
	b.totals.TotalTokens = b.totals.TotalTokens.Add(it.sum.TotalTokens)
	b.totals.TotalCost = b.totals.TotalCost.Add(it.cost)
	for _, m := range it.sum.ModelsUsed {
		b.models[m] = struct{}{}
	}
}

func (b *bucket) result() Totals {
	t := b.totals
	t.ModelsUsed = sortedKeys(b.models)
	return t
}

func daily(items []summarized, loc *time.Location) []DailyUsage {
	buckets := make(map[dateKey]*bucket)
	for _, it := range items {
		if !it.sum.HasStart() {
			continue
		}
		k := keyOf(it.sum.StartTime.In(loc))
		b, ok := buckets[k]
		if !ok {
			b = newBucket()
			buckets[k] = b
		}
		b.add(it)
	}

	keys := lo.Keys(buckets)
	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })

	days := make([]DailyUsage, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		days = append(days, DailyUsage{
			Date:     time.Date(k.year, k.month, k.day, 0, 0, 0, 0, loc),
			Sessions: b.sessions,
			Totals:   b.result(),
		})
	}
	return days
}

// weekly merges ascending days into ascending weeks. Windows are
// contiguous and disjoint, so each day lands in exactly one week.
func weekly(days []DailyUsage, start Weekday) []WeeklyUsage {
	weeks := make([]WeeklyUsage, 0)
	index := make(map[dateKey]int)

	for _, day := range days {
		first, last := WeekRange(day.Date, start)
		k := keyOf(first)

		i, ok := index[k]
		if !ok {
			year, week := first.AddDate(0, 0, 3).ISOWeek()
			weeks = append(weeks, WeeklyUsage{
				Year:      year,
				Week:      week,
				StartDate: first,
				EndDate:   last,
				Totals:    Totals{TotalCost: decimal.Zero},
			})
			i = len(weeks) - 1
			index[k] = i
		}

		w := &weeks[i]
		w.Days = append(w.Days, day)
		w.Sessions = append(w.Sessions, day.Sessions...)
		w.Totals = w.Totals.merge(day.Totals)
	}

	return weeks
}

func monthly(items []summarized, loc *time.Location) []MonthlyUsage {
	type monthKey struct {
		year  int
		month time.Month
	}

	buckets := make(map[monthKey]*bucket)
	for _, it := range items {
		if !it.sum.HasStart() {
			continue
		}
		t := it.sum.StartTime.In(loc)
		k := monthKey{year: t.Year(), month: t.Month()}
		b, ok := buckets[k]
		if !ok {
			b = newBucket()
			buckets[k] = b
		}
		b.add(it)
	}

	keys := lo.Keys(buckets)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	months := make([]MonthlyUsage, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		months = append(months, MonthlyUsage{
			Year:     k.year,
			Month:    k.month,
			Sessions: b.sessions,
			Totals:   b.result(),
		})
	}
	return months
}

func (t Totals) merge(o Totals) Totals {
	return Totals{
		TotalSessions:     t.TotalSessions + o.TotalSessions,
		TotalInteractions: t.TotalInteractions + o.TotalInteractions,
		TotalTokens:       t.TotalTokens.Add(o.TotalTokens),
		TotalCost:         t.TotalCost.Add(o.TotalCost),
		ModelsUsed:        unionSorted(t.ModelsUsed, o.ModelsUsed),
	}
}

func unionSorted(a, b []string) []string {
	out := lo.Uniq(append(append(make([]string, 0, len(a)+len(b)), a...), b...))
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
