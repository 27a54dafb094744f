package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// ParseTimeframe parses "all", "daily", "weekly" or "monthly".
// An empty string is TimeframeAll.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	switch tf {
	case "":
		return TimeframeAll, nil
	case TimeframeAll, TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return tf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
}

// ModelBreakdown groups the filtered sessions by model id.
//
// A session contributes to every model it used, but only with the
// interactions that used that model. Interactions without a model id are
// grouped under usage.UnknownModel.
func ModelBreakdown(sessions []session.SessionData, opts BreakdownOptions) (*ModelBreakdownReport, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	items := opts.filter(sessions)
	groups := make(map[string]*UsageStats)

	for _, it := range items {
		for model, tokens := range it.sum.ModelTokens {
			g, ok := groups[model]
			if !ok {
				g = &UsageStats{Cost: decimal.Zero}
				groups[model] = g
			}
			g.Sessions++
			g.Interactions += it.sum.ModelInteractions[model]
			g.Tokens = g.Tokens.Add(tokens)
			g.Cost = g.Cost.Add(usage.Cost(tokens, opts.Pricing.Lookup(model)))
			g.observe(it.sum)
		}
	}

	models := make([]ModelUsageStats, 0, len(groups))
	for id, g := range groups {
		models = append(models, ModelUsageStats{ModelID: id, UsageStats: *g})
	}
	sort.Slice(models, func(i, j int) bool {
		return ranksBefore(models[i].UsageStats, models[j].UsageStats, models[i].ModelID, models[j].ModelID)
	})

	return &ModelBreakdownReport{
		Timeframe:      opts.Timeframe,
		StartDate:      opts.StartDate,
		EndDate:        opts.EndDate,
		Models:         models,
		Totals:         reportTotals(items),
		UnpricedModels: unpriced(items, opts.Pricing),
	}, nil
}

// ProjectBreakdown groups the filtered sessions by project name. Sessions
// without a project are grouped under UnknownProject.
func ProjectBreakdown(sessions []session.SessionData, opts BreakdownOptions) (*ProjectBreakdownReport, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	items := opts.filter(sessions)
	groups := make(map[string]*UsageStats)
	models := make(map[string]map[string]struct{})

	for _, it := range items {
		name := it.data.ProjectName
		if name == "" {
			name = UnknownProject
		}

		g, ok := groups[name]
		if !ok {
			g = &UsageStats{Cost: decimal.Zero}
			groups[name] = g
			models[name] = make(map[string]struct{})
		}
		g.Sessions++
		g.Interactions += it.sum.InteractionCount
		g.Tokens = g.Tokens.Add(it.sum.TotalTokens)
		g.Cost = g.Cost.Add(it.cost)
		g.observe(it.sum)

		for _, m := range it.sum.ModelsUsed {
			models[name][m] = struct{}{}
		}
	}

	projects := make([]ProjectUsageStats, 0, len(groups))
	for name, g := range groups {
		projects = append(projects, ProjectUsageStats{
			ProjectName: name,
			ModelsUsed:  sortedKeys(models[name]),
			UsageStats:  *g,
		})
	}
	sort.Slice(projects, func(i, j int) bool {
		return ranksBefore(projects[i].UsageStats, projects[j].UsageStats, projects[i].ProjectName, projects[j].ProjectName)
	})

	return &ProjectBreakdownReport{
		Timeframe:      opts.Timeframe,
		StartDate:      opts.StartDate,
		EndDate:        opts.EndDate,
		Projects:       projects,
		Totals:         reportTotals(items),
		UnpricedModels: unpriced(items, opts.Pricing),
	}, nil
}

// FilterByDate keeps the sessions whose start date in loc falls within
// [start, end]. A nil bound is unbounded. Sessions without a start time
// are kept only when both bounds are nil.
func FilterByDate(sessions []session.SessionData, start, end *time.Time, loc *time.Location) []session.SessionData {
	if loc == nil {
		loc = time.Local
	}
	return lo.Filter(sessions, func(s session.SessionData, _ int) bool {
		sum := s.Summarize()
		return inRange(sum, start, end, loc)
	})
}

// FilterByModels keeps the sessions that used any of modelIDs. An empty
// list keeps everything.
func FilterByModels(sessions []session.SessionData, modelIDs []string) []session.SessionData {
	if len(modelIDs) == 0 {
		return sessions
	}
	return lo.Filter(sessions, func(s session.SessionData, _ int) bool {
		return s.UsesModel(modelIDs...)
	})
}

func (o BreakdownOptions) normalize() (BreakdownOptions, error) {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}

	tf, err := ParseTimeframe(string(o.Timeframe))
	if err != nil {
		return o, err
	}
	o.Timeframe = tf

	if !o.WeekStartDay.Valid() {
		return o, fmt.Errorf("%w: %d", ErrInvalidWeekStartDay, int(o.WeekStartDay))
	}

	if o.StartDate != nil && o.EndDate != nil &&
		keyOf(o.EndDate.In(o.Location)).before(keyOf(o.StartDate.In(o.Location))) {
		return o, fmt.Errorf("%w: %s before %s", ErrInvalidDateRange,
			o.EndDate.Format("2006-01-02"), o.StartDate.Format("2006-01-02"))
	}

	return o, nil
}

// period returns the bounds of the current timeframe, nil for
// TimeframeAll.
func (o BreakdownOptions) period() (*time.Time, *time.Time) {
	now := o.Now.In(o.Location)

	var first, last time.Time
	switch o.Timeframe {
	case TimeframeDaily:
		first = midnight(now, o.Location)
		last = first
	case TimeframeWeekly:
		first, last = WeekRange(now, o.WeekStartDay)
	case TimeframeMonthly:
		first, last = MonthRange(now.Year(), now.Month(), o.Location)
	default:
		return nil, nil
	}
	return &first, &last
}

func (o BreakdownOptions) filter(sessions []session.SessionData) []summarized {
	periodStart, periodEnd := o.period()

	items := summarizeAll(sessions, o.Pricing)
	return lo.Filter(items, func(it summarized, _ int) bool {
		return inRange(it.sum, o.StartDate, o.EndDate, o.Location) &&
			inRange(it.sum, periodStart, periodEnd, o.Location)
	})
}

func inRange(sum session.Summary, start, end *time.Time, loc *time.Location) bool {
	if start == nil && end == nil {
		return true
	}
	if !sum.HasStart() {
		return false
	}

	day := keyOf(sum.StartTime.In(loc))
	if start != nil && day.before(keyOf(start.In(loc))) {
		return false
	}
	if end != nil && keyOf(end.In(loc)).before(day) {
		return false
	}
	return true
}

func (s *UsageStats) observe(sum session.Summary) {
	if !sum.HasStart() {
		return
	}
	if s.FirstSeen.IsZero() || sum.StartTime.Before(s.FirstSeen) {
		s.FirstSeen = sum.StartTime
	}
	if s.LastSeen.IsZero() || sum.StartTime.After(s.LastSeen) {
		s.LastSeen = sum.StartTime
	}
}

func ranksBefore(a, b UsageStats, keyA, keyB string) bool {
	if c := a.Cost.Cmp(b.Cost); c != 0 {
		return c > 0
	}
	if ta, tb := a.Tokens.Total(), b.Tokens.Total(); ta != tb {
		return ta > tb
	}
	return keyA < keyB
}

func reportTotals(items []summarized) ReportTotals {
	totals := ReportTotals{Cost: decimal.Zero}
	for _, it := range items {
		totals.Sessions++
		totals.Interactions += it.sum.InteractionCount
		totals.Tokens = totals.Tokens.Add(it.sum.TotalTokens)
		totals.Cost = totals.Cost.Add(it.cost)
	}
	return totals
}

func unpriced(items []summarized, pricing usage.PricingTable) []string {
	used := lo.FlatMap(items, func(it summarized, _ int) []string {
		return it.sum.ModelsUsed
	})
	return pricing.Unpriced(used)
}
