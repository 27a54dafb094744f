// Package health validates loaded sessions.
//
// Rules are independent. Advisory findings go to Result.Warnings; corrupt
// data that makes the session's figures untrustworthy goes to
// Result.Issues and marks the session unhealthy.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-monitor/pkg/session"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Defaults applied by New for unset Config fields.
var (
	DefaultCostThreshold   = decimal.NewFromInt(50)
	DefaultLongInteraction = 5 * time.Minute
)

// Config contains validator thresholds.
type Config struct {
	// CostThreshold is the session cost above which a warning is raised.
	// Default: 50.
	CostThreshold decimal.Decimal

	// LongInteraction is the duration above which an interaction is
	// reported as long. Default: 5m.
	LongInteraction time.Duration
}

// Stats holds the counters behind a Result.
type Stats struct {
	TotalInteractions    int             `json:"total_interactions"`
	EmptyInteractions    int             `json:"empty_interactions"`
	MissingTimeData      int             `json:"missing_time_data"`
	UnknownModels        int             `json:"unknown_models"`
	LongInteractions     int             `json:"long_interactions"`
	NegativeTokens       int             `json:"negative_tokens"`
	InvertedInteractions int             `json:"inverted_interactions"`
	TotalCost            decimal.Decimal `json:"total_cost"`
}

// Result is the outcome of validating one session.
type Result struct {
	SessionID string   `json:"session_id"`
	Healthy   bool     `json:"healthy"`
	Issues    []string `json:"issues"`
	Warnings  []string `json:"warnings"`
	Stats     Stats    `json:"stats"`
}

// Validator checks sessions for data problems.
type Validator interface {
	// Validate runs every rule against s.
	Validate(s session.SessionData) Result
}

type validator struct {
	config  Config
	pricing usage.PricingTable
}

// New creates a Validator pricing sessions with pricing.
func New(cfg Config, pricing usage.PricingTable) Validator {
	if !cfg.CostThreshold.IsPositive() {
		cfg.CostThreshold = DefaultCostThreshold
	}
	if cfg.LongInteraction <= 0 {
		cfg.LongInteraction = DefaultLongInteraction
	}

	return &validator{
		config:  cfg,
		pricing: pricing,
	}
}

// Validate implements Validator.Validate.
func (v *validator) Validate(s session.SessionData) Result {
	sum := s.Summarize()
	res := Result{
		SessionID: s.SessionID,
		Issues:    []string{},
		Warnings:  []string{},
	}

	st := &res.Stats
	st.TotalInteractions = sum.InteractionCount
	st.EmptyInteractions = sum.ZeroTokenInteractions
	st.MissingTimeData = sum.MissingTimeData
	st.TotalCost = s.Cost(v.pricing)

	ceiling := v.config.LongInteraction.Milliseconds()
	for _, f := range s.Files {
		if f.Tokens.Validate() != nil {
			st.NegativeTokens++
		}
		if ms, ok := f.DurationMs(); ok {
			switch {
			case ms < 0:
				st.InvertedInteractions++
			case ms > ceiling:
				st.LongInteractions++
			}
		}
	}

	// Blocking issues.
	if st.NegativeTokens > 0 {
		res.Issues = append(res.Issues,
			fmt.Sprintf("%d interactions have negative token counts", st.NegativeTokens))
	}
	if st.InvertedInteractions > 0 {
		res.Issues = append(res.Issues,
			fmt.Sprintf("%d interactions completed before they were created", st.InvertedInteractions))
	}
	if sum.HasStart() && sum.HasEnd() && sum.EndTime.Before(sum.StartTime) {
		res.Issues = append(res.Issues, "Session ends before it starts")
	}

	// Warnings.
	if st.EmptyInteractions > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d interactions have no token usage", st.EmptyInteractions))
	}
	if st.MissingTimeData > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d interactions missing time data", st.MissingTimeData))
	}
	if unpriced := v.pricing.Unpriced(sum.ModelsUsed); len(unpriced) > 0 {
		st.UnknownModels = len(unpriced)
		res.Warnings = append(res.Warnings,
			"Unknown models with no pricing: "+strings.Join(unpriced, ", "))
	}
	if st.TotalCost.GreaterThan(v.config.CostThreshold) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("High session cost: $%s", st.TotalCost.StringFixed(2)))
	}
	if st.LongInteractions > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Long interactions (>%s): %d files", shortDuration(v.config.LongInteraction), st.LongInteractions))
	}

	res.Healthy = len(res.Issues) == 0
	return res
}

// shortDuration renders whole minutes as "5min".
func shortDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dmin", int64(d/time.Minute))
	}
	return d.String()
}
