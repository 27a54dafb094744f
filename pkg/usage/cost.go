package usage

import (
	"sort"

	"github.com/shopspring/decimal"
)

var million = decimal.NewFromInt(1_000_000)

// Cost returns the monetary cost of tokens under pricing.
//
// A nil pricing yields exactly zero. The missing-pricing condition is not
// an error here; callers surface it through PricingTable.Unpriced or the
// health validator.
func Cost(tokens TokenUsage, pricing *ModelPricing) decimal.Decimal {
	if pricing == nil {
		return decimal.Zero
	}

	return decimal.NewFromInt(tokens.Input).Mul(pricing.Input).
		Add(decimal.NewFromInt(tokens.Output).Mul(pricing.Output)).
		Add(decimal.NewFromInt(tokens.CacheWrite).Mul(pricing.CacheWrite)).
		Add(decimal.NewFromInt(tokens.CacheRead).Mul(pricing.CacheRead))
}

// PerMillion builds a ModelPricing from rates quoted per million tokens,
// the unit pricing files and vendor price lists use.
func PerMillion(input, output, cacheWrite, cacheRead decimal.Decimal) ModelPricing {
	return ModelPricing{
		Input:      input.Div(million),
		Output:     output.Div(million),
		CacheWrite: cacheWrite.Div(million),
		CacheRead:  cacheRead.Div(million),
	}
}

// Lookup returns the pricing for modelID, or nil if the table has none.
func (p PricingTable) Lookup(modelID string) *ModelPricing {
	if p == nil {
		return nil
	}
	pricing, ok := p[modelID]
	if !ok {
		return nil
	}
	return &pricing
}

// Has reports whether modelID is priced.
func (p PricingTable) Has(modelID string) bool {
	_, ok := p[modelID]
	return ok
}

// Cost returns the cost of tokens for modelID and whether the model was
// priced.
func (p PricingTable) Cost(modelID string, tokens TokenUsage) (decimal.Decimal, bool) {
	pricing := p.Lookup(modelID)
	return Cost(tokens, pricing), pricing != nil
}

// Unpriced returns the sorted, distinct model ids from modelIDs that have
// no pricing entry. UnknownModel and empty ids are never reported.
func (p PricingTable) Unpriced(modelIDs []string) []string {
	seen := make(map[string]struct{})
	missing := make([]string, 0)
	for _, id := range modelIDs {
		if id == "" || id == UnknownModel || p.Has(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return missing
}

// Models returns the priced model ids in sorted order.
func (p PricingTable) Models() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
