// Package pricing loads model pricing tables.
//
// Pricing files are JSON or YAML maps from model id to rates quoted in
// currency per million tokens:
//
//	claude-sonnet-4-5:
//	  input: 3
//	  output: 15
//	  cacheWrite: 3.75
//	  cacheRead: 0.3
//	  contextWindow: 200000
//	  sessionQuota: 10
//
// Rates are decoded straight into decimals and divided exactly, so a file
// rate of 3 becomes 0.000003 per token without float rounding.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/session-monitor/pkg/discovery"
	"github.com/0xmhha/session-monitor/pkg/usage"
)

// Format is a pricing file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Rates is one pricing file entry, in currency per million tokens.
type Rates struct {
	Input         decimal.Decimal `json:"input" yaml:"input"`
	Output        decimal.Decimal `json:"output" yaml:"output"`
	CacheWrite    decimal.Decimal `json:"cacheWrite" yaml:"cacheWrite"`
	CacheRead     decimal.Decimal `json:"cacheRead" yaml:"cacheRead"`
	ContextWindow int64           `json:"contextWindow,omitempty" yaml:"contextWindow,omitempty"`
	SessionQuota  decimal.Decimal `json:"sessionQuota" yaml:"sessionQuota"`
}

// ModelPricing converts per-million rates into per-token pricing.
func (r Rates) ModelPricing() usage.ModelPricing {
	p := usage.PerMillion(r.Input, r.Output, r.CacheWrite, r.CacheRead)
	p.ContextWindow = r.ContextWindow
	p.SessionQuota = r.SessionQuota
	return p
}

// Validate checks that no rate is negative.
func (r Rates) Validate() error {
	for _, d := range []decimal.Decimal{r.Input, r.Output, r.CacheWrite, r.CacheRead, r.SessionQuota} {
		if d.IsNegative() {
			return ErrNegativeRate
		}
	}
	if r.ContextWindow < 0 {
		return ErrNegativeRate
	}
	return nil
}

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Parse decodes a pricing file body.
func Parse(data []byte, format Format) (usage.PricingTable, error) {
	raw := make(map[string]Rates)

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON pricing: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML pricing: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	table := make(usage.PricingTable, len(raw))
	for id, r := range raw {
		if strings.TrimSpace(id) == "" {
			return nil, ErrEmptyModelID
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		table[id] = r.ModelPricing()
	}
	return table, nil
}

// LoadFile reads a pricing file. The format follows the file extension.
func LoadFile(path string) (usage.PricingTable, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304: pricing path comes from trusted config
	data, err := os.ReadFile(filepath.Clean(path)) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	table, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Load returns the built-in table overlaid with the pricing file at path.
// An empty path or a missing file yields the built-in table alone.
func Load(path string) (usage.PricingTable, error) {
	if path == "" {
		return Default(), nil
	}

	table, err := LoadFile(discovery.ExpandHome(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	return Merge(Default(), table), nil
}

// Merge returns a new table with the entries of every table, later tables
// overriding earlier ones per model.
func Merge(tables ...usage.PricingTable) usage.PricingTable {
	maps := lo.Map(tables, func(t usage.PricingTable, _ int) map[string]usage.ModelPricing {
		return t
	})
	return usage.PricingTable(lo.Assign(maps...))
}
