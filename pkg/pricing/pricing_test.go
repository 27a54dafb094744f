package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-monitor/pkg/usage"
)

const yamlPricing = `
model-a:
  input: 3
  output: 15
  cacheWrite: 3.75
  cacheRead: 0.3
  contextWindow: 200000
  sessionQuota: 10
model-b:
  input: "0.8"
  output: 4
`

const jsonPricing = `{
  "model-a": {"input": 3, "output": 15, "cacheWrite": 3.75, "cacheRead": 0.3, "contextWindow": 200000},
  "model-b": {"input": 0.8, "output": 4}
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml", yamlPricing, FormatYAML},
		{"json", jsonPricing, FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			require.Len(t, table, 2)

			a := table["model-a"]
			assert.True(t, a.Input.Equal(decimal.RequireFromString("0.000003")), "input = %s", a.Input)
			assert.True(t, a.Output.Equal(decimal.RequireFromString("0.000015")))
			assert.True(t, a.CacheWrite.Equal(decimal.RequireFromString("0.00000375")))
			assert.True(t, a.CacheRead.Equal(decimal.RequireFromString("0.0000003")))
			assert.Equal(t, int64(200000), a.ContextWindow)

			b := table["model-b"]
			assert.True(t, b.Input.Equal(decimal.RequireFromString("0.0000008")))
			assert.True(t, b.CacheRead.IsZero())
		})
	}
}

func TestParseSessionQuota(t *testing.T) {
	table, err := Parse([]byte(yamlPricing), FormatYAML)
	require.NoError(t, err)

	// quota is a budget, not a rate
	assert.True(t, table["model-a"].SessionQuota.Equal(decimal.NewFromInt(10)))
}

func TestParseExactCost(t *testing.T) {
	table, err := Parse([]byte(yamlPricing), FormatYAML)
	require.NoError(t, err)

	cost, ok := table.Cost("model-a", usage.TokenUsage{Input: 1_000_000, Output: 1_000_000})
	require.True(t, ok)
	assert.True(t, cost.Equal(decimal.NewFromInt(18)), "cost = %s", cost)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  Format
		wantErr error
	}{
		{"negative rate", `{"m": {"input": -1}}`, FormatJSON, ErrNegativeRate},
		{"negative window", "m:\n  contextWindow: -5\n", FormatYAML, ErrNegativeRate},
		{"empty id", `{" ": {"input": 1}}`, FormatJSON, ErrEmptyModelID},
		{"unknown format", `{}`, Format("toml"), ErrUnsupportedFormat},
		{"malformed json", `{`, FormatJSON, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v", err)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"models.json", FormatJSON, false},
		{"models.YAML", FormatYAML, false},
		{"/etc/pricing.yml", FormatYAML, false},
		{"models.toml", "", true},
		{"models", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefault(t *testing.T) {
	table := Default()
	require.NotEmpty(t, table)

	p := table.Lookup("claude-sonnet-4-5")
	require.NotNil(t, p)
	assert.True(t, p.Input.Equal(decimal.RequireFromString("0.000003")))

	// callers get their own copy
	delete(table, "claude-sonnet-4-5")
	assert.True(t, Default().Has("claude-sonnet-4-5"))
}

func TestMerge(t *testing.T) {
	base := usage.PricingTable{
		"a": usage.PerMillion(decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.Zero, decimal.Zero),
		"b": usage.PerMillion(decimal.NewFromInt(3), decimal.NewFromInt(4), decimal.Zero, decimal.Zero),
	}
	overlay := usage.PricingTable{
		"b": usage.PerMillion(decimal.NewFromInt(5), decimal.NewFromInt(6), decimal.Zero, decimal.Zero),
		"c": usage.PerMillion(decimal.NewFromInt(7), decimal.NewFromInt(8), decimal.Zero, decimal.Zero),
	}

	merged := Merge(base, overlay)

	assert.Equal(t, []string{"a", "b", "c"}, merged.Models())
	assert.True(t, merged["b"].Input.Equal(overlay["b"].Input))
	assert.Len(t, base, 2, "inputs are not modified")
	assert.Empty(t, Merge())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		table, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, len(Default()), len(table))
	})

	t.Run("missing file", func(t *testing.T) {
		table, err := Load(filepath.Join(dir, "missing.json"))
		require.NoError(t, err)
		assert.Equal(t, len(Default()), len(table))
	})

	t.Run("overlay", func(t *testing.T) {
		path := filepath.Join(dir, "models.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlPricing), 0o600))

		table, err := Load(path)
		require.NoError(t, err)
		assert.True(t, table.Has("model-a"))
		assert.True(t, table.Has("claude-sonnet-4-5"))
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"m": {"input": -1}}`), 0o600))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrNegativeRate)
	})
}
