package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-monitor/pkg/burnrate"
	"github.com/0xmhha/session-monitor/pkg/config"
	"github.com/0xmhha/session-monitor/pkg/monitor"
)

// env is a messages directory with two sessions and a config file
// pointing at it.
type env struct {
	root       string
	messages   string
	exports    string
	configPath string
}

func writeMessage(t *testing.T, dir, name, model, root string, created int64, input int64, mtime time.Time) {
	t.Helper()

	content := fmt.Sprintf(`{"id":%q,"role":"assistant","modelID":%q,"tokens":{"input":%d,"output":0,"cache":{"read":0,"write":0}},"time":{"created":%d,"completed":%d},"path":{"cwd":%q,"root":%q}}`,
		strings.TrimSuffix(name, ".json"), model, input, created, created+2000, root, root)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func setup(t *testing.T) env {
	t.Helper()

	for _, key := range []string{
		config.EnvConfig, config.EnvMessagesDir, config.EnvDB, config.EnvLogLevel,
		config.EnvWeekStart, config.EnvTimezone, config.EnvPricingFile, config.EnvWorkers,
	} {
		t.Setenv(key, "")
	}

	root := t.TempDir()
	e := env{
		root:       root,
		messages:   filepath.Join(root, "message"),
		exports:    filepath.Join(root, "exports"),
		configPath: filepath.Join(root, "config.yaml"),
	}

	now := time.Now()

	// ses_aaa: two priced interactions on 2025-01-06, 1M input tokens each.
	aaa := filepath.Join(e.messages, "ses_aaa")
	require.NoError(t, os.MkdirAll(aaa, 0750))
	writeMessage(t, aaa, "msg_1.json", "claude-sonnet-4-5", "/work/api", 1736157600000, 1_000_000, now.Add(-2*time.Hour))
	writeMessage(t, aaa, "msg_2.json", "claude-sonnet-4-5", "/work/api", 1736157660000, 1_000_000, now.Add(-2*time.Hour))

	// ses_bbb: one unpriced interaction on 2025-02-03, the most recent session.
	bbb := filepath.Join(e.messages, "ses_bbb")
	require.NoError(t, os.MkdirAll(bbb, 0750))
	writeMessage(t, bbb, "msg_1.json", "local-model", "/work/web", 1738573200000, 500, now.Add(-time.Hour))

	info := filepath.Join(root, "info")
	require.NoError(t, os.MkdirAll(info, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(info, "ses_aaa.json"), []byte(`{"title":"Fix login"}`), 0600))

	cfg := fmt.Sprintf(`paths:
  messages_dir: %q
  session_info_dir: %q
  export_dir: %q
pricing:
  file: ""
reports:
  timezone: UTC
  week_start_day: monday
storage:
  cache_enabled: false
display:
  default_format: table
  color_enabled: false
`, e.messages, info, e.exports)
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0600))

	return e
}

// run executes the CLI with the env's config file.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDailyJSON(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "daily", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Days []struct {
			Date              time.Time `json:"date"`
			TotalSessions     int       `json:"total_sessions"`
			TotalInteractions int       `json:"total_interactions"`
			TotalCost         string    `json:"total_cost"`
			ModelsUsed        []string  `json:"models_used"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Days, 2)

	assert.Equal(t, "2025-01-06", got.Days[0].Date.Format(dateLayout))
	assert.Equal(t, 1, got.Days[0].TotalSessions)
	assert.Equal(t, 2, got.Days[0].TotalInteractions)
	assert.Equal(t, "6", got.Days[0].TotalCost)
	assert.Equal(t, []string{"claude-sonnet-4-5"}, got.Days[0].ModelsUsed)

	assert.Equal(t, "2025-02-03", got.Days[1].Date.Format(dateLayout))
	assert.Equal(t, "0", got.Days[1].TotalCost)
}

func TestDailyMonthFilter(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "daily", "--month", "2025-02", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-02-03")
	assert.NotContains(t, out, "2025-01-06")

	_, err = e.run(t, "daily", "--month", "february")
	assert.ErrorContains(t, err, "invalid --month")
}

func TestDailyBreakdown(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "daily", "--breakdown")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01-06")
	assert.Contains(t, out, "claude-sonnet-4-5")
	assert.Contains(t, out, "local-model")

	_, err = e.run(t, "daily", "--breakdown", "--format", "csv")
	assert.ErrorContains(t, err, "only supported with table output")
}

func TestWeeklyAndMonthly(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "weekly", "--format", "json", "--year", "2025")
	require.NoError(t, err)

	var weeks struct {
		Weeks []struct {
			Year int `json:"year"`
			Week int `json:"week"`
		} `json:"weeks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &weeks))
	require.Len(t, weeks.Weeks, 2)
	assert.Equal(t, 2, weeks.Weeks[0].Week)
	assert.Equal(t, 6, weeks.Weeks[1].Week)

	out, err = e.run(t, "weekly", "--format", "json", "--year", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, `"weeks": []`)

	_, err = e.run(t, "weekly", "--start-day", "someday")
	assert.Error(t, err)

	out, err = e.run(t, "monthly", "--format", "json")
	require.NoError(t, err)

	var months struct {
		Months []struct {
			Year  int `json:"year"`
			Month int `json:"month"`
		} `json:"months"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &months))
	require.Len(t, months.Months, 2)
	assert.Equal(t, 1, months.Months[0].Month)
	assert.Equal(t, 2, months.Months[1].Month)
}

func TestModelsAndProjects(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "models", "--format", "json")
	require.NoError(t, err)

	var models struct {
		Models []struct {
			ModelID string `json:"model_id"`
			Cost    string `json:"cost"`
		} `json:"models"`
		UnpricedModels []string `json:"unpriced_models"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &models))
	require.Len(t, models.Models, 2)
	assert.Equal(t, "claude-sonnet-4-5", models.Models[0].ModelID)
	assert.Equal(t, "6", models.Models[0].Cost)
	assert.Equal(t, []string{"local-model"}, models.UnpricedModels)

	out, err = e.run(t, "projects", "--format", "json", "--start-date", "2025-02-01")
	require.NoError(t, err)

	var projects struct {
		Projects []struct {
			ProjectName string `json:"project_name"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &projects))
	require.Len(t, projects.Projects, 1)
	assert.Equal(t, "web", projects.Projects[0].ProjectName)

	_, err = e.run(t, "models", "--start-date", "01/02/2025")
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")

	_, err = e.run(t, "models", "--timeframe", "hourly")
	assert.Error(t, err)
}

func TestSessionCommand(t *testing.T) {
	e := setup(t)

	// Latest session by default.
	out, err := e.run(t, "session", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"session_id": "ses_bbb"`)

	out, err = e.run(t, "session", filepath.Join(e.messages, "ses_aaa"))
	require.NoError(t, err)
	assert.Contains(t, out, "ses_aaa")
	assert.Contains(t, out, "Fix login")
	assert.Contains(t, out, "$6.00")

	_, err = e.run(t, "session", filepath.Join(e.messages, "ses_missing"))
	assert.Error(t, err)
}

func TestSessionsCSV(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "sessions", "--format", "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "session_id", records[0][0])
	assert.Equal(t, "ses_bbb", records[1][0])
	assert.Equal(t, "ses_aaa", records[2][0])

	out, err = e.run(t, "sessions", "--format", "csv", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	out, err = e.run(t, "sessions", "--format", "csv", "--model", "claude-sonnet-4-5")
	require.NoError(t, err)
	assert.Contains(t, out, "ses_aaa")
	assert.NotContains(t, out, "ses_bbb")
}

func TestHealthCommand(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "health", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Results []struct {
			SessionID string   `json:"session_id"`
			Healthy   bool     `json:"healthy"`
			Warnings  []string `json:"warnings"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Results, 2)

	out, err = e.run(t, "health", filepath.Join(e.messages, "ses_aaa"), "--format", "json")
	require.NoError(t, err)
	got.Results = nil
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "ses_aaa", got.Results[0].SessionID)
	assert.True(t, got.Results[0].Healthy)
}

func TestBurnRateCommand(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "burn-rate", "--format", "json", "--window", "3h")
	require.NoError(t, err)

	var got struct {
		SessionID string `json:"session_id"`
		Files     int    `json:"files"`
		Tokens    int64  `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ses_bbb", got.SessionID)
	assert.Equal(t, 1, got.Files)
	assert.Equal(t, int64(500), got.Tokens)
}

func TestExplicitDurationsAreValidated(t *testing.T) {
	e := setup(t)

	_, err := e.run(t, "burn-rate", "--window=-5m")
	assert.ErrorIs(t, err, burnrate.ErrInvalidWindow)

	_, err = e.run(t, "burn-rate", "--window=0s")
	assert.ErrorIs(t, err, burnrate.ErrInvalidWindow)

	_, err = e.run(t, "live", "--once", "--interval=-1s")
	assert.ErrorIs(t, err, monitor.ErrInvalidConfig)

	_, err = e.run(t, "live", "--once")
	assert.NoError(t, err)
}

func TestLiveOnce(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "live", filepath.Join(e.messages, "ses_aaa"), "--once", "--format", "json")
	require.NoError(t, err)

	var got struct {
		SessionDir string `json:"session_dir"`
		Cost       string `json:"cost"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(e.messages, "ses_aaa"), got.SessionDir)
	assert.Equal(t, "6", got.Cost)

	out, err = e.run(t, "live", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "ses_bbb")
	assert.NotContains(t, out, "\033[H\033[2J")
}

func TestExport(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "export", "daily")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported daily report to "+e.exports)

	matches, err := filepath.Glob(filepath.Join(e.exports, "daily-*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date,sessions,interactions"))

	target := filepath.Join(e.root, "out", "models.json")
	_, err = e.run(t, "export", "models", "--format", "json", "--output", target)
	require.NoError(t, err)
	assert.FileExists(t, target)

	_, err = e.run(t, "export", "health")
	assert.ErrorContains(t, err, "unknown report")
}

func TestConfigCommands(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+e.configPath)
	assert.Contains(t, out, "messages_dir: "+e.messages)

	out, err = e.run(t, "config", "show", "--toml")
	require.NoError(t, err)
	assert.Contains(t, out, "[paths]")

	out, err = e.run(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Active configuration: "+e.configPath)

	path := filepath.Join(e.root, "new", "config.toml")
	out, err = e.run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = e.run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = e.run(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestInvalidInput(t *testing.T) {
	e := setup(t)

	_, err := e.run(t, "sessions", "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	empty := t.TempDir()
	out, err := e.run(t, "sessions", empty, "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = e.run(t, "session", empty)
	assert.ErrorContains(t, err, "no sessions found")

	missing := filepath.Join(e.root, "missing.yaml")
	_, err = e.run(t, "--config", missing, "daily")
	assert.Error(t, err)
}
