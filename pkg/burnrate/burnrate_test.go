package burnrate

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const message = `{"role":"assistant","modelID":"model-a","tokens":{"input":100,"output":40,"reasoning":10}}`

var now = time.Date(2025, 1, 6, 10, 10, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string, age time.Duration) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newMeter() Meter {
	return New(Config{Now: func() time.Time { return now }})
}

func TestRate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "msg_001.json", message, 10*time.Minute) // outside the window
	writeFile(t, dir, "msg_002.json", message, 2*time.Minute)
	writeFile(t, dir, "msg_003.json", message, time.Minute)

	rate, err := newMeter().Rate(dir, 5*time.Minute)
	require.NoError(t, err)

	// 300 tokens over 2 minutes
	assert.InDelta(t, 150.0, rate, 1e-9)
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "msg_001.json", message, 4*time.Minute)
	writeFile(t, dir, "msg_002.json", `{not json`, 3*time.Minute)
	writeFile(t, dir, "msg_003.json", `{"role":"user"}`, 2*time.Minute)
	writeFile(t, dir, "notes.txt", "ignored", time.Minute)

	s, err := newMeter().Measure(dir, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Files, "unparseable files still count as samples")
	assert.Equal(t, int64(150), s.Tokens)
	assert.Equal(t, now.Add(-4*time.Minute), s.Oldest.UTC())
	assert.Equal(t, 4*time.Minute, s.Elapsed)
	assert.InDelta(t, 37.5, s.TokensPerMinute, 1e-9)
}

func TestRateNeedsTwoSamples(t *testing.T) {
	tests := []struct {
		name string
		ages []time.Duration
	}{
		{"no files", nil},
		{"nothing in window", []time.Duration{time.Hour, 2 * time.Hour}},
		{"single file", []time.Duration{time.Minute}},
		{"single file in window", []time.Duration{time.Minute, time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for i, age := range tt.ages {
				writeFile(t, dir, fmt.Sprintf("msg_%03d.json", i), message, age)
			}

			rate, err := newMeter().Rate(dir, 5*time.Minute)
			require.NoError(t, err)
			assert.Zero(t, rate)
		})
	}
}

func TestRateMissingDirectory(t *testing.T) {
	rate, err := newMeter().Rate(filepath.Join(t.TempDir(), "ses_gone"), time.Minute)
	require.NoError(t, err)
	assert.Zero(t, rate)
}

func TestRateInvalidWindow(t *testing.T) {
	for _, window := range []time.Duration{0, -time.Minute} {
		_, err := newMeter().Rate(t.TempDir(), window)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	}
}

func TestRateRescans(t *testing.T) {
	dir := t.TempDir()
	m := newMeter()

	writeFile(t, dir, "msg_001.json", message, 2*time.Minute)
	rate, err := m.Rate(dir, 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, rate)

	writeFile(t, dir, "msg_002.json", message, time.Minute)
	rate, err = m.Rate(dir, 5*time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, rate, 1e-9)
}
