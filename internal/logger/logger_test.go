package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and restores the
// previous settings on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	original := output
	output = buf
	mu.Unlock()
	level := GetLevel()
	format, _ := currentFormat.Load().(string)
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output = original
		mu.Unlock()
		SetLevel(level.String())
		SetFormat(format)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		skip  []string
	}{
		{"DEBUG", []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{"INFO", []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{"WARN", []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{"error", []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)

			Debug("d-msg")
			Info("i-msg")
			Warn("w-msg")
			Error("e-msg")

			out := buf.String()
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.skip {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestInvalidSettingsIgnored(t *testing.T) {
	captureOutput(t)
	SetLevel("WARN")
	SetLevel("LOUD")
	assert.Equal(t, LevelWarn, GetLevel())

	SetFormat("json")
	SetFormat("xml")
	assert.Equal(t, "json", currentFormat.Load())
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("step committed", KeyEngine, "sim", KeyStep, 4, Err(errors.New("boom")))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "step committed", rec["msg"])
	assert.Equal(t, "sim", rec[KeyEngine])
	assert.EqualValues(t, 4, rec[KeyStep])
	assert.Equal(t, "boom", rec[KeyError])
}

func TestWith(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("text")
	SetLevel("DEBUG")

	l := With(KeyEngine, "sim", KeyRole, "writer")
	l.Debug("begin step", KeyStep, 0)

	out := buf.String()
	assert.Contains(t, out, "engine=sim")
	assert.Contains(t, out, "role=writer")
	assert.Contains(t, out, "step=0")
}

func TestInitFile(t *testing.T) {
	captureOutput(t)
	path := filepath.Join(t.TempDir(), "stepio.log")

	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}

func TestInitWithWriter(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
