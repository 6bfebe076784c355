package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowchain/core/types"
)

type payloadEvent struct{ evt *types.Event }

func (p payloadEvent) EventType() string { return p.evt.Type }
func (p payloadEvent) Event() *types.Event { return p.evt }

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestSetupRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("escrowd", "test", WithWriter(&buf))
	logger.Info("hello", "component", "host")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "hello", lines[0]["message"])
	require.Equal(t, "INFO", lines[0]["severity"])
	require.Equal(t, "escrowd", lines[0]["service"])
	require.Equal(t, "test", lines[0]["env"])
	require.Contains(t, lines[0], "timestamp")
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("escrowd", "", WithWriter(&buf), WithLevel(ParseLevel("warn")))
	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "kept", lines[0]["message"])
	require.NotContains(t, lines[0], "env")
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.log")
	var buf bytes.Buffer
	logger := Setup("escrowd", "", WithWriter(&buf), WithFile(FileConfig{Path: path, MaxSizeMB: 1}))
	logger.Info("to disk")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to disk")
	require.Contains(t, buf.String(), "to disk")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestEventSinkMasksValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewEventSink(logger)
	sink.Emit(payloadEvent{evt: &types.Event{
		Type: "escrow.created",
		Attributes: map[string]string{
			"id":     "ab",
			"buyer":  "01",
			"amount": "1000",
			"fee":    "5",
		},
	}})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "escrow.created", lines[0]["event"])
	require.Equal(t, "ab", lines[0]["id"])
	require.Equal(t, "01", lines[0]["buyer"])
	require.Equal(t, RedactedValue, lines[0]["amount"])
	require.Equal(t, RedactedValue, lines[0]["fee"])
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("stake", "10").Value.String())
	require.Equal(t, "abc", MaskField("ID", "abc").Value.String())
	require.Equal(t, " ", MaskField("stake", " ").Value.String())
	require.Contains(t, AllowedKeys(), "outcome")
	require.NotContains(t, AllowedKeys(), "amount")
}
