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
)

func TestSetupWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("lockersd", Options{Env: "test", Output: &buf})
	logger.Info("locker admitted", slog.String("locker", "0xb1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "locker admitted", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "lockersd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("lockersd", Options{Level: "warn", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestSetupRotatesIntoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockersd.log")
	var buf bytes.Buffer
	logger := SetupWithOptions("lockersd", Options{File: path, MaxSizeMB: 1, Output: &buf})
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
	require.Contains(t, buf.String(), "to file")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestRedaction(t *testing.T) {
	require.True(t, IsSensitive(" Rescue_Script"))
	require.False(t, IsSensitive("locker"))

	attr := HashedScript("rescue_script", []byte{0x76, 0xa9})
	require.True(t, strings.HasPrefix(attr.Value.String(), "keccak:"))
	require.Len(t, attr.Value.String(), len("keccak:")+16)
	require.Equal(t, "", HashedScript("rescue_script", nil).Value.String())

	var buf bytes.Buffer
	logger := SetupWithOptions("lockersd", Options{Output: &buf})
	logger.Info("request",
		slog.String("locking_script", "0014aabb"),
		attr,
		slog.String("locker", "0xb1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, RedactedValue, line["locking_script"])
	require.Equal(t, attr.Value.String(), line["rescue_script"])
	require.Equal(t, "0xb1", line["locker"])
}
