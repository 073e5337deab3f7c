package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corebtc/config"
	"corebtc/native/collaterals"
	"corebtc/services/auditd/store"
)

func TestRunReplayOnlyPersistsAuditTrail(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Storage = config.Storage{Backend: "leveldb", Path: filepath.Join(dir, "state")}
	cfg.Audit.DSN = filepath.Join(dir, "audit.db")
	require.NoError(t, config.ValidateConfig(cfg))

	logPath := filepath.Join(dir, "ops.jsonl")
	ops := `{"op":"add_burner","caller":"0x00000000000000000000000000000000000000a0","account":"0x00000000000000000000000000000000000000e1"}
{"op":"pause","caller":"0x00000000000000000000000000000000000000e1"}
`
	require.NoError(t, os.WriteFile(logPath, []byte(ops), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), cfg, options{replayPath: logPath, replayOnly: true}, logger)
	require.NoError(t, err)

	audit, err := store.Open(cfg.Audit.DSN)
	require.NoError(t, err)
	defer audit.Close()
	roles, err := audit.Query(context.Background(), store.Filter{Type: "lockers.role_granted"})
	require.NoError(t, err)
	require.Len(t, roles, 1)

	// a second start finds the committed genesis and replays nothing
	err = run(context.Background(), cfg, options{replayOnly: true}, logger)
	require.NoError(t, err)
}

func TestRunStrictReplayFails(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Storage = config.Storage{Backend: "memory"}
	cfg.Audit.DSN = filepath.Join(dir, "audit.db")

	logPath := filepath.Join(dir, "ops.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte(`{"op":"pause","caller":"0x00000000000000000000000000000000000000ff"}`), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), cfg, options{replayPath: logPath, strict: true, replayOnly: true}, logger)
	require.Error(t, err)

	err = run(context.Background(), cfg, options{replayPath: filepath.Join(dir, "missing.jsonl"), replayOnly: true}, logger)
	require.ErrorContains(t, err, "open replay log")
}

func TestOpenDatabase(t *testing.T) {
	db, err := openDatabase(config.Storage{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), collaterals.NativeToken.Bytes()))
	db.Close()

	_, err = openDatabase(config.Storage{Backend: "bolt"})
	require.Error(t, err)
}
