package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"corebtc/config"
	"corebtc/core"
	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/native/lockers"
	"corebtc/services/auditd/report"
	"corebtc/storage"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func seededConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state")
	cfg.Oracle.Feeds = []config.Feed{
		{Token: config.NativeAlias, Price: "100"},
		{Token: cfg.Lockers.PeggedToken, Price: "1000000"},
	}

	db, err := storage.NewLevelDB(cfg.Storage.Path)
	require.NoError(t, err)
	node, err := core.NewNode(db, cfg, core.Options{})
	require.NoError(t, err)
	defer node.Close()
	_, err = node.EnsureGenesis(cfg)
	require.NoError(t, err)

	locker := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	candidate := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	owner := common.HexToAddress(cfg.Lockers.Owner)
	require.NoError(t, node.Apply(func() error {
		for i, addr := range []common.Address{locker, candidate} {
			if err := node.State().Credit(collaterals.NativeToken, addr, e18(10)); err != nil {
				return err
			}
			req := lockers.RequestParams{
				LockingScript:    []byte{0x76, 0xa9, 0x14, byte(i + 1), 0x88, 0xac},
				LockedAmount:     e18(5),
				RescueScriptType: crypto.P2PKH,
				RescueScript:     common.FromHex("12ab8dc588ca9d5787dde7eb29569da63c3a238c"),
				CollateralToken:  collaterals.NativeToken,
			}
			if err := node.Lockers().RequestToBecomeLocker(addr, req, e18(5)); err != nil {
				return err
			}
		}
		return node.Lockers().AddLocker(owner, locker)
	}))
	return cfg
}

func TestBuildReport(t *testing.T) {
	cfg := seededConfig(t)
	now := time.Unix(1_700_000_000, 0)

	rep, err := build(cfg, now)
	require.NoError(t, err)
	require.Equal(t, "regtest", rep.Network)
	require.True(t, rep.GeneratedAt.Equal(now))
	require.Len(t, rep.Collaterals, 1)
	require.Len(t, rep.Lockers, 1)
	require.Len(t, rep.Candidates, 1)

	admitted := rep.Lockers[0]
	require.Equal(t, "5000000000000000000", admitted.LockedAmount)
	require.Equal(t, "25000", admitted.Capacity)
	require.Empty(t, admitted.HealthFactor)
	require.Empty(t, admitted.ValuationError)
	require.NotEmpty(t, admitted.RescueAddress)

	pending := rep.Candidates[0]
	require.True(t, pending.IsCandidate)
	require.Empty(t, pending.Capacity)
}

func TestBuildReportWithoutFeeds(t *testing.T) {
	cfg := seededConfig(t)
	cfg.Oracle.Feeds = nil

	rep, err := build(cfg, time.Now())
	require.NoError(t, err)
	require.Contains(t, rep.Lockers[0].ValuationError, "price feed missing")
}

func TestRender(t *testing.T) {
	rep := &report.Report{
		Network: "regtest",
		Params:  report.ParamsView{CollateralRatio: 20000},
		Lockers: []report.LockerView{{Address: "0xb1", Capacity: "10"}},
	}

	var jsonOut bytes.Buffer
	require.NoError(t, render(&jsonOut, rep, "json"))
	var decoded report.Report
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	require.Equal(t, uint64(20000), decoded.Params.CollateralRatio)

	var yamlOut bytes.Buffer
	require.NoError(t, render(&yamlOut, rep, "yaml"))
	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(yamlOut.Bytes(), &generic))
	params, ok := generic["params"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 20000, params["collateralRatio"])

	require.Error(t, render(&bytes.Buffer{}, rep, "xml"))
}
