package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"corebtc/config"
	"corebtc/core"
	"corebtc/services/auditd/report"
	"corebtc/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "Path to node configuration file")
	statePath := flag.String("state", "", "LevelDB state directory (defaults to storage.Path); the node must be stopped")
	format := flag.String("format", "json", "Output format: json or yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*statePath) != "" {
		cfg.Storage.Path = *statePath
	}

	rep, err := build(cfg, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build report: %v\n", err)
		os.Exit(1)
	}
	if err := render(os.Stdout, rep, *format); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(1)
	}
}

func build(cfg *config.Config, now time.Time) (*report.Report, error) {
	db, err := storage.NewLevelDB(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	node, err := core.NewNode(db, cfg, core.Options{})
	if err != nil {
		db.Close()
		return nil, err
	}
	defer node.Close()
	return buildFrom(node, cfg, now)
}

func buildFrom(node *core.Node, cfg *config.Config, now time.Time) (*report.Report, error) {
	if err := node.LoadFeeds(cfg.Oracle.Feeds); err != nil {
		return nil, err
	}
	var rep *report.Report
	err := node.View(func() (err error) {
		rep, err = report.Build(node.Lockers(), node.Catalog(), node.Network(), now)
		return err
	})
	return rep, err
}

func render(w io.Writer, rep *report.Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		output, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
