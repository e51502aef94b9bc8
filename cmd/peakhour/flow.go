package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/emptyOVO/peakhour/batch"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flowModes = map[string]bool{
	"pipeline":  true,
	"benchmark": true,
	"prepare":   true,
	"validate":  true,
}

func newFlowCmd() *cobra.Command {
	var (
		configPath string
		checkOnly  bool
		mode       string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "flow -c flow.json",
		Short: "Run a config-driven source -> peak-hour job -> sink flow",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !flowModes[mode] {
				return usageError{fmt.Errorf("unsupported mode: %s", mode), cmd.UseLine()}
			}
			if configPath == "" {
				return usageError{fmt.Errorf("--config is required"), cmd.UseLine()}
			}
			cfg, err := loadFlowConfig(configPath)
			if err != nil {
				return err
			}
			if err := batch.ValidateFlowConfig(cfg); err != nil {
				return err
			}
			if checkOnly {
				fmt.Println("config check pass")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runFlowMode(ctx, mode, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", getenvDefault("PEAKHOUR_FLOW_CONFIG", ""), "Flow config file path (JSON)")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Validate flow config schema only")
	cmd.Flags().StringVar(&mode, "mode", "pipeline", "pipeline|benchmark|prepare|validate")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Hour, "Upper bound for the whole flow")
	return cmd
}

func runFlowMode(ctx context.Context, mode string, cfg batch.FlowConfig) error {
	switch mode {
	case "pipeline":
		report, err := batch.RunFlow(ctx, cfg)
		if err != nil {
			return err
		}
		logReport(report)
		fmt.Println("flow done")
	case "benchmark":
		result, err := batch.RunFlowBenchmark(ctx, cfg)
		if err != nil {
			return err
		}
		logReport(result.Report)
		fmt.Printf("source=%s transform=%s sink=%s total=%s\n", result.SourceDuration, result.TransformDuration, result.SinkDuration, result.TotalDuration)
	case "prepare":
		if cfg.Source.Type != "mysql" {
			return fmt.Errorf("prepare needs a mysql source, got %s", cfg.Source.Type)
		}
		db, err := batch.OpenForApp(ctx, cfg.Source.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		err = batch.PrepareSyntheticSource(ctx, db, batch.PrepareConfig{
			SourceTable: cfg.Source.Config.Table,
			Rows:        int64(getenvInt("ROWS", 1000000)),
			Categories:  int64(getenvInt("CATEGORIES", 50)),
			Seed:        int64(getenvInt("SEED", 1)),
		})
		if err != nil {
			return err
		}
		fmt.Println("prepare done")
	case "validate":
		if cfg.Source.Type != "mysql" || cfg.Sink.Type != "mysql" {
			return fmt.Errorf("validate needs a mysql source and sink, got %s -> %s", cfg.Source.Type, cfg.Sink.Type)
		}
		sourceDB, err := batch.OpenForApp(ctx, cfg.Source.DB)
		if err != nil {
			return err
		}
		defer sourceDB.Close()
		sinkDB, err := batch.OpenForApp(ctx, cfg.Sink.DB)
		if err != nil {
			return err
		}
		defer sinkDB.Close()
		err = batch.ValidatePeaks(ctx, sourceDB, sinkDB, batch.ValidateConfig{
			Source:   cfg.Source.Config,
			Sink:     cfg.Sink.Config,
			TieBreak: cfg.Transform.TieBreak,
		})
		if err != nil {
			return err
		}
		fmt.Println("validate pass")
	default:
		return usageError{err: fmt.Errorf("unsupported mode: %s", mode)}
	}
	log.Debugf("flow mode %s finished", mode)
	return nil
}

func loadFlowConfig(path string) (batch.FlowConfig, error) {
	var cfg batch.FlowConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}
