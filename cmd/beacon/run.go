package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/evaluator"
	"github.com/beaconhq/beacon/internal/manifest"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/store"
)

// newRunCmd builds the "beacon" subcommand (spec §6): the one CLI surface
// that goes beyond compiling and actually drives the runtime evaluator,
// since no source-code generation target is in scope (spec §1, Non-goals).
// The "runnable artifact" it emits is the compiled manifest plus a running
// embedded evaluator loop against the configured Store.
func newRunCmd() *cobra.Command {
	var flags rootFlags
	var outputDir string
	var validationLevel string
	var target string

	cmd := &cobra.Command{
		Use:   "beacon",
		Short: "Compile a rule set and run it against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target != "" && target != "embedded" {
				return fmt.Errorf("unsupported target %q: only the embedded in-process runtime is available", target)
			}

			program, cfg, err := compileRules(flags.rulesPath, flags.configPath, flags.catalogPath, validationLevel)
			if err != nil {
				return err
			}

			m := manifest.Build(program, time.Now())
			path, err := manifest.WriteFile(outputDir, m)
			if err != nil {
				return err
			}
			cmd.Printf("wrote %s (%d rules)\n", path, m.BuildMetrics.TotalRules)

			st, err := newStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			ev := evaluator.New(program, st, evaluator.Config{
				CycleTimeMs:        int64(cfg.CycleTime),
				BufferCapacity:     cfg.BufferCapacity,
				ExtendedLastKnown:  cfg.TemporalMode.ExtendedLastKnown,
				GroupParallelRules: true,
			})

			return runLoop(cmd.Context(), ev, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.rulesPath, "rules", "", "path to the rules YAML file (required)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to the system config file")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "path to the sensor catalog JSON file")
	cmd.Flags().StringVar(&validationLevel, "validation-level", "normal", "strict|normal|relaxed")
	cmd.Flags().StringVar(&outputDir, "output", ".", "directory to write compiled artifacts to")
	cmd.Flags().StringVar(&target, "target", "embedded", "runtime target (only \"embedded\" is supported)")
	cmd.MarkFlagRequired("rules")

	return cmd
}

// newStore builds the Store adapter named by cfg.Kind (spec §4.8). Options
// are adapter-specific: disk and bolt both read "path" from cfg.Options.
func newStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "disk":
		path, _ := cfg.Options["path"].(string)
		if path == "" {
			path = "./beacon-data"
		}
		return store.NewDiskStore(afero.NewOsFs(), path)
	case "bolt":
		path, _ := cfg.Options["path"].(string)
		if path == "" {
			path = "./beacon.db"
		}
		return store.OpenBoltStore(path, 2*time.Second)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// runLoop drives RunCycle on a ticker at cfg.CycleTime until interrupted,
// mirroring the teacher's own signal-driven graceful shutdown.
func runLoop(ctx context.Context, ev *evaluator.Evaluator, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	period := time.Duration(cfg.CycleTime) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	observability.Info(ctx, "beacon runtime started", "cycle_time_ms", cfg.CycleTime)

	for {
		select {
		case <-ctx.Done():
			observability.Info(ctx, "beacon runtime stopping")
			return nil
		case t := <-ticker.C:
			report := ev.RunCycle(ctx, t.UnixMilli())
			if report.Aborted {
				observability.Error(ctx, "cycle aborted", "cycle_id", report.CycleID, "err", report.Err)
			}
		}
	}
}
