package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/beaconhq/beacon/internal/manifest"
)

func newCompileCmd() *cobra.Command {
	var flags rootFlags
	var outputDir string
	var validationLevel string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a rule set to IR and emit a rules manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _, err := compileRules(flags.rulesPath, flags.configPath, flags.catalogPath, validationLevel)
			if err != nil {
				return err
			}

			m := manifest.Build(program, time.Now())
			path, err := manifest.WriteFile(outputDir, m)
			if err != nil {
				return err
			}

			cmd.Printf("wrote %s (%d rules)\n", path, m.BuildMetrics.TotalRules)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.rulesPath, "rules", "", "path to the rules YAML file (required)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to the system config file")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "path to the sensor catalog JSON file")
	cmd.Flags().StringVar(&validationLevel, "validation-level", "normal", "strict|normal|relaxed")
	cmd.Flags().StringVar(&outputDir, "output", ".", "directory to write compiled artifacts to")
	cmd.MarkFlagRequired("rules")

	return cmd
}
