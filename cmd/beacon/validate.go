package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var flags rootFlags
	var validationLevel string
	var roundtrip bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a rule set by compiling it, without writing any artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _, err := compileRules(flags.rulesPath, flags.configPath, flags.catalogPath, validationLevel)
			if err != nil {
				return err
			}

			if roundtrip {
				if err := roundtripManifest(program); err != nil {
					return err
				}
				cmd.Println("rules valid (manifest round-trip ok)")
				return nil
			}

			cmd.Println("rules valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.rulesPath, "rules", "", "path to the rules YAML file (required)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to the system config file")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "path to the sensor catalog JSON file")
	cmd.Flags().StringVar(&validationLevel, "validation-level", "normal", "strict|normal|relaxed")
	cmd.Flags().BoolVar(&roundtrip, "roundtrip", false, "load, validate, lower, emit a manifest, re-parse it, and check structural equality")
	cmd.MarkFlagRequired("rules")

	return cmd
}
