package main

import (
	"github.com/spf13/cobra"
)

// rootFlags holds the flags shared by every subcommand.
type rootFlags struct {
	rulesPath   string
	configPath  string
	catalogPath string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "beacon",
		Short:         "Compile and run declarative rule sets",
		Long:          "beacon compiles the Beacon rule DSL ahead of time and drives the runtime evaluator (spec §2, §4, §6).",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newCompileCmd())
	root.AddCommand(newRunCmd())

	return root
}
