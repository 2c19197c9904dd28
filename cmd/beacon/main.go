// Command beacon is the CLI driver for the rule compiler and runtime
// evaluator (spec §6): validate, compile, and run a rule set.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
