// Package cli implements the stampede command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:     "stampede",
	Short:   "Scripted load testing with staged virtual-user ramps",
	Version: version,
	Long: `Stampede runs scripted HTTP load tests: virtual users ramp through
time-boxed stages, each iterating a step workflow with response checks and
value extraction, while metrics aggregate into pass/fail thresholds.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. A non-nil return means the process should
// exit non-zero; errFailed is returned silently since the run summary
// already reported the outcome.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(validateCmd)
}
