package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stampede-load/stampede/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Check a config file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d steps, %d stages)\n",
			args[0], len(cfg.Steps), len(cfg.Scenario.Stages))
		return nil
	},
}
