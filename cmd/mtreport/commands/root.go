package commands

import (
	"context"
	"fmt"
	"os"

	"mtreport-backend/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	configName string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mtreport",
	Short: "mtreport crawls merchant backend reports into a local store and syncs them with the shared database.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "mtreport.json5", "Name of the config file, searched from the working directory upwards.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
