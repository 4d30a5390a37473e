package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tapflow/tapflow/base/logging"
	"github.com/tapflow/tapflow/tapapp/app"
)

func main() {
	logging.SetTextFormatter()
	rootCmd := &cobra.Command{
		Use:          "tapflow",
		Short:        "tapflow - resumable relational extraction",
		Long:         `tapflow extracts rows from a relational source into a line-delimited message stream or rotating batch files, with resumable checkpoints across restarts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Sync all selected streams of the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := app.NewRunner()
			if err != nil {
				return err
			}
			return runner.Run()
		},
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
