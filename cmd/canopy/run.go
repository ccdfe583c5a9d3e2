package main

import (
	"os"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [page-id]",
	Short: "Drive a page session with JSON-lines events on stdin",
	Long: `Mounts the page and prints its tree as one JSON line. Every line read from
stdin is an event ({"type":"trigger","nodeId":"buy","event":"click"}, viewport,
locale, form or render); the report and the re-rendered tree are printed as
JSON lines.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.RunStream(cmd.Context(), renderOptions(cmd, args), os.Stdin, cmd.OutOrStdout()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSessionFlags(runCmd)
}
