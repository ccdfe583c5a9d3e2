package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes page sessions over HTTP: create a session, render it, send events and stream store diffs over SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		idle, _ := cmd.Flags().GetDuration("idle-timeout")
		metrics, _ := cmd.Flags().GetBool("metrics")

		err := cli.Serve(cmd.Context(), cli.ServeOptions{
			EngineOptions: engineOptions(cmd),
			Addr:          ":" + port,
			IdleTimeout:   idle,
			Metrics:       metrics,
		})
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Duration("idle-timeout", 0, "Drop sessions idle for longer than this (0 keeps them)")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
}
