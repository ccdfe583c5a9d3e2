package main

import (
	"fmt"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [page-id...]",
	Short: "Check page documents for consistency",
	Long:  `Reports duplicate node ids, unknown node or action types, sections with both children and a repeater, malformed data requirements and dangling placeholder references.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		allow, _ := cmd.Flags().GetStringSlice("allow-action")
		if err := cli.Validate(dir, args, allow, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("validation failed:\n%w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pages are valid! ✅")
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [page-id]",
	Short: "Export the page structure as a Mermaid diagram",
	Long:  `Outputs a Mermaid flowchart (graph TD) of the page: containment, repeater templates, placeholder references and action targets.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overlay, _ := cmd.Flags().GetBool("overlay")
		if err := cli.Graph(cmd.Context(), renderOptions(cmd, args), overlay, cmd.OutOrStdout()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, graphCmd)
	validateCmd.Flags().StringSlice("allow-action", nil, "Host-defined action types to accept")
	addSessionFlags(graphCmd)
	graphCmd.Flags().Bool("overlay", false, "Render the page and style hidden and loading nodes")
}
