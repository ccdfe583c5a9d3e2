package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [page-id]",
	Short: "Resolve a page and print the node tree",
	Long: `Mounts the page, waits until every data requirement settles and prints the
resolved tree. Output is a markdown outline on a terminal and JSON otherwise.
Without a page id, home, index or main is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := renderOptions(cmd, args)
		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			if err := cli.RunWatch(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
				return err
			}
			return nil
		}
		if err := cli.Render(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
			return err
		}
		return nil
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <page-id> <node-id> <event>",
	Short: "Run a node's event handlers and print the report and the new tree",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := renderOptions(cmd, args[:1])
		opts.NodeID = args[1]
		opts.Event = args[2]
		opts.Aux, _ = cmd.Flags().GetString("aux")
		if err := cli.Render(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd, triggerCmd)
	addSessionFlags(renderCmd)
	addSessionFlags(triggerCmd)
	renderCmd.Flags().BoolP("watch", "w", false, "Render again whenever a page document changes")
	triggerCmd.Flags().String("aux", "", `Trigger context as JSON, e.g. {"formData":{"email":"a@b.c"}}`)
}
