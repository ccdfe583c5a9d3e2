package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy resolves declarative page documents into renderable node trees",
	Long: `Canopy interprets JSON or YAML page documents: it resolves bindings and
overrides, expands repeaters, fetches data requirements and runs action chains.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Directory containing the page documents")
	flags.Bool("debug", false, "Log lifecycle events at debug level to stderr")
	flags.Bool("validate", false, "Reject pages that fail validation when loading")
	flags.String("redis", "", "Redis address for the shared requirement cache (host:port)")
	flags.String("redis-prefix", "", "Key prefix for the Redis cache")
	flags.StringSlice("cache-pii", nil, "Key patterns (regexp) whose values are never written to the Redis cache")
	flags.String("query-endpoint", "", "URL of the contract query endpoint")
	flags.StringSlice("kinds", nil, "Supported widget kinds; others render as unsupported")
	flags.Duration("fetch-timeout", 0, "Timeout of each data requirement fetch")
}

// engineOptions reads the persistent flags.
func engineOptions(cmd *cobra.Command) cli.EngineOptions {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	debug, _ := flags.GetBool("debug")
	validate, _ := flags.GetBool("validate")
	redisAddr, _ := flags.GetString("redis")
	redisPrefix, _ := flags.GetString("redis-prefix")
	endpoint, _ := flags.GetString("query-endpoint")
	kinds, _ := flags.GetStringSlice("kinds")
	pii, _ := flags.GetStringSlice("cache-pii")
	timeout, _ := flags.GetDuration("fetch-timeout")
	return cli.EngineOptions{
		Dir:           dir,
		Debug:         debug,
		Validate:      validate,
		RedisAddr:     redisAddr,
		RedisPrefix:   redisPrefix,
		QueryEndpoint: endpoint,
		Kinds:         kinds,
		FetchTimeout:  timeout,
		CachePII:      pii,
	}
}

// addSessionFlags registers the flags describing the mounted session.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Int("width", 0, "Viewport width in pixels (selects the breakpoint)")
	cmd.Flags().Int("height", 0, "Viewport height in pixels")
	cmd.Flags().String("locale", "", "Active locale")
	cmd.Flags().String("user", "", "User scope as a JSON object")
	cmd.Flags().Bool("no-settle", false, "Do not wait for pending data requirements")
	cmd.Flags().StringP("output", "o", cli.FormatAuto, "Output format: auto, json or pretty")
}

// renderOptions reads the session flags; args[0], when present, is the page id.
func renderOptions(cmd *cobra.Command, args []string) cli.RenderOptions {
	flags := cmd.Flags()
	opts := cli.RenderOptions{EngineOptions: engineOptions(cmd)}
	if len(args) > 0 {
		opts.PageID = args[0]
	}
	opts.Width, _ = flags.GetInt("width")
	opts.Height, _ = flags.GetInt("height")
	opts.Locale, _ = flags.GetString("locale")
	opts.User, _ = flags.GetString("user")
	opts.NoSettle, _ = flags.GetBool("no-settle")
	opts.Format, _ = flags.GetString("output")
	return opts
}
