package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that connects to Discord and
// runs scripts until interrupted.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and run chat scripts",
		Long: `Connect to Discord and run chat scripts.

The server will:
1. Load configuration from the specified file (or neobot.yaml)
2. Start the metrics endpoint when observability.metrics_addr is set
3. Open the Discord session, retrying with backoff
4. Route messages, edits and reactions into the script engine

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  neobot serve

  # Start with a custom config and debug logging
  neobot serve --config /etc/neobot/neobot.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(configPath, cmd.Flags().Changed("config"))
			return runServe(cmd.Context(), path, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

// buildCheckCmd creates the "check" command that compiles a script offline.
func buildCheckCmd() *cobra.Command {
	var (
		fence    string
		watch    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check <file|->",
		Short: "Compile a script and list its hooks",
		Long: `Compile a script without connecting to Discord.

The input is either plain Go source or a whole chat message holding a fenced
block. Side effects are bound to a no-op transport, so nothing is sent.
The command exits non-zero when the script does not compile.`,
		Example: `  neobot check greet.go
  pbpaste | neobot check -
  neobot check --watch greet.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runCheckWatch(cmd.Context(), cmd.OutOrStdout(), args[0], fence, debounce)
			}
			return runCheck(cmd.OutOrStdout(), cmd.InOrStdin(), args[0], fence)
		},
	}

	cmd.Flags().StringVar(&fence, "fence", "neo", "Language tag of the code fence")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-check whenever the file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "Delay before re-checking after a change")
	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd.OutOrStdout())
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.AddCommand(schemaCmd, validateCmd)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "neobot "+versionString())
		},
	}
}
