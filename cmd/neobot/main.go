// Package main provides the CLI entry point for neobot, a Discord bot whose
// behaviour is written by its users as Go scripts posted in chat.
//
// # Basic Usage
//
// Start the bot:
//
//	neobot serve --config neobot.yaml
//
// Compile a script offline and list the hooks it defines:
//
//	neobot check greet.go
//	neobot check --watch greet.go
//
// Print the configuration JSON Schema:
//
//	neobot config schema
//
// # Environment Variables
//
//   - NEOBOT_CONFIG: Path to configuration file (default: neobot.yaml)
//   - NEOBOT_DISCORD_TOKEN: Discord bot token (DISCORD_API_TOKEN is also read)
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "neobot.yaml"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neobot",
		Short: "neobot - a Discord bot programmed from chat",
		Long: `neobot watches Discord channels for fenced code blocks tagged "neo".
Each block is compiled into a sandboxed script that reacts to later messages
in the same channel. Editing the message replaces the script, deleting the
block removes it, and the author toggles it with reactions.`,
		Version:      versionString(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildCheckCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// resolveConfigPath prefers an explicit flag, then NEOBOT_CONFIG, then the
// default file when it exists. An empty result means built-in defaults.
func resolveConfigPath(path string, explicit bool) string {
	if explicit {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("NEOBOT_CONFIG")); env != "" {
		return env
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
