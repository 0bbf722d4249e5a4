// Package main provides the CLI entry point for the brigade chat-ops bot.
//
// Brigade connects a Slack workspace to the tools a CTF team lives off:
// challenge coordination, IRC bridging, syscall lookup tables, link saving,
// and tournament tracking.
//
// Start the bot:
//
//	brigade serve --config config.json
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=$(git describe --tags --always)"
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "brigade",
		Short:        "Brigade - CTF team chat-ops bot",
		Version:      resolveVersion(),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

// resolveVersion prefers the ldflags version and falls back to the HEAD
// commit of the working tree, so development builds still report something
// usable for !bot version.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return version
	}
	head, err := repo.Head()
	if err != nil {
		return version
	}
	return fmt.Sprintf("dev-%s", head.Hash().String()[:10])
}
