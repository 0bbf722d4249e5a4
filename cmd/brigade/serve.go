package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	slackchat "github.com/ctfcrew/brigade/internal/chat/slack"
	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/handlers"
	"github.com/ctfcrew/brigade/internal/irc"
	"github.com/ctfcrew/brigade/internal/linksave"
	"github.com/ctfcrew/brigade/internal/server"
	"github.com/ctfcrew/brigade/internal/solvetracker"
	"github.com/ctfcrew/brigade/internal/store"
	syscalltables "github.com/ctfcrew/brigade/internal/syscalls"
	"github.com/ctfcrew/brigade/pkg/models"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath  string
		dataDir     string
		syscallsDir string
		metricsAddr string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the brigade bot",
		Long: `Start the brigade bot against the configured Slack workspace.

The bot connects over Socket Mode, loads the flat-file stores from the data
directory, and registers all command namespaces. Graceful shutdown is handled
on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, dataDir, syscallsDir, metricsAddr, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "Path to JSON configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory for the flat-file stores")
	cmd.Flags().StringVar(&syscallsDir, "syscalls-dir", "syscalls", "Directory with syscall table TSV files")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus /metrics endpoint (disabled when empty)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath, dataDir, syscallsDir, metricsAddr string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	logger := slog.Default()

	conf, err := config.Load(configPath, logger)
	if err != nil {
		return err
	}
	if err := conf.Watch(); err != nil {
		return err
	}
	defer conf.Close()

	botToken := conf.GetString(config.KeyBotToken)
	appToken := conf.GetString(config.KeyAppToken)
	if botToken == "" || appToken == "" {
		return fmt.Errorf("bot_token and app_token are required in %s", configPath)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := slackchat.New(slackchat.Config{BotToken: botToken, AppToken: appToken}, logger)
	if err := backend.Start(ctx); err != nil {
		return err
	}
	defer backend.Stop()

	deps := &handlers.Deps{
		Conf:        conf,
		Logger:      logger,
		CTFs:        store.New[*models.CTF](filepath.Join(dataDir, "ctfs.json")),
		Tournaments: store.New[*models.Tournament](filepath.Join(dataDir, "tournaments.json")),
		Tracker:     solvetracker.New(conf, logger),
		Version:     resolveVersion(),
	}

	if syscallsDir != "" {
		info, err := syscalltables.Load(syscallsDir)
		if err != nil {
			logger.Warn("syscall tables unavailable", "dir", syscallsDir, "error", err)
		} else {
			deps.Syscalls = info
		}
	}

	if dbPath := conf.GetString(config.KeyLinksaveDBPath); dbPath != "" {
		archive, err := linksave.OpenArchive(dbPath)
		if err != nil {
			return fmt.Errorf("open link archive: %w", err)
		}
		defer archive.Close()
		deps.Archive = archive
		deps.Unfurler = linksave.NewUnfurler(10 * time.Second)
		deps.LinksGit = func() (*solvetracker.GitHandler, error) {
			return solvetracker.OpenRepo(conf.GetString(config.KeyLinksaveRepoPath), logger)
		}
	}

	ircStore := store.New[*models.IRCServerInfo](filepath.Join(dataDir, "ircservers.json"))
	ircManager := irc.NewManager(backend, ircStore, conf, logger)
	if err := ircManager.Start(); err != nil {
		return fmt.Errorf("start irc manager: %w", err)
	}
	defer ircManager.Stop()
	deps.IRC = ircManager

	registry := commands.NewRegistry(conf, logger)
	handlers.RegisterAll(registry, deps)

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	rank := server.NewRankWatcher(backend, conf, logger)
	srv := server.New(backend, backend, registry, conf, ircManager, rank, logger)

	logger.Info("brigade started", "version", deps.Version, "bot", backend.Identity().Name)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
