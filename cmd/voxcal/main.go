// Command voxcal is the voice appointment booking assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voxcal/internal/app"
	"github.com/MrWong99/voxcal/internal/config"
	"github.com/MrWong99/voxcal/internal/observe"
	"github.com/MrWong99/voxcal/pkg/calendar/google"
)

// version is stamped at build time via -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxcal.yaml", "path to the YAML configuration file")
	agentURL := flag.String("url", "", "override agent.url from the config")
	logLevel := flag.String("log-level", "", "override server.log_level (debug, info, warn, error)")
	validateOnly := flag.Bool("validate", false, "validate the configuration and exit")
	authorize := flag.Bool("authorize", false, "run the Google Calendar OAuth consent flow, save the token, and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voxcal", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	// A missing file is not an error: the built-in defaults describe the stock
	// agent, so voxcal runs out of the box with just the API key and a token.
	cfg, err := config.Load(*configPath)
	haveFile := err == nil
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxcal: %v\n", err)
			return 1
		}
		cfg = config.Default()
	}

	// ── Flag overrides ────────────────────────────────────────────────────────
	if *agentURL != "" {
		cfg.Agent.URL = *agentURL
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(*logLevel)
	}
	if *agentURL != "" || *logLevel != "" {
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "voxcal: %v\n", err)
			return 1
		}
	}

	if *validateOnly {
		if !haveFile {
			fmt.Fprintf(os.Stderr, "voxcal: config file %q not found\n", *configPath)
			return 1
		}
		fmt.Printf("%s: configuration valid\n", *configPath)
		return 0
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can change it at
	// runtime without swapping the handler.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !haveFile {
		slog.Info("config file not found, using built-in defaults", "path", *configPath)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Google authorization (one-shot) ───────────────────────────────────────
	if *authorize {
		if err := google.Authorize(ctx, cfg.Calendar.CredentialsFile, cfg.Calendar.TokenFile, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "voxcal: %v\n", err)
			return 1
		}
		return 0
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxcal",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	slog.Info("voxcal starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Application ───────────────────────────────────────────────────────────
	opts := []app.Option{app.WithLogLevel(level)}
	if haveFile {
		opts = append(opts, app.WithConfigFile(*configPath))
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("assistant ready, speak after the greeting; press Ctrl+C to stop")

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	ledger := "(disabled)"
	if cfg.Ledger.DSN != "" {
		ledger = "postgres"
	}

	fmt.Println("╔═════════════════════════════════════╗")
	fmt.Println("║       voxcal startup summary        ║")
	fmt.Println("╠═════════════════════════════════════╣")
	printRow("Agent", cfg.Agent.URL)
	printRow("Listen", cfg.Agent.Listen.Provider+" / "+cfg.Agent.Listen.Model)
	printRow("Think", cfg.Agent.Think.Provider+" / "+cfg.Agent.Think.Model)
	printRow("Speak", cfg.Agent.Speak.Provider+" / "+cfg.Agent.Speak.Model)
	printRow("Calendar", cfg.Calendar.CalendarID)
	printRow("Time zone", cfg.Calendar.TimeZone)
	printRow("Ledger", ledger)
	printRow("Health addr", cfg.Server.ListenAddr)
	fmt.Println("╚═════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 20 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-11s : %-20s ║\n", label, value)
}
