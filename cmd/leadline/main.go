// Package main provides the CLI entry point for the leadline call
// engine.
//
// Leadline captures sales leads from a web form, places an automated
// outbound voice call a couple of minutes later, runs a short tiered
// conversation, and records whether the lead sounded interested.
//
// # Basic Usage
//
// Start the server:
//
//	leadline serve --config leadline.yaml
//
// # Environment Variables
//
// Secrets are usually injected through ${VAR} expansion in the config
// file:
//
//   - TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN: telephony credentials
//   - OPENAI_API_KEY: completion and speech synthesis key
//   - ELEVENLABS_API_KEY: alternative speech synthesis key
//   - SLACK_BOT_TOKEN: admin alert channel token
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/leadline/internal/callflow"
	"github.com/haasonsaas/leadline/internal/config"
	"github.com/haasonsaas/leadline/internal/dialogue"
	"github.com/haasonsaas/leadline/internal/intent"
	"github.com/haasonsaas/leadline/internal/leads"
	"github.com/haasonsaas/leadline/internal/llm"
	"github.com/haasonsaas/leadline/internal/notify"
	"github.com/haasonsaas/leadline/internal/observability"
	"github.com/haasonsaas/leadline/internal/scheduler"
	"github.com/haasonsaas/leadline/internal/sessions"
	"github.com/haasonsaas/leadline/internal/telephony"
	"github.com/haasonsaas/leadline/internal/tts"
	"github.com/haasonsaas/leadline/internal/web"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "leadline",
		Short:         "Outbound voice call engine for web-captured sales leads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the call engine server",
		Long: `Start the HTTP server, the delayed call scheduler, and the
session sweeper. Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  leadline serve

  # Start with custom config
  leadline serve --config /etc/leadline/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadline.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leadline %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func runServe(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	logger := observability.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	logger.Info("starting leadline", "version", version, "commit", commit)

	leadStore, closeStore, err := openLeadStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	callDelay, sweepInterval, sessionTTL, err := cfg.Scheduler.Durations()
	if err != nil {
		return err
	}
	sessionStore := sessions.NewStore(sessionTTL)

	twilio, err := telephony.New(cfg.Twilio)
	if err != nil {
		return err
	}

	// Without a completion key the generative dialogue tier and the
	// LLM intent path are skipped; the rule tables still carry the call.
	var completer *llm.Client
	if cfg.LLM.APIKey != "" {
		completer, err = llm.NewClient(cfg.LLM)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no completion API key configured, rule tiers only")
	}
	var dialogueCompleter dialogue.Completer
	var intentCompleter intent.Completer
	if completer != nil {
		dialogueCompleter = observability.MeterCompletion(completer, metrics.LLMRequestDuration, "dialogue")
		intentCompleter = observability.MeterCompletion(completer, metrics.LLMRequestDuration, "intent")
	}

	if cfg.TTS.AudioDir != "" {
		if err := os.MkdirAll(cfg.TTS.AudioDir, 0o755); err != nil {
			return fmt.Errorf("creating audio dir: %w", err)
		}
	}
	synth, err := tts.NewSynthesizer(cfg.TTS, cfg.Server.PublicURL)
	if err != nil {
		return err
	}
	voice, err := tts.NewDispatcher(cfg.TTS, synth, logger)
	if err != nil {
		return err
	}
	voice.SetObserver(func(engine, status string) {
		metrics.SynthesisRequests.WithLabelValues(engine, status).Inc()
	})

	machine, err := callflow.NewMachine(cfg.Call, callflow.Deps{
		Leads:      leadStore,
		Sessions:   sessionStore,
		Policy:     dialogue.NewEngine(cfg.Dialogue, dialogueCompleter, logger),
		Classifier: intent.NewClassifier(intentCompleter, logger),
		Voice:      voice,
		Notifier:   buildNotifier(cfg.Notify, twilio, logger),
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(
		scheduler.Config{CallDelay: callDelay, SweepInterval: sweepInterval},
		twilio, leadStore, sessionStore, cfg.Server.PublicURL, logger, metrics)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	serverOpts := web.Options{
		Addr:      cfg.Server.Addr(),
		PublicURL: cfg.Server.PublicURL,
		AudioDir:  cfg.TTS.AudioDir,
		Machine:   machine,
		Leads:     leadStore,
		Scheduler: sched,
		Metrics:   promhttp.Handler(),
		Logger:    logger,
	}
	if cfg.Twilio.VerifySignatures {
		serverOpts.Verifier = twilio
	}
	server, err := web.NewServer(serverOpts)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func openLeadStore(cfg config.StorageConfig) (leads.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := leads.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return leads.NewMemoryStore(), func() {}, nil
	}
}

// buildNotifier wires every alert channel with credentials configured.
func buildNotifier(cfg config.NotifyConfig, sender notify.SMSSender, logger *slog.Logger) notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.AdminPhone != "" {
		sms, err := notify.NewSMSNotifier(sender, cfg.AdminPhone)
		if err != nil {
			logger.Warn("sms notifier disabled", "error", err)
		} else {
			notifiers = append(notifiers, sms)
		}
	}
	if cfg.Slack.BotToken != "" && cfg.Slack.ChannelID != "" {
		sl, err := notify.NewSlackNotifier(cfg.Slack)
		if err != nil {
			logger.Warn("slack notifier disabled", "error", err)
		} else {
			notifiers = append(notifiers, sl)
		}
	}

	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewMulti(logger, notifiers...)
}
