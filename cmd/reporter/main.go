package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nstr_report/internal/compose"
	"nstr_report/internal/config"
	"nstr_report/internal/domain"
	"nstr_report/internal/identity"
	"nstr_report/internal/publisher"
	"nstr_report/internal/scheduler"
	"nstr_report/internal/service"
	"nstr_report/internal/source/discourse"
	"nstr_report/internal/storage/sqlite"
	"nstr_report/internal/summarizer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "print the signed report without publishing or writing state")
	showConfig := flag.Bool("show-config", false, "print the resolved configuration and exit")
	daemon := flag.Bool("daemon", false, "keep running, publishing once per configured interval")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	keys, err := identity.LoadOrCreate(cfg.Identity.KeyFile, logger)
	if err != nil {
		logger.Error("failed to load identity", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open state db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	seenStore := sqlite.NewSeenStore(db)
	reportLog := sqlite.NewReportLog(db)

	if *showConfig {
		printConfig(cfg, keys, reportLog)
		return
	}

	// Initialize the forum source
	forum := discourse.New(discourse.Config{
		BaseURL:        cfg.Source.BaseURL,
		Lookback:       cfg.Source.Lookback,
		Timeout:        cfg.Source.Timeout,
		MaxAttempts:    cfg.Source.Retry.MaxAttempts,
		InitialBackoff: cfg.Source.Retry.InitialBackoff,
		MaxBackoff:     cfg.Source.Retry.MaxBackoff,
	}, logger)

	var summaryClient service.Summarizer
	if cfg.Summarizer.Enabled {
		summaryClient = summarizer.New(summarizer.Config{
			BaseURL:   cfg.Summarizer.BaseURL,
			APIKey:    cfg.Summarizer.APIKey,
			Model:     cfg.Summarizer.Model,
			MaxTokens: cfg.Summarizer.MaxTokens,
			Timeout:   cfg.Summarizer.Timeout,
		}, logger)
	}

	relayPublisher := publisher.New(publisher.Policy{
		MaxAttempts:    cfg.Publish.Retry.MaxAttempts,
		InitialBackoff: cfg.Publish.Retry.InitialBackoff,
		MaxBackoff:     cfg.Publish.Retry.MaxBackoff,
		AckTimeout:     cfg.Publish.AckTimeout,
		Deadline:       cfg.Publish.Deadline,
		MinAcks:        cfg.Publish.MinAcks,
	}, logger)

	composer := compose.New(compose.Config{
		Heading:   cfg.Report.Heading,
		SourceURL: cfg.Report.SourceURL,
	})

	reportService := service.NewReportService(
		forum,
		seenStore,
		reportLog,
		summaryClient,
		composer,
		keys,
		relayPublisher,
		logger,
		cfg.Publish,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *dryRun {
		event, _, err := reportService.DryRun(ctx)
		if err != nil {
			logger.Error("dry run failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("--- Report (dry run) ---")
		fmt.Println(event.Content)
		fmt.Println("--- End report ---")
		fmt.Printf("Event ID: %s\n", event.ID)
		return
	}

	if *daemon {
		sched := scheduler.NewScheduler(reportService, cfg.Schedule.Interval, logger)

		logger.Info("starting report daemon",
			"interval", cfg.Schedule.Interval,
			"relays", len(cfg.Publish.Relays),
			"min_acks", cfg.Publish.MinAcks,
		)

		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler error", "error", err)
			os.Exit(1)
		}
		return
	}

	stats, err := reportService.Run(ctx)
	if err != nil {
		logger.Error("report run failed", "error", err, "state", stats.State)
		os.Exit(1)
	}

	if stats.State == domain.StateDone {
		fmt.Printf("Published. Event ID: %s\n", stats.EventID)
		if npub, err := keys.Npub(); err == nil {
			fmt.Printf("View at: https://njump.me/%s\n", npub)
		}
	}
}

func printConfig(cfg *config.Config, keys *identity.Keypair, reports *sqlite.ReportLog) {
	npub, err := keys.Npub()
	if err != nil {
		npub = fmt.Sprintf("(invalid: %v)", err)
	}

	fmt.Printf("Key file: %s\n", cfg.Identity.KeyFile)
	fmt.Printf("Public key: %s\n", npub)
	fmt.Printf("State db: %s\n", cfg.Storage.Path)
	fmt.Printf("Source URL: %s\n", cfg.Source.BaseURL)
	fmt.Printf("Lookback: %s\n", cfg.Source.Lookback)
	fmt.Printf("Relays: %s\n", strings.Join(cfg.Publish.Relays, ", "))
	fmt.Printf("Min acks: %d\n", cfg.Publish.MinAcks)
	if cfg.Summarizer.Enabled {
		fmt.Println("Anthropic API key: set")
	} else {
		fmt.Println("Summarizer: disabled")
	}

	last, err := reports.Last(context.Background())
	switch {
	case err != nil:
		fmt.Printf("Last report: unavailable (%v)\n", err)
	case last == nil:
		fmt.Println("Last report: none")
	default:
		fmt.Printf("Last report: %s (event %s, %d topics, %d acks)\n",
			last.PublishedAt.UTC().Format("2006-01-02"), last.EventID, last.TopicCount, last.Acked)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
