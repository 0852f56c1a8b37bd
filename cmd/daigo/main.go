package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daigo/pkg/catalog"
	"daigo/pkg/chat"
	"daigo/pkg/checkout"
	"daigo/pkg/config"
	"daigo/pkg/logger"
	"daigo/pkg/remind"
	"daigo/pkg/scrape"
	"daigo/pkg/server"
	"daigo/pkg/store"
	"daigo/pkg/webhook"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("daigo v%s\n", version)
		return
	}

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	configureLogging(cfg)

	if cfg.Chat.AccessToken == "" {
		fmt.Println("⚠ Warning: no chat access token configured, outbound messages will fail")
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	sender := chat.NewClient(cfg.Chat)
	catalogClient := catalog.NewClient(cfg.Catalog)
	reconciler := catalog.NewReconciler(catalogClient, cfg.Catalog.ProbeConcurrency)
	pipeline := scrape.NewPipeline(scrape.NewCatalogStrategy(catalogClient, reconciler), cfg.Scrape)

	handler := webhook.NewHandler(sender, st, pipeline, cfg.Chat.OperatorUserID)
	dispatcher := webhook.NewDispatcher(handler, cfg.Webhook.MaxEventWorkers)
	checker := checkout.NewSyncChecker(catalogClient, cfg.Catalog.ProbeConcurrency)
	submitter := checkout.NewSubmitter(st, sender, cfg.Chat.OperatorUserID)

	srv := server.NewServer(cfg, dispatcher, checker, submitter)
	if err := srv.Start(); err != nil {
		fmt.Printf("Error starting server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)

	var reminder *remind.Reminder
	if cfg.Remind.Enabled {
		reminder = remind.New(st, sender, cfg.Chat.OperatorUserID, cfg.Remind.Spec)
		if err := reminder.Start(); err != nil {
			fmt.Printf("Error starting reminder: %v\n", err)
		} else {
			fmt.Println("✓ Order digest scheduled")
		}
	}

	fmt.Println("Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	if reminder != nil {
		reminder.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.ErrorCF("main", "shutdown failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

func configureLogging(cfg *config.Config) {
	if !cfg.Logging.Enabled {
		logger.DisableFileLogging()
		return
	}
	if err := logger.EnableFileLogging(cfg.LogFilePath(), cfg.Logging.MaxSizeMB); err != nil {
		fmt.Printf("Warning: file logging disabled: %v\n", err)
	}
}
