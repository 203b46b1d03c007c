package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/forecaster-ua/cryptomaxa/internal/config"
	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/query"
	"github.com/forecaster-ua/cryptomaxa/internal/ratelimit"
	"github.com/forecaster-ua/cryptomaxa/internal/scheduler"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
	"github.com/forecaster-ua/cryptomaxa/internal/telegram"
	"github.com/forecaster-ua/cryptomaxa/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level)
	log.Info("starting cryptomaxa", "tickers", len(cfg.Tickers))

	// Init database
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init telegram bot API once, shared by the notifier and the
	// command listener
	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Enabled {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Error("telegram bot init failed", "error", err)
			os.Exit(1)
		}
		log.Info("telegram bot connected", "username", botAPI.Self.UserName)
	}

	// Init services
	fetcher := signalapi.NewClient(cfg, log)
	evaluator := lifecycle.NewEvaluator(repo, log)
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram.AdminChatID, log)
	queryService := query.NewService(repo, fetcher)
	limiter := ratelimit.New(cfg.CallerCooldown(), cfg.GlobalWindow(), cfg.RateLimit.GlobalLimit)
	sched := scheduler.NewScheduler(fetcher, evaluator, repo, notifier, cfg, log)
	webServer := web.NewServer(sched, queryService, cfg, log)

	// Start scheduler in goroutine
	go sched.Run(ctx)

	// Start command listener in goroutine
	if botAPI != nil {
		bot := telegram.NewBot(botAPI, repo, queryService, limiter, log)
		go bot.Run(ctx)
	}

	// Start web server in goroutine
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus("🤖 Cryptomaxa started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown: stop triggering new cycles, let an in-flight
	// cycle finish, then stop the web server
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	notifier.NotifyStatus("🛑 Cryptomaxa stopped")
	log.Info("cryptomaxa stopped")
}
