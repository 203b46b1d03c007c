// fetchonce runs a single fetch pass outside the scheduler. Useful for
// checking API connectivity and seeding the database before starting
// the bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/forecaster-ua/cryptomaxa/internal/config"
	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ticker := flag.String("ticker", "", "fetch a single ticker instead of the configured list")
	dryRun := flag.Bool("dry-run", false, "print observations without writing to the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	fetcher := signalapi.NewClient(cfg, log)

	tickers := cfg.Tickers
	if *ticker != "" {
		tickers = []string{*ticker}
	}
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "no tickers: pass -ticker or list them in the config")
		os.Exit(1)
	}

	var evaluator *lifecycle.Evaluator
	if !*dryRun {
		db, err := storage.NewDatabase(cfg.Database.Path)
		if err != nil {
			log.Error("database init failed", "error", err)
			os.Exit(1)
		}
		evaluator = lifecycle.NewEvaluator(storage.NewRepository(db), log)
	}

	ctx := context.Background()
	for _, t := range tickers {
		result, err := fetcher.Fetch(ctx, t)
		if err != nil {
			log.Error("fetch failed", "ticker", t, "error", err)
			continue
		}
		for _, skip := range result.Skipped {
			log.Warn("skipped", "ticker", skip.Ticker, "timeframe", skip.Timeframe, "reason", skip.Reason)
		}
		for _, obs := range result.Observations {
			if *dryRun {
				fmt.Printf("%s %s %s entry=%s current=%s conf=%.1f\n",
					obs.Ticker, obs.Timeframe, obs.Direction,
					obs.EntryPrice.String(), obs.CurrentPrice.String(), obs.Confidence)
				continue
			}
			outcome, err := evaluator.Ingest(obs)
			if err != nil {
				log.Error("ingest failed", "ticker", obs.Ticker, "timeframe", obs.Timeframe, "error", err)
				continue
			}
			action := "updated"
			if outcome.Created {
				action = "created"
			} else if outcome.StatusChanged {
				action = fmt.Sprintf("%s -> %s", outcome.OldStatus, outcome.NewStatus)
			}
			fmt.Printf("%s %s: %s\n", obs.Ticker, obs.Timeframe, action)
		}
	}
}
