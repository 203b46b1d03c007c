package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forecaster-ua/cryptomaxa/internal/config"
	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// Notifier pushes cycle results to subscribers. The Telegram notifier
// implements it; a nil notifier disables pushes.
type Notifier interface {
	NotifyTicker(chatID int64, ticker string, outcomes []*lifecycle.Outcome)
	NotifyError(source string, err error)
}

// Stats is a snapshot of scheduler counters for the status endpoint.
type Stats struct {
	Running         bool          `json:"running"`
	TotalRuns       int           `json:"total_runs"`
	SuccessfulRuns  int           `json:"successful_runs"`
	FailedRuns      int           `json:"failed_runs"`
	SkippedTriggers int           `json:"skipped_triggers"`
	LastRunAt       time.Time     `json:"last_run_at"`
	LastDuration    time.Duration `json:"last_duration"`
	LastSaved       int           `json:"last_saved"`
	LastUpdated     int           `json:"last_updated"`
	LastErrors      int           `json:"last_errors"`
}

// Scheduler drives the fetch/evaluate/persist cycle on quarter-hour UTC
// boundaries. It is a two-state machine (idle/running): a trigger firing
// while a cycle is in flight is dropped, never queued.
type Scheduler struct {
	fetcher   *signalapi.Client
	evaluator *lifecycle.Evaluator
	repo      *storage.Repository
	notifier  Notifier
	config    *config.Config
	logger    *logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

func NewScheduler(
	fetcher *signalapi.Client,
	evaluator *lifecycle.Evaluator,
	repo *storage.Repository,
	notifier Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		fetcher:   fetcher,
		evaluator: evaluator,
		repo:      repo,
		notifier:  notifier,
		config:    cfg,
		logger:    log,
	}
}

// NextBoundary returns the next wall-clock instant aligned to the
// interval in UTC. With a 15m interval that is the next :00/:15/:30/:45.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval).Add(interval)
}

// Run blocks until ctx is cancelled. Cancellation halts further
// triggers; an in-flight cycle is left to finish (see Stop).
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.config.FetchInterval()
	s.logger.Info("scheduler started", "interval", interval.String())

	// Run immediately on start
	s.trigger(time.Now().UTC())

	timer := time.NewTimer(time.Until(NextBoundary(time.Now(), interval)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			s.trigger(time.Now().UTC())
			timer.Reset(time.Until(NextBoundary(time.Now(), interval)))
		}
	}
}

// Stop waits for an in-flight cycle to finish. Call after cancelling the
// Run context.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

// trigger starts a cycle unless one is already running, in which case
// the trigger is dropped.
func (s *Scheduler) trigger(fireAt time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous cycle still running, trigger skipped")
		s.statsMu.Lock()
		s.stats.SkippedTriggers++
		s.statsMu.Unlock()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runCycle(fireAt)
	}()
}

func (s *Scheduler) runCycle(fireAt time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduler cycle", "panic", fmt.Sprint(r))
			if s.notifier != nil {
				s.notifier.NotifyError("scheduler", fmt.Errorf("%v", r))
			}
		}
	}()

	interval := s.config.FetchInterval()
	start := time.Now()

	s.statsMu.Lock()
	s.stats.TotalRuns++
	s.stats.LastRunAt = fireAt
	s.statsMu.Unlock()

	s.logger.Info("cycle started", "at", fireAt.Format(time.RFC3339))

	tickers, err := s.cycleTickers()
	if err != nil {
		// store unreachable is the one fatal cycle condition; the next
		// scheduled cycle still attempts to run
		s.logger.Error("list cycle tickers", "error", err)
		s.finishCycle(start, false, 0, 0, 1)
		return
	}

	results := s.fetchAll(tickers, start, interval)

	var saved, updated, failures int
	byTicker := make(map[string][]*lifecycle.Outcome)

	for _, res := range results {
		if res.err != nil {
			failures++
			s.logger.Error("fetch signals", "ticker", res.ticker, "error", res.err)
			s.logStoreError("fetcher", res.err)
			continue
		}
		for _, skip := range res.result.Skipped {
			failures++
			s.logStoreError("parser", skip)
		}
		for _, obs := range res.result.Observations {
			outcome, err := s.evaluator.Ingest(obs)
			if err != nil {
				failures++
				s.logger.Error("ingest observation", "ticker", obs.Ticker, "timeframe", obs.Timeframe, "error", err)
				s.logStoreError("evaluator", err)
				continue
			}
			if outcome.Created {
				saved++
			} else if outcome.StatusChanged {
				updated++
			}
			if outcome.Created || outcome.StatusChanged {
				byTicker[obs.Ticker] = append(byTicker[obs.Ticker], outcome)
			}
		}
	}

	s.notifySubscribers(fireAt, byTicker)

	duration := time.Since(start)
	if duration > interval {
		s.logger.Warn("cycle exceeded interval", "duration", duration.String(), "interval", interval.String())
	}
	s.logger.Info("cycle completed", "duration", duration.String(),
		"tickers", len(tickers), "saved", saved, "updated", updated, "errors", failures)

	s.finishCycle(start, true, saved, updated, failures)
}

func (s *Scheduler) finishCycle(start time.Time, ok bool, saved, updated, failures int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if ok {
		s.stats.SuccessfulRuns++
	} else {
		s.stats.FailedRuns++
	}
	s.stats.LastDuration = time.Since(start)
	s.stats.LastSaved = saved
	s.stats.LastUpdated = updated
	s.stats.LastErrors = failures
}

// cycleTickers merges the configured list with every ticker at least one
// user is subscribed to.
func (s *Scheduler) cycleTickers() ([]string, error) {
	seen := make(map[string]bool)
	var tickers []string

	for _, t := range s.config.Tickers {
		pair := signalapi.NormalizePair(t)
		if !seen[pair] {
			seen[pair] = true
			tickers = append(tickers, pair)
		}
	}

	pairs, err := s.repo.ListActiveSubscriptions()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	for _, p := range pairs {
		pair := signalapi.NormalizePair(p.Ticker)
		if !seen[pair] {
			seen[pair] = true
			tickers = append(tickers, pair)
		}
	}
	return tickers, nil
}

type fetchResult struct {
	ticker string
	result *signalapi.Result
	err    error
}

// fetchAll runs one fetch per ticker through a bounded worker pool.
// Results that land past the safety margin are discarded; the fetches
// themselves are never cancelled mid-flight beyond the per-call timeout.
func (s *Scheduler) fetchAll(tickers []string, start time.Time, interval time.Duration) []fetchResult {
	concurrency := s.config.Scheduler.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	margin := interval + interval/2

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
		results []fetchResult
	)

	for _, ticker := range tickers {
		wg.Add(1)
		sem <- struct{}{}

		go func(t string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.fetcher.Fetch(context.Background(), t)
			if elapsed := time.Since(start); elapsed > margin {
				s.logger.Warn("fetch result past safety margin, discarded", "ticker", t, "elapsed", elapsed.String())
				return
			}

			mu.Lock()
			results = append(results, fetchResult{ticker: t, result: result, err: err})
			mu.Unlock()
		}(ticker)
	}

	wg.Wait()
	return results
}

// notifySubscribers pushes changed tickers to matching subscribers.
// 15m subscriptions fire every cycle; 1h subscriptions only on cycles
// starting at the top of the hour.
func (s *Scheduler) notifySubscribers(fireAt time.Time, byTicker map[string][]*lifecycle.Outcome) {
	if s.notifier == nil || len(byTicker) == 0 {
		return
	}

	frequencies := []string{"15m"}
	if fireAt.Minute() == 0 {
		frequencies = append(frequencies, "1h")
	}

	for ticker, outcomes := range byTicker {
		chatIDs, err := s.repo.SubscribersFor(ticker, frequencies)
		if err != nil {
			s.logger.Error("list subscribers", "ticker", ticker, "error", err)
			continue
		}
		for _, chatID := range chatIDs {
			s.notifier.NotifyTicker(chatID, ticker, outcomes)
		}
	}
}

func (s *Scheduler) logStoreError(source string, err error) {
	if dbErr := s.repo.LogError(source, err.Error()); dbErr != nil {
		s.logger.Error("write error log", "source", source, "error", dbErr)
	}
}

// Status returns a snapshot of the run counters.
func (s *Scheduler) Status() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	snapshot := s.stats
	snapshot.Running = s.running.Load()
	return snapshot
}
