package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// EvaluationError is a per-row failure. It never aborts the batch for
// other rows.
type EvaluationError struct {
	Ticker    string
	Timeframe string
	Reason    string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate signal %s %s: %s", e.Ticker, e.Timeframe, e.Reason)
}

// Outcome describes what ingesting one observation did.
type Outcome struct {
	Created       bool
	StatusChanged bool
	OldStatus     string
	NewStatus     string
	Signal        *storage.Signal
	Warnings      []Warning
}

// Evaluator applies newly observed prices to stored signals. The
// read-modify-write of the open row is serialized per (ticker,
// timeframe) key; the store's conditional update backs this up against
// concurrent processes.
type Evaluator struct {
	repo   *storage.Repository
	logger *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEvaluator(repo *storage.Repository, log *logger.Logger) *Evaluator {
	return &Evaluator{
		repo:   repo,
		logger: log,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (e *Evaluator) keyLock(ticker, timeframe string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := ticker + "/" + timeframe
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// Ingest applies one observation: it advances the open row for the
// ticker+timeframe if one exists, or opens a fresh row otherwise. At
// most one open row per pair exists at any time.
func (e *Evaluator) Ingest(obs signalapi.Observation) (*Outcome, error) {
	if obs.EntryPrice.IsZero() {
		return nil, &EvaluationError{Ticker: obs.Ticker, Timeframe: obs.Timeframe, Reason: "missing entry price"}
	}
	if obs.Direction != storage.DirectionLong && obs.Direction != storage.DirectionShort {
		return nil, &EvaluationError{Ticker: obs.Ticker, Timeframe: obs.Timeframe, Reason: "unknown direction " + obs.Direction}
	}

	lock := e.keyLock(obs.Ticker, obs.Timeframe)
	lock.Lock()
	defer lock.Unlock()

	open, err := e.repo.LatestOpenByTickerTimeframe(obs.Ticker, obs.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("lookup open signal: %w", err)
	}

	outcome := &Outcome{}
	if open == nil {
		signal, err := e.openRow(obs)
		if err != nil {
			return nil, err
		}
		outcome.Created = true
		outcome.OldStatus = storage.StatusNew
		outcome.NewStatus = signal.Status
		outcome.StatusChanged = signal.Status != storage.StatusNew
		outcome.Signal = signal
	} else {
		if err := e.advanceRow(open, obs, outcome); err != nil {
			return nil, err
		}
	}

	selfID := outcome.Signal.ID
	if !outcome.Created && outcome.Signal.Direction != obs.Direction {
		// the observation landed on a row tracking the opposite signal;
		// that row is prior history for trend purposes, not self
		selfID = 0
	}
	outcome.Warnings, err = e.annotate(obs, selfID)
	if err != nil {
		// annotation is best effort; the ingested row is already stored
		e.logger.Warn("annotate signal", "ticker", obs.Ticker, "timeframe", obs.Timeframe, "error", err)
	}
	return outcome, nil
}

// openRow inserts a fresh row. The entry and exit checks run against the
// observed price immediately so a price that already crossed a threshold
// is classified on creation rather than one cycle late.
func (e *Evaluator) openRow(obs signalapi.Observation) (*storage.Signal, error) {
	status := NextStatus(storage.StatusNew, obs.Direction, obs.EntryPrice, obs.TakeProfit, obs.StopLoss, obs.CurrentPrice)

	signal := &storage.Signal{
		Ticker:       obs.Ticker,
		Timeframe:    obs.Timeframe,
		Direction:    obs.Direction,
		EntryPrice:   obs.EntryPrice,
		TakeProfit:   obs.TakeProfit,
		StopLoss:     obs.StopLoss,
		Confidence:   obs.Confidence,
		RiskReward:   obs.RiskReward,
		CurrentPrice: obs.CurrentPrice,
		Status:       status,
	}
	if err := e.repo.CreateSignal(signal); err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}

	e.logger.Info("signal opened", "ticker", obs.Ticker, "timeframe", obs.Timeframe,
		"direction", obs.Direction, "status", status)
	return signal, nil
}

func (e *Evaluator) advanceRow(open *storage.Signal, obs signalapi.Observation, outcome *Outcome) error {
	next := NextStatus(open.Status, open.Direction, open.EntryPrice, open.TakeProfit, open.StopLoss, obs.CurrentPrice)

	outcome.OldStatus = open.Status
	outcome.NewStatus = next
	outcome.Signal = open

	if next == open.Status {
		// An opposite-direction observation still moves the quote, but
		// its confidence belongs to a different signal than the row's.
		confidence := open.Confidence
		if obs.Direction == open.Direction {
			confidence = obs.Confidence
		}
		if err := e.repo.UpdateSignalQuote(open.ID, obs.CurrentPrice, confidence); err != nil {
			return fmt.Errorf("refresh signal quote: %w", err)
		}
		open.CurrentPrice = obs.CurrentPrice
		open.Confidence = confidence
		return nil
	}

	won, err := e.repo.UpdateSignalStatusIfOpen(open.ID, next, obs.CurrentPrice)
	if err != nil {
		return fmt.Errorf("update signal status: %w", err)
	}
	if !won {
		// another evaluator closed the row between our read and write
		e.logger.Debug("signal already transitioned", "ticker", obs.Ticker, "timeframe", obs.Timeframe)
		return nil
	}

	open.Status = next
	open.CurrentPrice = obs.CurrentPrice
	outcome.StatusChanged = true

	e.logger.Info("signal transition", "ticker", obs.Ticker, "timeframe", obs.Timeframe,
		"from", outcome.OldStatus, "to", next, "price", obs.CurrentPrice.String())
	return nil
}

// annotate computes the derived warnings against the trailing trend
// window, excluding the row the observation itself landed on.
func (e *Evaluator) annotate(obs signalapi.Observation, selfID uint) ([]Warning, error) {
	since := time.Now().UTC().Add(-TrendWindow)
	window, err := e.repo.WindowedByTicker(obs.Ticker, obs.Timeframe, since)
	if err != nil {
		return nil, err
	}

	history := window[:0:0]
	for _, s := range window {
		if s.ID != selfID {
			history = append(history, s)
		}
	}
	return Annotate(obs, history), nil
}
