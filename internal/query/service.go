package query

import (
	"context"
	"time"

	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// onlineTimeout bounds the direct-fetch path; stored reads are not
// subject to it.
const onlineTimeout = 2500 * time.Millisecond

// AnnotatedObservation is an online observation with its derived
// warning flags attached.
type AnnotatedObservation struct {
	signalapi.Observation
	Warnings []lifecycle.Warning
}

// Service is the read path exposed to the bot collaborator. OnlineSignal
// never writes to the store; Latest and History never call the upstream
// API.
type Service struct {
	repo    *storage.Repository
	fetcher *signalapi.Client
}

func NewService(repo *storage.Repository, fetcher *signalapi.Client) *Service {
	return &Service{repo: repo, fetcher: fetcher}
}

// OnlineSignal fetches fresh observations for a ticker without
// persisting anything.
func (s *Service) OnlineSignal(ctx context.Context, ticker string) ([]AnnotatedObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, onlineTimeout)
	defer cancel()

	result, err := s.fetcher.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-lifecycle.TrendWindow)
	annotated := make([]AnnotatedObservation, 0, len(result.Observations))
	for _, obs := range result.Observations {
		history, err := s.repo.WindowedByTicker(obs.Ticker, obs.Timeframe, since)
		if err != nil {
			// warnings degrade, the observation itself still returns
			history = nil
		}
		annotated = append(annotated, AnnotatedObservation{
			Observation: obs,
			Warnings:    lifecycle.Annotate(obs, history),
		})
	}
	return annotated, nil
}

// Latest returns the most recent stored row per timeframe.
func (s *Service) Latest(ticker string) ([]storage.Signal, error) {
	return s.repo.Latest(signalapi.NormalizePair(ticker))
}

// History returns past rows for a ticker, newest first, including their
// current status.
func (s *Service) History(ticker string, limit int) ([]storage.Signal, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.History(signalapi.NormalizePair(ticker), limit)
}
