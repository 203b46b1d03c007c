package lifecycle

import (
	"time"

	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// Warning is a derived annotation. Warnings are computed per observation
// and never persisted.
type Warning string

const (
	WarnHighConfidence Warning = "high-confidence"
	WarnWeakSignal     Warning = "weak-signal"
	WarnAgainstTrend   Warning = "against-trend"
)

const (
	highConfidenceThreshold = 90.0
	weakSignalThreshold     = 50.0

	// TrendWindow is how far back opposite-direction signals are
	// considered for the against-trend warning.
	TrendWindow = 12 * time.Hour
)

// Annotate derives the warning flags for an observation. history must
// hold the prior observations for the same ticker+timeframe inside the
// trailing trend window (oldest first, as WindowedByTicker returns them).
func Annotate(obs signalapi.Observation, history []storage.Signal) []Warning {
	var warnings []Warning

	if obs.Confidence > highConfidenceThreshold {
		warnings = append(warnings, WarnHighConfidence)
	} else if obs.Confidence < weakSignalThreshold {
		warnings = append(warnings, WarnWeakSignal)
	}

	for _, prior := range history {
		if prior.Direction != obs.Direction && prior.Confidence > highConfidenceThreshold {
			warnings = append(warnings, WarnAgainstTrend)
			break
		}
	}

	return warnings
}
