package signalapi

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// The upstream returns a JSON array of per-timeframe entries in one of
// two shapes: signal fields nested under a main_signal object, or
// flattened onto the entry itself. Both decode into timeframeEntry and
// are dispatched by explicit shape detection; an entry matching neither
// shape fails closed as a ParseError.

type timeframeEntry struct {
	Timeframe    string          `json:"timeframe"`
	CurrentPrice *float64        `json:"current_price"`
	MainSignal   json.RawMessage `json:"main_signal"`

	// flattened shape
	Signal     string   `json:"signal"`
	EntryPrice *float64 `json:"entry_price"`
	TakeProfit *float64 `json:"take_profit"`
	StopLoss   *float64 `json:"stop_loss"`
	Confidence *float64 `json:"confidence"`
	RiskReward *float64 `json:"risk_reward"`
}

type nestedSignal struct {
	Signal     string   `json:"signal"`
	Type       string   `json:"type"`
	Entry      *float64 `json:"entry"`
	EntryPrice *float64 `json:"entry_price"`
	TakeProfit *float64 `json:"take_profit"`
	StopLoss   *float64 `json:"stop_loss"`
	Confidence *float64 `json:"confidence"`
	RiskReward *float64 `json:"risk_reward"`
}

var validTimeframes = map[string]bool{"15m": true, "1h": true, "4h": true, "1d": true}

// ParseResponse normalizes a raw multi_signal body. Entries that cannot
// be normalized land in Skipped; they never fail the rest of the batch.
func ParseResponse(data []byte, pair string) *Result {
	result := &Result{}

	var entries []timeframeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		result.Skipped = append(result.Skipped, &ParseError{Ticker: pair, Reason: "response is not a signal array"})
		return result
	}

	for _, entry := range entries {
		obs, perr := normalizeEntry(entry, pair)
		if perr != nil {
			result.Skipped = append(result.Skipped, perr)
			continue
		}
		if obs != nil {
			result.Observations = append(result.Observations, *obs)
		}
	}
	return result
}

func normalizeEntry(entry timeframeEntry, pair string) (*Observation, *ParseError) {
	if !validTimeframes[entry.Timeframe] {
		return nil, &ParseError{Ticker: pair, Timeframe: entry.Timeframe, Reason: "missing or unknown timeframe"}
	}

	switch {
	case len(entry.MainSignal) > 0 && string(entry.MainSignal) != "null":
		return normalizeNested(entry, pair)
	case entry.Signal != "" || entry.EntryPrice != nil:
		return normalizeFlat(entry, pair)
	default:
		return nil, &ParseError{Ticker: pair, Timeframe: entry.Timeframe, Reason: "unknown entry shape"}
	}
}

func normalizeNested(entry timeframeEntry, pair string) (*Observation, *ParseError) {
	var nested nestedSignal
	if err := json.Unmarshal(entry.MainSignal, &nested); err != nil {
		return nil, &ParseError{Ticker: pair, Timeframe: entry.Timeframe, Reason: "malformed main_signal object"}
	}

	direction := nested.Signal
	if direction == "" {
		direction = nested.Type
	}

	entryPrice := nested.EntryPrice
	if entryPrice == nil {
		entryPrice = nested.Entry
	}

	return buildObservation(pair, entry.Timeframe, direction, entryPrice,
		nested.TakeProfit, nested.StopLoss, nested.Confidence, nested.RiskReward, entry.CurrentPrice)
}

func normalizeFlat(entry timeframeEntry, pair string) (*Observation, *ParseError) {
	return buildObservation(pair, entry.Timeframe, entry.Signal, entry.EntryPrice,
		entry.TakeProfit, entry.StopLoss, entry.Confidence, entry.RiskReward, entry.CurrentPrice)
}

func buildObservation(pair, timeframe, direction string, entryPrice, takeProfit, stopLoss, confidence, riskReward, currentPrice *float64) (*Observation, *ParseError) {
	dir := normalizeDirection(direction)
	if dir == "" {
		return nil, &ParseError{Ticker: pair, Timeframe: timeframe, Reason: "unsupported direction " + strings.TrimSpace(direction)}
	}
	if entryPrice == nil {
		return nil, &ParseError{Ticker: pair, Timeframe: timeframe, Reason: "missing entry price"}
	}

	obs := &Observation{
		Ticker:     pair,
		Timeframe:  timeframe,
		Direction:  dir,
		EntryPrice: decimal.NewFromFloat(*entryPrice),
		TakeProfit: nullDecimal(takeProfit),
		StopLoss:   nullDecimal(stopLoss),
		RiskReward: nullDecimal(riskReward),
	}
	if confidence != nil {
		obs.Confidence = *confidence
	}
	if currentPrice != nil {
		obs.CurrentPrice = decimal.NewFromFloat(*currentPrice)
	} else {
		obs.CurrentPrice = obs.EntryPrice
	}
	return obs, nil
}

func normalizeDirection(direction string) string {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "LONG", "BUY", "1", "UP", "BULL", "BULLISH":
		return "LONG"
	case "SHORT", "SELL", "-1", "DOWN", "BEAR", "BEARISH":
		return "SHORT"
	default:
		return ""
	}
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*v), Valid: true}
}
