package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

func TestFormatOutcome(t *testing.T) {
	signal := &storage.Signal{
		Ticker:       "BTCUSDT",
		Timeframe:    "1h",
		Direction:    storage.DirectionLong,
		EntryPrice:   decimal.NewFromInt(27000),
		TakeProfit:   decimal.NullDecimal{Decimal: decimal.NewFromInt(29000), Valid: true},
		StopLoss:     decimal.NullDecimal{Decimal: decimal.NewFromInt(26000), Valid: true},
		Confidence:   87,
		CurrentPrice: decimal.NewFromInt(29050),
	}
	outcome := &lifecycle.Outcome{
		StatusChanged: true,
		OldStatus:     storage.StatusEntryHit,
		NewStatus:     storage.StatusTPHit,
		Signal:        signal,
		Warnings:      []lifecycle.Warning{lifecycle.WarnAgainstTrend},
	}

	got := formatOutcome(outcome)

	for _, want := range []string{"🟢", "1h", "LONG", "27000", "TP 29000", "SL 26000", "87%", "entry_hit", "tp_hit", "29050", "against-trend"} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatted outcome missing %q:\n%s", want, got)
		}
	}
}

func TestFormatOutcomeShortWithoutThresholds(t *testing.T) {
	outcome := &lifecycle.Outcome{
		Signal: &storage.Signal{
			Timeframe:    "4h",
			Direction:    storage.DirectionShort,
			EntryPrice:   decimal.NewFromInt(1850),
			Confidence:   60,
			CurrentPrice: decimal.NewFromInt(1840),
		},
	}

	got := formatOutcome(outcome)

	if !strings.Contains(got, "🔴") {
		t.Fatalf("short outcome should use the red marker:\n%s", got)
	}
	if strings.Contains(got, "TP") || strings.Contains(got, "SL") {
		t.Fatalf("absent thresholds must not render:\n%s", got)
	}
	if strings.Contains(got, "→") {
		t.Fatalf("unchanged status must not render a transition:\n%s", got)
	}
}

func TestFormatSignalRows(t *testing.T) {
	signals := []storage.Signal{
		{
			Ticker:       "ETHUSDT",
			Timeframe:    "15m",
			Direction:    storage.DirectionShort,
			EntryPrice:   decimal.NewFromInt(1850),
			CurrentPrice: decimal.NewFromInt(1790),
			Status:       storage.StatusTPHit,
			CreatedAt:    time.Date(2026, time.March, 1, 12, 15, 0, 0, time.UTC),
		},
	}

	got := formatSignalRows(signals)

	for _, want := range []string{"ETHUSDT", "15m", "SHORT", "1850", "tp_hit", "03-01 12:15"} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatted rows missing %q:\n%s", want, got)
		}
	}
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	n := NewNotifier(nil, 0, nil)

	// Must not panic with a nil bot and nil logger.
	n.NotifyTicker(1, "BTCUSDT", nil)
	n.NotifyError("scheduler", nil)
	n.NotifyStatus("up")
}
