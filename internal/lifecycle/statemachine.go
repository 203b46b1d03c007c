package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// NextStatus computes the status a signal row moves to when the given
// price is observed. Transitions are one-directional:
//
//	new -> entry_hit -> {tp_hit, sl_hit}
//
// From new, the entry check runs first; if it fires, the exit checks
// run against the same price, so a price that gapped through entry and
// a threshold in one tick still closes the row. When stop and take are
// both crossed, stop-loss wins. Terminal states never change.
func NextStatus(status, direction string, entry decimal.Decimal, takeProfit, stopLoss decimal.NullDecimal, price decimal.Decimal) string {
	switch status {
	case storage.StatusNew:
		if !entryHit(direction, price, entry) {
			return storage.StatusNew
		}
		if exit := exitStatus(direction, price, takeProfit, stopLoss); exit != "" {
			return exit
		}
		return storage.StatusEntryHit

	case storage.StatusEntryHit, storage.StatusActive:
		if exit := exitStatus(direction, price, takeProfit, stopLoss); exit != "" {
			return exit
		}
		return status
	}

	return status
}

func entryHit(direction string, price, entry decimal.Decimal) bool {
	switch direction {
	case storage.DirectionLong:
		return price.Cmp(entry) <= 0
	case storage.DirectionShort:
		return price.Cmp(entry) >= 0
	}
	return false
}

// exitStatus returns sl_hit or tp_hit when a threshold is crossed, with
// stop-loss taking precedence, or "" when the position stays open.
func exitStatus(direction string, price decimal.Decimal, takeProfit, stopLoss decimal.NullDecimal) string {
	switch direction {
	case storage.DirectionLong:
		if stopLoss.Valid && price.Cmp(stopLoss.Decimal) <= 0 {
			return storage.StatusSLHit
		}
		if takeProfit.Valid && price.Cmp(takeProfit.Decimal) >= 0 {
			return storage.StatusTPHit
		}
	case storage.DirectionShort:
		if stopLoss.Valid && price.Cmp(stopLoss.Decimal) >= 0 {
			return storage.StatusSLHit
		}
		if takeProfit.Valid && price.Cmp(takeProfit.Decimal) <= 0 {
			return storage.StatusTPHit
		}
	}
	return ""
}
