package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestNextStatusLongEntry(t *testing.T) {
	entry := d("27000")
	tp := nd("29000")
	sl := nd("26000")

	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"above entry stays new", "27001", storage.StatusNew},
		{"exactly at entry enters", "27000", storage.StatusEntryHit},
		{"below entry enters", "26999", storage.StatusEntryHit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStatus(storage.StatusNew, storage.DirectionLong, entry, tp, sl, d(tt.price))
			if got != tt.want {
				t.Fatalf("price=%s: got %s want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestNextStatusShortEntry(t *testing.T) {
	entry := d("27000")
	tp := nd("25000")
	sl := nd("28000")

	if got := NextStatus(storage.StatusNew, storage.DirectionShort, entry, tp, sl, d("26999")); got != storage.StatusNew {
		t.Fatalf("below entry should stay new, got %s", got)
	}
	if got := NextStatus(storage.StatusNew, storage.DirectionShort, entry, tp, sl, d("27000")); got != storage.StatusEntryHit {
		t.Fatalf("at entry should enter, got %s", got)
	}
}

func TestNextStatusExits(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		tp, sl    string
		price     string
		want      string
	}{
		{"long take profit", storage.DirectionLong, "29000", "26000", "29000", storage.StatusTPHit},
		{"long stop loss", storage.DirectionLong, "29000", "26000", "25999", storage.StatusSLHit},
		{"long between thresholds stays", storage.DirectionLong, "29000", "26000", "27500", storage.StatusEntryHit},
		{"short take profit", storage.DirectionShort, "25000", "28000", "24900", storage.StatusTPHit},
		{"short stop loss", storage.DirectionShort, "25000", "28000", "28000", storage.StatusSLHit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStatus(storage.StatusEntryHit, tt.direction, d("27000"), nd(tt.tp), nd(tt.sl), d(tt.price))
			if got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

// A tick that crosses both thresholds resolves to stop-loss for either
// direction.
func TestNextStatusStopLossPrecedence(t *testing.T) {
	// Degenerate short setup where one price satisfies both exits.
	got := NextStatus(storage.StatusEntryHit, storage.DirectionShort, d("27000"), nd("26500"), nd("26400"), d("26400"))
	if got != storage.StatusSLHit {
		t.Fatalf("short crossing both: got %s want %s", got, storage.StatusSLHit)
	}

	got = NextStatus(storage.StatusEntryHit, storage.DirectionLong, d("27000"), nd("26400"), nd("26500"), d("26450"))
	if got != storage.StatusSLHit {
		t.Fatalf("long crossing both: got %s want %s", got, storage.StatusSLHit)
	}
}

// A price that gaps through entry and an exit threshold in the same tick
// closes the row immediately: the entry check runs first, then the exit
// checks against the same price.
func TestNextStatusGapThrough(t *testing.T) {
	got := NextStatus(storage.StatusNew, storage.DirectionLong, d("27000"), nd("29000"), nd("26000"), d("25500"))
	if got != storage.StatusSLHit {
		t.Fatalf("long gap through entry and stop: got %s want %s", got, storage.StatusSLHit)
	}

	got = NextStatus(storage.StatusNew, storage.DirectionShort, d("27000"), nd("25000"), nd("28000"), d("28500"))
	if got != storage.StatusSLHit {
		t.Fatalf("short gap through entry and stop: got %s want %s", got, storage.StatusSLHit)
	}
}

func TestNextStatusTerminalStatesNeverChange(t *testing.T) {
	entry := d("27000")
	tp := nd("29000")
	sl := nd("26000")

	for _, status := range []string{storage.StatusTPHit, storage.StatusSLHit, storage.StatusClosed} {
		for _, price := range []string{"25000", "27000", "30000"} {
			if got := NextStatus(status, storage.DirectionLong, entry, tp, sl, d(price)); got != status {
				t.Fatalf("%s at price %s: got %s, terminal states must not move", status, price, got)
			}
		}
	}
}

func TestNextStatusMissingThresholds(t *testing.T) {
	entry := d("27000")
	none := decimal.NullDecimal{}

	// No stop and no take: entered rows stay entered forever.
	got := NextStatus(storage.StatusEntryHit, storage.DirectionLong, entry, none, none, d("1"))
	if got != storage.StatusEntryHit {
		t.Fatalf("no thresholds: got %s want %s", got, storage.StatusEntryHit)
	}

	// Only take profit defined.
	got = NextStatus(storage.StatusEntryHit, storage.DirectionLong, entry, nd("29000"), none, d("29100"))
	if got != storage.StatusTPHit {
		t.Fatalf("tp only: got %s want %s", got, storage.StatusTPHit)
	}
}

// Legacy rows stored with the active status follow the same exit rules
// as entry_hit.
func TestNextStatusLegacyActive(t *testing.T) {
	got := NextStatus(storage.StatusActive, storage.DirectionLong, d("27000"), nd("29000"), nd("26000"), d("29000"))
	if got != storage.StatusTPHit {
		t.Fatalf("active row take profit: got %s want %s", got, storage.StatusTPHit)
	}
}
