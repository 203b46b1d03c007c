package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewRepository(db)
}

func testSignal(ticker, timeframe, status string) *Signal {
	return &Signal{
		Ticker:       ticker,
		Timeframe:    timeframe,
		Direction:    DirectionLong,
		EntryPrice:   decimal.NewFromInt(27000),
		CurrentPrice: decimal.NewFromInt(27100),
		Confidence:   75,
		Status:       status,
	}
}

func TestLatestOpenByTickerTimeframe(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateSignal(testSignal("BTCUSDT", "1h", StatusTPHit)))
	require.NoError(t, repo.CreateSignal(testSignal("BTCUSDT", "4h", StatusNew)))

	open, err := repo.LatestOpenByTickerTimeframe("BTCUSDT", "1h")
	require.NoError(t, err)
	require.Nil(t, open, "terminal rows must not be returned as open")

	require.NoError(t, repo.CreateSignal(testSignal("BTCUSDT", "1h", StatusEntryHit)))

	open, err = repo.LatestOpenByTickerTimeframe("BTCUSDT", "1h")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, StatusEntryHit, open.Status)
	require.Equal(t, "1h", open.Timeframe)
}

func TestUpdateSignalStatusIfOpen(t *testing.T) {
	repo := newTestRepo(t)

	signal := testSignal("BTCUSDT", "1h", StatusEntryHit)
	require.NoError(t, repo.CreateSignal(signal))

	price := decimal.NewFromInt(29000)
	won, err := repo.UpdateSignalStatusIfOpen(signal.ID, StatusTPHit, price)
	require.NoError(t, err)
	require.True(t, won)

	// A second transition attempt loses: the row is already terminal.
	won, err = repo.UpdateSignalStatusIfOpen(signal.ID, StatusSLHit, decimal.NewFromInt(25000))
	require.NoError(t, err)
	require.False(t, won)

	history, err := repo.History("BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, StatusTPHit, history[0].Status)
	require.True(t, history[0].CurrentPrice.Equal(price))
}

func TestUpdateSignalQuoteSkipsClosedRows(t *testing.T) {
	repo := newTestRepo(t)

	signal := testSignal("BTCUSDT", "1h", StatusSLHit)
	require.NoError(t, repo.CreateSignal(signal))

	require.NoError(t, repo.UpdateSignalQuote(signal.ID, decimal.NewFromInt(30000), 99))

	history, err := repo.History("BTCUSDT", 10)
	require.NoError(t, err)
	require.True(t, history[0].CurrentPrice.Equal(decimal.NewFromInt(27100)),
		"closed row must keep its last price")
}

func TestWindowedByTickerBounds(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	inside := testSignal("BTCUSDT", "1h", StatusTPHit)
	inside.CreatedAt = now.Add(-6 * time.Hour)
	require.NoError(t, repo.CreateSignal(inside))

	outside := testSignal("BTCUSDT", "1h", StatusTPHit)
	outside.CreatedAt = now.Add(-13 * time.Hour)
	require.NoError(t, repo.CreateSignal(outside))

	otherTF := testSignal("BTCUSDT", "4h", StatusTPHit)
	otherTF.CreatedAt = now.Add(-1 * time.Hour)
	require.NoError(t, repo.CreateSignal(otherTF))

	window, err := repo.WindowedByTicker("BTCUSDT", "1h", now.Add(-12*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, inside.ID, window[0].ID)
}

func TestLatestOneRowPerTimeframe(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	old1h := testSignal("BTCUSDT", "1h", StatusTPHit)
	old1h.CreatedAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.CreateSignal(old1h))

	new1h := testSignal("BTCUSDT", "1h", StatusNew)
	new1h.CreatedAt = now
	require.NoError(t, repo.CreateSignal(new1h))

	only4h := testSignal("BTCUSDT", "4h", StatusNew)
	only4h.CreatedAt = now
	require.NoError(t, repo.CreateSignal(only4h))

	rows, err := repo.Latest("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byTF := make(map[string]Signal)
	for _, r := range rows {
		byTF[r.Timeframe] = r
	}
	require.Equal(t, new1h.ID, byTF["1h"].ID, "newest row per timeframe wins")
	require.Equal(t, only4h.ID, byTF["4h"].ID)
}

func TestLatestKeepsSlowTimeframeBehindChurn(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	daily := testSignal("BTCUSDT", "1d", StatusEntryHit)
	daily.CreatedAt = now.Add(-30 * 24 * time.Hour)
	require.NoError(t, repo.CreateSignal(daily))

	// A month of quarter-hour churn buries the daily row.
	for i := 0; i < 220; i++ {
		s := testSignal("BTCUSDT", "15m", StatusTPHit)
		s.CreatedAt = now.Add(time.Duration(-i) * 15 * time.Minute)
		require.NoError(t, repo.CreateSignal(s))
	}

	rows, err := repo.Latest("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byTF := make(map[string]Signal)
	for _, r := range rows {
		byTF[r.Timeframe] = r
	}
	require.Contains(t, byTF, "1d")
	require.Equal(t, daily.ID, byTF["1d"].ID)
	require.True(t, byTF["15m"].CreatedAt.Equal(now) || byTF["15m"].CreatedAt.After(now.Add(-time.Minute)),
		"15m slot must hold the newest row")
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		s := testSignal("ETHUSDT", "1h", StatusTPHit)
		s.CreatedAt = now.Add(time.Duration(-i) * time.Hour)
		require.NoError(t, repo.CreateSignal(s))
	}

	history, err := repo.History("ETHUSDT", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.True(t, history[0].CreatedAt.After(history[1].CreatedAt))
	require.True(t, history[1].CreatedAt.After(history[2].CreatedAt))
}

func TestSubscriptions(t *testing.T) {
	repo := newTestRepo(t)

	alice, err := repo.GetOrCreateUser(100, "alice")
	require.NoError(t, err)
	bob, err := repo.GetOrCreateUser(200, "bob")
	require.NoError(t, err)

	require.NoError(t, repo.Subscribe(alice.ID, "BTCUSDT", "15m"))
	require.NoError(t, repo.Subscribe(bob.ID, "BTCUSDT", "1h"))
	require.NoError(t, repo.Subscribe(bob.ID, "ETHUSDT", "15m"))

	// Re-subscribing updates the frequency in place.
	require.NoError(t, repo.Subscribe(alice.ID, "BTCUSDT", "1h"))
	subs, err := repo.UserSubscriptions(alice.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "1h", subs[0].Frequency)

	pairs, err := repo.ListActiveSubscriptions()
	require.NoError(t, err)
	require.Len(t, pairs, 2) // BTCUSDT/1h (both users) and ETHUSDT/15m

	chatIDs, err := repo.SubscribersFor("BTCUSDT", []string{"1h"})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{100, 200}, chatIDs)

	chatIDs, err = repo.SubscribersFor("BTCUSDT", []string{"15m"})
	require.NoError(t, err)
	require.Empty(t, chatIDs)

	removed, err := repo.Unsubscribe(bob.ID, "ETHUSDT")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = repo.Unsubscribe(bob.ID, "ETHUSDT")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestGetOrCreateUserUpdatesUsername(t *testing.T) {
	repo := newTestRepo(t)

	first, err := repo.GetOrCreateUser(300, "old_name")
	require.NoError(t, err)

	second, err := repo.GetOrCreateUser(300, "new_name")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "new_name", second.Username)
}

func TestErrorLogs(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.LogError("fetcher", "status 502"))
	require.NoError(t, repo.LogError("parser", "unknown entry shape"))

	logs, err := repo.RecentErrors(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
}
