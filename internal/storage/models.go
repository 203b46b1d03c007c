package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal statuses. new and entry_hit are open, tp_hit and sl_hit are
// terminal. active is a coarse alias for the open set kept for
// compatibility with older rows.
const (
	StatusNew      = "new"
	StatusEntryHit = "entry_hit"
	StatusTPHit    = "tp_hit"
	StatusSLHit    = "sl_hit"
	StatusActive   = "active"
	StatusClosed   = "closed"
)

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// OpenStatuses lists every non-terminal status.
var OpenStatuses = []string{StatusNew, StatusEntryHit, StatusActive}

func IsTerminal(status string) bool {
	return status == StatusTPHit || status == StatusSLHit || status == StatusClosed
}

type User struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	TelegramID    int64     `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username      string    `gorm:"size:255" json:"username"`
	SubscribedAll bool      `gorm:"default:false" json:"subscribed_all"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Subscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_ticker" json:"user_id"`
	Ticker    string    `gorm:"size:20;not null;uniqueIndex:idx_user_ticker" json:"ticker"`
	Frequency string    `gorm:"size:10;not null;default:'15m'" json:"frequency"` // 15m or 1h
	CreatedAt time.Time `json:"created_at"`
}

type Signal struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Ticker    string `gorm:"size:20;not null;index:idx_signals_ticker_tf" json:"ticker"`
	Timeframe string `gorm:"size:10;not null;index:idx_signals_ticker_tf" json:"timeframe"`
	Direction string `gorm:"size:10;not null" json:"direction"` // LONG or SHORT

	EntryPrice   decimal.Decimal     `gorm:"type:numeric;not null" json:"entry_price"`
	TakeProfit   decimal.NullDecimal `gorm:"type:numeric" json:"take_profit"`
	StopLoss     decimal.NullDecimal `gorm:"type:numeric" json:"stop_loss"`
	Confidence   float64             `json:"confidence"` // 0-100
	RiskReward   decimal.NullDecimal `gorm:"type:numeric" json:"risk_reward"`
	CurrentPrice decimal.Decimal     `gorm:"type:numeric" json:"current_price"`

	Status    string    `gorm:"size:20;not null;default:'new';index" json:"status"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (s *Signal) IsOpen() bool {
	return !IsTerminal(s.Status)
}

type ErrorLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Source    string    `gorm:"size:50" json:"source"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
