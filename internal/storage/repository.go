package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SubscriptionPair is one distinct (ticker, frequency) users are subscribed to.
type SubscriptionPair struct {
	Ticker    string
	Frequency string
}

// Signals

func (r *Repository) CreateSignal(signal *Signal) error {
	return r.db.Create(signal).Error
}

// LatestOpenByTickerTimeframe returns the newest non-terminal row for the
// pair, or nil when every stored row is closed.
func (r *Repository) LatestOpenByTickerTimeframe(ticker, timeframe string) (*Signal, error) {
	var signal Signal
	err := r.db.Where("ticker = ? AND timeframe = ? AND status IN ?", ticker, timeframe, OpenStatuses).
		Order("created_at DESC, id DESC").First(&signal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &signal, nil
}

// Latest returns the most recent stored row per timeframe for a ticker.
// One query per stored timeframe, so a rarely written timeframe is never
// shadowed by churn on a faster one.
func (r *Repository) Latest(ticker string) ([]Signal, error) {
	var timeframes []string
	err := r.db.Model(&Signal{}).Where("ticker = ?", ticker).
		Distinct().Order("timeframe ASC").Pluck("timeframe", &timeframes).Error
	if err != nil {
		return nil, err
	}

	result := make([]Signal, 0, len(timeframes))
	for _, tf := range timeframes {
		var s Signal
		err := r.db.Where("ticker = ? AND timeframe = ?", ticker, tf).
			Order("created_at DESC, id DESC").First(&s).Error
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *Repository) History(ticker string, limit int) ([]Signal, error) {
	var rows []Signal
	err := r.db.Where("ticker = ?", ticker).
		Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// WindowedByTicker returns every observation for the pair created at or
// after since, oldest first.
func (r *Repository) WindowedByTicker(ticker, timeframe string, since time.Time) ([]Signal, error) {
	var rows []Signal
	err := r.db.Where("ticker = ? AND timeframe = ? AND created_at >= ?", ticker, timeframe, since).
		Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

// UpdateSignalStatusIfOpen advances a row's status only if it is still
// open. The conditional WHERE makes the transition atomic with respect
// to concurrent evaluators; the return value reports whether this caller
// won the update.
func (r *Repository) UpdateSignalStatusIfOpen(id uint, status string, currentPrice decimal.Decimal) (bool, error) {
	res := r.db.Model(&Signal{}).
		Where("id = ? AND status IN ?", id, OpenStatuses).
		Updates(map[string]any{"status": status, "current_price": currentPrice})
	return res.RowsAffected > 0, res.Error
}

// UpdateSignalQuote refreshes the observed price and confidence of an
// open row without touching its status.
func (r *Repository) UpdateSignalQuote(id uint, currentPrice decimal.Decimal, confidence float64) error {
	return r.db.Model(&Signal{}).
		Where("id = ? AND status IN ?", id, OpenStatuses).
		Updates(map[string]any{"current_price": currentPrice, "confidence": confidence}).Error
}

// Users and subscriptions

func (r *Repository) GetOrCreateUser(telegramID int64, username string) (*User, error) {
	var user User
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{TelegramID: telegramID, Username: username}
		if err := r.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	if username != "" && user.Username != username {
		user.Username = username
		if err := r.db.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// Subscribe creates or updates a user's subscription to a ticker.
func (r *Repository) Subscribe(userID uint, ticker, frequency string) error {
	var sub Subscription
	err := r.db.Where("user_id = ? AND ticker = ?", userID, ticker).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&Subscription{UserID: userID, Ticker: ticker, Frequency: frequency}).Error
	}
	if err != nil {
		return err
	}
	sub.Frequency = frequency
	return r.db.Save(&sub).Error
}

func (r *Repository) Unsubscribe(userID uint, ticker string) (bool, error) {
	res := r.db.Where("user_id = ? AND ticker = ?", userID, ticker).Delete(&Subscription{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) UserSubscriptions(userID uint) ([]Subscription, error) {
	var subs []Subscription
	err := r.db.Where("user_id = ?", userID).Order("ticker ASC").Find(&subs).Error
	return subs, err
}

// ListActiveSubscriptions returns the distinct (ticker, frequency)
// pairs at least one user is subscribed to.
func (r *Repository) ListActiveSubscriptions() ([]SubscriptionPair, error) {
	var pairs []SubscriptionPair
	err := r.db.Model(&Subscription{}).
		Distinct("ticker", "frequency").
		Order("ticker ASC").
		Find(&pairs).Error
	return pairs, err
}

// SubscribersFor returns the Telegram chat IDs subscribed to a ticker at
// one of the given frequencies.
func (r *Repository) SubscribersFor(ticker string, frequencies []string) ([]int64, error) {
	var chatIDs []int64
	err := r.db.Model(&Subscription{}).
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Where("subscriptions.ticker = ? AND subscriptions.frequency IN ?", ticker, frequencies).
		Pluck("users.telegram_id", &chatIDs).Error
	return chatIDs, err
}

// Error logs

func (r *Repository) LogError(source, message string) error {
	return r.db.Create(&ErrorLog{Source: source, Message: message}).Error
}

func (r *Repository) RecentErrors(limit int) ([]ErrorLog, error) {
	var logs []ErrorLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
