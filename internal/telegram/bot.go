package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/query"
	"github.com/forecaster-ua/cryptomaxa/internal/ratelimit"
	"github.com/forecaster-ua/cryptomaxa/internal/signalapi"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// Bot is the command surface. Every handler is a thin call into the
// query facade or the repository; the heavy lifting lives in the core.
type Bot struct {
	api     *tgbotapi.BotAPI
	repo    *storage.Repository
	query   *query.Service
	limiter *ratelimit.Limiter
	logger  *logger.Logger
}

func NewBot(api *tgbotapi.BotAPI, repo *storage.Repository, qs *query.Service, limiter *ratelimit.Limiter, log *logger.Logger) *Bot {
	return &Bot{
		api:     api,
		repo:    repo,
		query:   qs,
		limiter: limiter,
		logger:  log,
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot listening", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())

	var reply string
	switch msg.Command() {
	case "start":
		reply = b.handleStart(msg)
	case "subscribe":
		reply = b.handleSubscribe(msg, args)
	case "unsubscribe":
		reply = b.handleUnsubscribe(msg, args)
	case "my":
		reply = b.handleMy(msg)
	case "signal":
		reply = b.handleSignal(ctx, msg, args)
	case "last":
		reply = b.handleLast(args)
	case "history":
		reply = b.handleHistory(args)
	default:
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) string {
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	if _, err := b.repo.GetOrCreateUser(msg.Chat.ID, username); err != nil {
		b.logger.Error("get or create user", "error", err)
		return "Temporarily unavailable, try again later."
	}
	return "Welcome. Use /subscribe TICKER [15m|1h], /signal TICKER, /last TICKER, /history TICKER."
}

func (b *Bot) handleSubscribe(msg *tgbotapi.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /subscribe TICKER [15m|1h]"
	}
	frequency := "15m"
	if len(args) > 1 {
		if args[1] != "15m" && args[1] != "1h" {
			return "Frequency must be 15m or 1h."
		}
		frequency = args[1]
	}

	user, err := b.repo.GetOrCreateUser(msg.Chat.ID, userName(msg))
	if err != nil {
		b.logger.Error("get or create user", "error", err)
		return "Temporarily unavailable, try again later."
	}

	pair := signalapi.NormalizePair(args[0])
	if err := b.repo.Subscribe(user.ID, pair, frequency); err != nil {
		b.logger.Error("subscribe", "ticker", pair, "error", err)
		return "Temporarily unavailable, try again later."
	}
	return fmt.Sprintf("Subscribed to %s (%s).", pair, frequency)
}

func (b *Bot) handleUnsubscribe(msg *tgbotapi.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /unsubscribe TICKER"
	}

	user, err := b.repo.GetOrCreateUser(msg.Chat.ID, userName(msg))
	if err != nil {
		return "Temporarily unavailable, try again later."
	}

	pair := signalapi.NormalizePair(args[0])
	removed, err := b.repo.Unsubscribe(user.ID, pair)
	if err != nil {
		b.logger.Error("unsubscribe", "ticker", pair, "error", err)
		return "Temporarily unavailable, try again later."
	}
	if !removed {
		return fmt.Sprintf("No subscription for %s.", pair)
	}
	return fmt.Sprintf("Unsubscribed from %s.", pair)
}

func (b *Bot) handleMy(msg *tgbotapi.Message) string {
	user, err := b.repo.GetOrCreateUser(msg.Chat.ID, userName(msg))
	if err != nil {
		return "Temporarily unavailable, try again later."
	}

	subs, err := b.repo.UserSubscriptions(user.ID)
	if err != nil {
		b.logger.Error("list subscriptions", "error", err)
		return "Temporarily unavailable, try again later."
	}
	if len(subs) == 0 {
		return "No subscriptions yet. Use /subscribe TICKER."
	}

	var sb strings.Builder
	sb.WriteString("Your subscriptions:\n")
	for _, s := range subs {
		fmt.Fprintf(&sb, "• %s (%s)\n", s.Ticker, s.Frequency)
	}
	return sb.String()
}

func (b *Bot) handleSignal(ctx context.Context, msg *tgbotapi.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /signal TICKER"
	}

	if err := b.limiter.Allow(msg.Chat.ID); err != nil {
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			if limitErr.Scope == ratelimit.ScopeGlobal {
				return "🚫 Global /signal limit reached, try again in a minute."
			}
			return fmt.Sprintf("⏱ Too fast, try again in %s.", limitErr.RetryAfter.Round(100*time.Millisecond))
		}
		return "Temporarily unavailable, try again later."
	}

	observations, err := b.query.OnlineSignal(ctx, args[0])
	if err != nil {
		b.logger.Error("online signal", "ticker", args[0], "error", err)
		return "Temporarily unavailable, try again later."
	}
	if len(observations) == 0 {
		return "No signals for that ticker right now."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📡 *%s* (online)\n", observations[0].Ticker)
	for _, o := range observations {
		fmt.Fprintf(&sb, "%s %s entry %s price %s conf %.0f%%",
			o.Timeframe, o.Direction, o.EntryPrice.String(), o.CurrentPrice.String(), o.Confidence)
		for _, w := range o.Warnings {
			fmt.Fprintf(&sb, " ⚠️%s", w)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleLast(args []string) string {
	if len(args) == 0 {
		return "Usage: /last TICKER"
	}

	signals, err := b.query.Latest(args[0])
	if err != nil {
		b.logger.Error("latest signals", "ticker", args[0], "error", err)
		return "Temporarily unavailable, try again later."
	}
	if len(signals) == 0 {
		return "No stored signals for that ticker yet."
	}
	return formatSignalRows(signals)
}

func (b *Bot) handleHistory(args []string) string {
	if len(args) == 0 {
		return "Usage: /history TICKER [count]"
	}
	limit := 10
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	signals, err := b.query.History(args[0], limit)
	if err != nil {
		b.logger.Error("signal history", "ticker", args[0], "error", err)
		return "Temporarily unavailable, try again later."
	}
	if len(signals) == 0 {
		return "No stored signals for that ticker yet."
	}
	return formatSignalRows(signals)
}

func formatSignalRows(signals []storage.Signal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", signals[0].Ticker)
	for _, s := range signals {
		fmt.Fprintf(&sb, "%s %s %s entry %s [%s] %s\n",
			s.CreatedAt.Format("01-02 15:04"), s.Timeframe, s.Direction,
			s.EntryPrice.String(), s.Status, s.CurrentPrice.String())
	}
	return sb.String()
}

func userName(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return msg.From.UserName
	}
	return ""
}
