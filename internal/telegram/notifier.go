package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/forecaster-ua/cryptomaxa/internal/lifecycle"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/storage"
)

// Notifier pushes signal updates to subscriber chats. With a nil bot it
// is disabled and every call is a no-op.
type Notifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
	enabled     bool
	logger      *logger.Logger
}

func NewNotifier(bot *tgbotapi.BotAPI, adminChatID int64, log *logger.Logger) *Notifier {
	return &Notifier{
		bot:         bot,
		adminChatID: adminChatID,
		enabled:     bot != nil,
		logger:      log,
	}
}

func (n *Notifier) NotifyTicker(chatID int64, ticker string, outcomes []*lifecycle.Outcome) {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s*\n", ticker)
	for _, o := range outcomes {
		b.WriteString(formatOutcome(o))
	}
	n.send(chatID, b.String())
}

func (n *Notifier) NotifyError(source string, err error) {
	if n.adminChatID == 0 {
		return
	}
	n.send(n.adminChatID, fmt.Sprintf("⚠️ *Error* [%s]\n%v", source, err))
}

func (n *Notifier) NotifyStatus(message string) {
	if n.adminChatID == 0 {
		return
	}
	n.send(n.adminChatID, message)
}

func formatOutcome(o *lifecycle.Outcome) string {
	s := o.Signal
	var b strings.Builder

	emoji := "🟢"
	if s.Direction == storage.DirectionShort {
		emoji = "🔴"
	}
	fmt.Fprintf(&b, "%s %s %s entry %s", emoji, s.Timeframe, s.Direction, s.EntryPrice.String())
	if s.TakeProfit.Valid {
		fmt.Fprintf(&b, " TP %s", s.TakeProfit.Decimal.String())
	}
	if s.StopLoss.Valid {
		fmt.Fprintf(&b, " SL %s", s.StopLoss.Decimal.String())
	}
	fmt.Fprintf(&b, " conf %.0f%%", s.Confidence)

	if o.StatusChanged {
		fmt.Fprintf(&b, "\n   %s → %s @ %s", o.OldStatus, o.NewStatus, s.CurrentPrice.String())
	}
	for _, w := range o.Warnings {
		fmt.Fprintf(&b, "\n   ⚠️ %s", w)
	}
	b.WriteString("\n")
	return b.String()
}

func (n *Notifier) send(chatID int64, text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "chat_id", chatID, "error", err)
	}
}
