package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends trading alerts to the operator channel. Each event has its
// own method so callers pass domain values, not pre-rendered text.
type Notifier interface {
	NotifyCircuitBreaker(at time.Time, dailyPnLPct, limitPct float64) error
	NotifyAutoExit(kind, ticker string, quantity int64, triggerPrice, currentPrice float64, orderNumber string) error
	NotifySessionSummary(sessionType string, executedTrades, toolCalls int, confidence float64, duration time.Duration) error
	NotifyError(errType, errMessage, data string) error
}

type client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient builds a Notifier backed by the Telegram bot API.
func NewClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (c *client) NotifyCircuitBreaker(at time.Time, dailyPnLPct, limitPct float64) error {
	return c.send(FormatCircuitBreakerMessage(at, dailyPnLPct, limitPct))
}

func (c *client) NotifyAutoExit(kind, ticker string, quantity int64, triggerPrice, currentPrice float64, orderNumber string) error {
	return c.send(FormatAutoExitMessage(kind, ticker, quantity, triggerPrice, currentPrice, orderNumber))
}

func (c *client) NotifySessionSummary(sessionType string, executedTrades, toolCalls int, confidence float64, duration time.Duration) error {
	return c.send(FormatSessionSummaryMessage(sessionType, executedTrades, toolCalls, confidence, duration))
}

func (c *client) NotifyError(errType, errMessage, data string) error {
	return c.send(FormatErrorAlertMessage(time.Now(), errType, errMessage, data))
}

func (c *client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return err
}
