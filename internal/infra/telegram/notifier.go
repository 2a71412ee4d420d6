package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/domain/ports/adapter"
)

var (
	_ adapter.Notifier = (*Notifier)(nil)
	_ adapter.Notifier = (*NoopNotifier)(nil)
)

// Notifier posts billing events to the operations chat. Constructed once at
// startup and injected.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

func (n *Notifier) PurchaseConfirmed(ctx context.Context, accountID, accountServiceID int64, amount decimal.Decimal, currency string) error {
	text := fmt.Sprintf(
		"New purchase confirmed\nAccount: %d\nSubscription: %d\nAmount: %s %s",
		accountID, accountServiceID, amount.String(), currency,
	)
	msg := tgbotapi.NewMessage(n.chatID, text)
	_, err := n.bot.Send(msg)
	return err
}

// NoopNotifier is used when telegram notifications are disabled in config.
type NoopNotifier struct{}

func (NoopNotifier) PurchaseConfirmed(context.Context, int64, int64, decimal.Decimal, string) error {
	return nil
}
