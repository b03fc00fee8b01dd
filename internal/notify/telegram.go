package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"

	"moodjournal/internal/models"
)

// Telegram pings an operator chat when a payment lands. Delivery is best
// effort; a lost notification never affects the payment itself.
type Telegram struct {
	Bot    *telego.Bot
	ChatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Telegram{Bot: bot, ChatID: chatID}, nil
}

func (t *Telegram) PaymentVerified(ctx context.Context, user *models.User, payment *models.Payment) {
	email := "(no email)"
	if user.Email != nil {
		email = *user.Email
	}
	msg := fmt.Sprintf("💳 Payment verified: %.2f %s\nUser: %s %s\nRef: %s",
		payment.Amount, payment.Currency, user.ID, email, payment.TxRef)

	if _, err := t.Bot.SendMessage(tu.Message(tu.ID(t.ChatID), msg)); err != nil {
		log.Warn().Err(err).Msg("Failed to send payment notification")
	}
}
