package scheduler

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the subset of *tgbotapi.BotAPI used for notifications
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends status updates as replies through a Telegram bot
type TelegramNotifier struct {
	bot MessageSender
}

// NewTelegramNotifier wraps a bot client
func NewTelegramNotifier(bot MessageSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// Notify replies to replyTo in chatID
func (n *TelegramNotifier) Notify(chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}
