// Package bot is the Telegram front-end. Commands become queued requests that the
// scheduler picks up.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/debugsito/scrap-sunat/db"
	"github.com/debugsito/scrap-sunat/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Client is the subset of *tgbotapi.BotAPI the bot uses
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RequestStore queues lookups
type RequestStore interface {
	CreateRequest(userID, chatID int64, telegramMessageID int, search models.SearchRequest) (*db.Request, error)
}

// Bot turns chat commands into queued requests
type Bot struct {
	client  Client
	store   RequestStore
	allowed map[int64]bool
	logger  *zap.Logger
}

// New creates a bot. An empty allowedUsers list lets everyone in.
func New(client Client, store RequestStore, allowedUsers []int64, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{client: client, store: store, allowed: allowed, logger: logger}
}

// Run handles updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	// start from the latest update to skip old ones
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.Offset = -1

	updates := b.client.GetUpdatesChan(updateConfig)
	defer b.client.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}

// NotifyStartup tells the admin chat the service is up
func (b *Bot) NotifyStartup(adminChatID int64) {
	if adminChatID == 0 {
		return
	}
	if _, err := b.client.Send(tgbotapi.NewMessage(adminChatID, "🚀 Servicio iniciado correctamente")); err != nil {
		b.logger.Warn("Warning: failed to send startup notification", zap.Int64("chat_id", adminChatID), zap.Error(err))
	}
}

// HandleUpdate processes one update
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID

	if !b.isAllowed(userID) {
		b.logger.Warn("Unauthorized user attempted to use bot", zap.Int64("user_id", userID))
		b.reply(chatID, "Lo siento, no estás autorizado para usar este bot.")
		return
	}

	command, args := "", msg.Text
	if msg.IsCommand() {
		command, args = msg.Command(), msg.CommandArguments()
	}

	switch command {
	case CommandStart:
		b.reply(chatID, "¡Hola! Envíame un RUC, un nombre o un documento para consultar el padrón de SUNAT.\n\n"+HelpText)
		return
	case CommandHelp:
		b.reply(chatID, HelpText)
		return
	}

	search, err := ParseCommand(command, args)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			b.reply(chatID, fmt.Sprintf("⚠️ %s", verr.Reason))
			return
		}
		b.reply(chatID, "Comando desconocido. Usa /help para ver los comandos disponibles.")
		return
	}

	sent, err := b.client.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("📝 Consulta recibida (%s). Se procesará en breve y recibirás actualizaciones.", search)))
	if err != nil {
		b.logger.Error("Error sending processing message", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	req, err := b.store.CreateRequest(userID, chatID, sent.MessageID, search)
	if err != nil {
		b.logger.Error("Error creating request", zap.Int64("user_id", userID), zap.Error(err))
		edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, fmt.Sprintf("❌ Error: no se pudo registrar la consulta: %v", err))
		if _, err := b.client.Send(edit); err != nil {
			b.logger.Warn("Warning: failed to edit processing message", zap.Error(err))
		}
		return
	}

	b.logger.Info("Created request", zap.Int("request_id", req.ID), zap.Int64("user_id", userID), zap.Stringer("search", search))
}

func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowed) == 0 || b.allowed[userID]
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.client.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("Warning: failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
