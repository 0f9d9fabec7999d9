package transport

import (
	"context"
	"strings"

	"wb/parser/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const usageText = "Send a catalog category link and I will build a keyword frequency report for it."

// Bot is the Telegram front end: it long-polls for updates and starts one
// parsing session per incoming category link. Duplicate-run protection
// lives in the service, so every link can just be dispatched.
type Bot struct {
	api         *tgbotapi.BotAPI
	service     *service.Service
	pollTimeout int
}

func NewBot(api *tgbotapi.BotAPI, svc *service.Service, pollTimeout int) *Bot {
	return &Bot{
		api:         api,
		service:     svc,
		pollTimeout: pollTimeout,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	log.Infof("🚀 Bot @%s is listening for updates", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		b.reply(chatID, usageText)
	case strings.Contains(msg.Text, "/catalog/"):
		link := strings.TrimSpace(msg.Text)
		log.Infof("📥 User %d requested %s", chatID, link)
		// Sessions run concurrently across users; the shared task queue
		// keeps the catalog load bounded.
		go b.service.Start(ctx, chatID, link)
	default:
		b.reply(chatID, usageText)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Errorf("❌ Failed to reply to chat %d: %v", chatID, err)
	}
}
