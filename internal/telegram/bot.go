// Package telegram is the chat transport: long polling in, replies and
// typing actions out. All game decisions live in the engine; the bot only
// translates updates and replies.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"questmaster/internal/game"
)

// Bot runs one long-polling loop against the Telegram Bot API.
type Bot struct {
	api    *tgbotapi.BotAPI
	engine *game.Engine
	log    zerolog.Logger
}

func NewBot(token string, engine *game.Engine, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{
		api:    api,
		engine: engine,
		log:    log.With().Str("component", "telegram").Logger(),
	}, nil
}

// Run polls for updates until ctx is canceled. Each message is handled in
// its own goroutine; the engine serializes per user internally.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Str("username", b.api.Self.UserName).Msg("long polling started")

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	rsp := &chatResponder{api: b.api, chatID: msg.Chat.ID}

	var err error
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		err = b.engine.Begin(ctx, userID, rsp)
	case msg.IsCommand():
		err = rsp.Send(ctx, game.Reply{Text: "The only command I heed is /start, adventurer."})
	default:
		err = b.engine.HandleMessage(ctx, userID, strings.TrimSpace(msg.Text), rsp)
	}
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("update handling failed")
	}
}

// chatResponder delivers engine replies into one Telegram chat.
type chatResponder struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func (r *chatResponder) Send(_ context.Context, reply game.Reply) error {
	msg := tgbotapi.NewMessage(r.chatID, reply.Text)
	if reply.DiceKeyboard {
		msg.ReplyMarkup = gameKeyboard()
	}
	if _, err := r.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (r *chatResponder) Typing(_ context.Context) {
	// Best effort: a failed chat action never blocks the turn.
	action := tgbotapi.NewChatAction(r.chatID, tgbotapi.ChatTyping)
	_, _ = r.api.Request(action)
}

func gameKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(game.DiceButtonLabel),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
