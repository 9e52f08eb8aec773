// Package telegram adapts the Telegram Bot API to the bot's event model. It
// long-polls for updates, converts them into domain events, and delivers
// outbound messages, optionally with an inline keyboard.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nort67/marketbot/internal/domain"
)

// Gateway wraps a tgbotapi client.
type Gateway struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
	logger      *slog.Logger
}

// New authenticates against the Bot API and returns a Gateway. pollTimeout is
// the long-poll timeout in seconds; zero defaults to 60.
func New(token string, pollTimeout int, logger *slog.Logger) (*Gateway, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token not set")
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	bot.Debug = false

	logger = logger.With(slog.String("component", "telegram"))
	logger.Info("authorized", slog.String("username", bot.Self.UserName))

	return &Gateway{
		bot:         bot,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Events starts long polling and returns a channel of inbound events. The
// channel closes when ctx is cancelled. Updates that are neither text
// messages nor callback queries are dropped.
func (g *Gateway) Events(ctx context.Context) <-chan domain.Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = g.pollTimeout
	updates := g.bot.GetUpdatesChan(u)

	out := make(chan domain.Event, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				g.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := g.convert(update)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					g.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// convert maps a Telegram update onto a domain event. Callback queries are
// acknowledged here so the client's button spinner stops regardless of how
// long the command takes.
func (g *Gateway) convert(update tgbotapi.Update) (domain.Event, bool) {
	switch {
	case update.Message != nil && update.Message.Text != "":
		return domain.Event{
			Kind:   domain.EventMessage,
			ChatID: update.Message.Chat.ID,
			Text:   update.Message.Text,
		}, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		if _, err := g.bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			g.logger.Warn("callback ack failed", slog.String("error", err.Error()))
		}
		return domain.Event{
			Kind:         domain.EventCallback,
			ChatID:       update.CallbackQuery.Message.Chat.ID,
			CallbackData: update.CallbackQuery.Data,
		}, true
	default:
		return domain.Event{}, false
	}
}

// Send delivers one outbound message, attaching an inline keyboard when the
// outbound carries buttons.
func (g *Gateway) Send(_ context.Context, out domain.Outbound) error {
	msg := tgbotapi.NewMessage(out.ChatID, out.Text)

	if len(out.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(out.Buttons))
		for _, row := range out.Buttons {
			btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
			rows = append(rows, btns)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := g.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", out.ChatID, err)
	}
	return nil
}

// SetMenuWebApp points the chat menu button at the web dashboard. tgbotapi
// has no typed config for setChatMenuButton, so the request is built by hand.
func (g *Gateway) SetMenuWebApp(webAppURL string) error {
	if webAppURL == "" {
		return nil
	}

	menu := map[string]any{
		"type": "web_app",
		"text": "🖥️ Open Dashboard",
		"web_app": map[string]string{
			"url": webAppURL,
		},
	}
	encoded, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("telegram: encode menu button: %w", err)
	}

	params := tgbotapi.Params{"menu_button": string(encoded)}
	if _, err := g.bot.MakeRequest("setChatMenuButton", params); err != nil {
		return fmt.Errorf("telegram: set menu button: %w", err)
	}

	g.logger.Info("chat menu button configured", slog.String("url", webAppURL))
	return nil
}
