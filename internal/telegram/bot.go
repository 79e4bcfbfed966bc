package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

const (
	maxDigestHeadlines = 10
	latestHeadlines    = 5
)

// Sender is the slice of the Bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// HeadlineSource returns the newest translated headlines.
type HeadlineSource func(ctx context.Context, limit int) ([]models.Headline, error)

type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	chatID int64
	latest HeadlineSource
	log    zerolog.Logger
}

func NewBot(token string, chatID int64, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	b := NewBotWithSender(api, chatID, log)
	b.api = api
	return b, nil
}

// NewBotWithSender builds a notifier around an existing sender. A bot built
// this way can send but cannot poll for commands.
func NewBotWithSender(sender Sender, chatID int64, log zerolog.Logger) *Bot {
	return &Bot{sender: sender, chatID: chatID, log: log}
}

func (b *Bot) SetHeadlineSource(fn HeadlineSource) {
	b.latest = fn
}

// Start long-polls for commands until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("telegram bot has no api client")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				b.handleUpdate(ctx, update)
			}
		}
	}()

	b.log.Info().Str("bot", b.api.Self.UserName).Msg("telegram polling started")
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	text := update.Message.Text

	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(chatID)
	case strings.HasPrefix(text, "/latest"):
		b.handleLatest(ctx, chatID)
	case strings.HasPrefix(text, "/help"):
		b.handleHelp(chatID)
	default:
		b.handleUnknownCommand(chatID)
	}
}

func (b *Bot) handleStart(chatID int64) {
	b.sendMessage(chatID, `欢迎! Welcome to pinyinfeed 📰

Singapore news in Chinese, with pinyin and English for every sentence.

/latest - Latest translated headlines
/help - Show this help message`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.sendMessage(chatID, `pinyinfeed help 📖

Commands:
/start - Welcome message
/latest - Latest translated headlines
/help - Show this help

New headlines are posted here after each refresh.`)
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64) {
	if b.latest == nil {
		b.sendMessage(chatID, "Headlines are not available yet.")
		return
	}

	headlines, err := b.latest(ctx, latestHeadlines)
	if err != nil {
		b.log.Warn().Err(err).Msg("loading latest headlines")
		b.sendMessage(chatID, "Could not load headlines, try again later.")
		return
	}
	if len(headlines) == 0 {
		b.sendMessage(chatID, "No translated headlines yet.")
		return
	}

	b.sendMessage(chatID, "📰 Latest headlines\n\n"+formatHeadlines(headlines))
}

func (b *Bot) handleUnknownCommand(chatID int64) {
	b.sendMessage(chatID, "Unknown command. Use /help for available commands.")
}

// SendDigest posts the headlines translated by a refresh run to the
// configured chat. Nothing is sent when headlines is empty.
func (b *Bot) SendDigest(ctx context.Context, report models.RefreshReport, headlines []models.Headline) error {
	if len(headlines) == 0 {
		return nil
	}
	return b.sendMessage(b.chatID, formatDigest(report, headlines))
}

func formatDigest(report models.RefreshReport, headlines []models.Headline) string {
	shown := headlines
	if len(shown) > maxDigestHeadlines {
		shown = shown[:maxDigestHeadlines]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🆕 %d new translated articles\n\n", len(headlines))
	sb.WriteString(formatHeadlines(shown))
	if extra := len(headlines) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "\n…and %d more", extra)
	}
	if report.Failed > 0 {
		fmt.Fprintf(&sb, "\n⚠️ %d failed", report.Failed)
	}
	return sb.String()
}

func formatHeadlines(headlines []models.Headline) string {
	var sb strings.Builder
	for _, h := range headlines {
		fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(h.Title))
		if h.English != "" {
			fmt.Fprintf(&sb, "<i>%s</i>\n", html.EscapeString(h.English))
		}
		fmt.Fprintf(&sb, "🔗 %s\n\n", html.EscapeString(h.Link))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := b.sender.Send(msg)
	if err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send telegram message")
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
