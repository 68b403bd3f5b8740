package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/i18n"
	"github.com/telegate/telegate/internal/router"
)

const maxMessageLength = 4096

// Sender delivers assembled results to the chat. Plain replies go out as-is;
// results with a product carousel are rendered as a single HTML message.
type Sender struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func NewSender(log *slog.Logger, bot *tgbotapi.BotAPI) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		bot:    bot,
		logger: log.With(slog.String("service", "sender")),
	}
}

// Deliver sends the result to the chat. A flood-control rejection is retried
// once after the platform's advertised wait.
func (s *Sender) Deliver(ctx context.Context, chatID int64, lang string, result router.Result) error {
	text := result.Reply
	parseMode := ""
	if len(result.Products) > 0 {
		text = renderCarousel(result, lang)
		parseMode = tgbotapi.ModeHTML
	}
	text = truncateText(sanitizeText(text))
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode

	_, err := s.bot.Send(msg)
	if isTooManyRequests(err) {
		wait := retryAfter(err)
		if wait <= 0 {
			wait = time.Second
		}
		s.logger.Warn("flood control, retrying send",
			slog.Int64("chat_id", chatID),
			slog.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		_, err = s.bot.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// renderCarousel formats the reply plus product list as Telegram HTML.
func renderCarousel(result router.Result, lang string) string {
	var b strings.Builder

	if result.ExactMatch {
		b.WriteString(result.Reply)
	} else {
		if result.Reply != "" {
			b.WriteString(html.EscapeString(result.Reply))
			b.WriteString("\n\n")
		}
		b.WriteString(i18n.Message(i18n.KeySimilarHeader, lang))
	}
	b.WriteString("\n")

	for _, p := range result.Products {
		b.WriteString("\n")
		writeProduct(&b, p, result.ExactMatch, lang)
	}

	b.WriteString("\n")
	b.WriteString(i18n.Message(i18n.KeyAskInterest, lang))
	return b.String()
}

func writeProduct(b *strings.Builder, p backend.Product, exact bool, lang string) {
	name := html.EscapeString(p.Name)
	if p.ImageURL != "" {
		fmt.Fprintf(b, "• <b><a href=%q>%s</a></b>", p.ImageURL, name)
	} else {
		fmt.Fprintf(b, "• <b>%s</b>", name)
	}
	if p.Brand != "" {
		fmt.Fprintf(b, " (%s)", html.EscapeString(p.Brand))
	}
	b.WriteString("\n")
	if p.Description != "" {
		fmt.Fprintf(b, "  %s\n", html.EscapeString(p.Description))
	}
	if p.Price > 0 {
		fmt.Fprintf(b, "  💰 $%.2f\n", p.Price)
	} else {
		fmt.Fprintf(b, "  💰 %s\n", i18n.Message(i18n.KeyPriceContact, lang))
	}
	if !exact {
		fmt.Fprintf(b, "  %s: %.0f%%\n", i18n.Message(i18n.KeySimilarityLabel, lang), p.Similarity*100)
	}
	if p.SKU != "" {
		fmt.Fprintf(b, "  SKU: %s\n", html.EscapeString(p.SKU))
	}
}

// sanitizeText strips invalid UTF-8 before handing text to the Bot API.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText cuts text to the platform's message limit on a rune boundary.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
