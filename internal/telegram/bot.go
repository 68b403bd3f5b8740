// Package telegram is the chat-platform adapter: outbound delivery, media
// downloads, and webhook registration against the Bot API.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBot authenticates against the Bot API and routes the library's own
// logging through slog.
func NewBot(log *slog.Logger, token string) (*tgbotapi.BotAPI, error) {
	if log == nil {
		log = slog.Default()
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log.With(slog.String("service", "botapi"))})
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authenticate bot: %w", err)
	}
	log.Info("bot authenticated", slog.String("username", bot.Self.UserName))
	return bot, nil
}

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(fmt.Sprint(v...))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

// apiError extracts the Bot API error from err. The library surfaces
// *tgbotapi.Error; hand-built errors may be values, so both forms match.
func apiError(err error) (tgbotapi.Error, bool) {
	var ptrErr *tgbotapi.Error
	if errors.As(err, &ptrErr) {
		return *ptrErr, true
	}
	var valErr tgbotapi.Error
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return tgbotapi.Error{}, false
}

func isTooManyRequests(err error) bool {
	apiErr, ok := apiError(err)
	return ok && apiErr.Code == 429
}

func retryAfter(err error) time.Duration {
	if apiErr, ok := apiError(err); ok && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}
