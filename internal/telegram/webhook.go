package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/config"
)

// registerAttempts bounds the flood-control retry loop during registration.
const registerAttempts = 5

// Registrar points the Bot API webhook at this gateway on startup and
// removes it on shutdown.
type Registrar struct {
	bot    *tgbotapi.BotAPI
	cfg    config.TelegramConfig
	logger *slog.Logger
}

func NewRegistrar(log *slog.Logger, bot *tgbotapi.BotAPI, cfg config.TelegramConfig) *Registrar {
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{
		bot:    bot,
		cfg:    cfg,
		logger: log.With(slog.String("service", "registrar")),
	}
}

// Register sets the webhook, retrying when the platform answers with flood
// control and honoring its advertised wait.
func (r *Registrar) Register(ctx context.Context) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", r.cfg.WebhookURL())
	params.AddNonEmpty("secret_token", r.cfg.WebhookSecret)
	params.AddNonEmpty("max_connections", strconv.Itoa(r.cfg.MaxConnections))
	params.AddBool("drop_pending_updates", r.cfg.DropPendingUpdates)
	params.AddNonEmpty("allowed_updates", `["message","edited_message"]`)

	var err error
	for attempt := 1; attempt <= registerAttempts; attempt++ {
		_, err = r.bot.MakeRequest("setWebhook", params)
		if err == nil {
			r.logger.Info("webhook registered",
				slog.String("url", r.cfg.WebhookURL()),
				slog.Int("max_connections", r.cfg.MaxConnections))
			return nil
		}
		if !isTooManyRequests(err) {
			return fmt.Errorf("set webhook: %w", err)
		}
		wait := retryAfter(err)
		if wait <= 0 {
			wait = time.Duration(attempt) * time.Second
		}
		r.logger.Warn("flood control on webhook registration",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("set webhook: %w", err)
}

// Deregister removes the webhook. Best effort: a failure here only means the
// platform keeps posting to a gateway that is going away.
func (r *Registrar) Deregister(_ context.Context) {
	params := tgbotapi.Params{}
	params.AddBool("drop_pending_updates", false)
	if _, err := r.bot.MakeRequest("deleteWebhook", params); err != nil {
		r.logger.Warn("webhook removal failed", slog.String("error", err.Error()))
		return
	}
	r.logger.Info("webhook removed")
}
