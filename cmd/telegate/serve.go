package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/classify"
	"github.com/telegate/telegate/internal/config"
	"github.com/telegate/telegate/internal/handlers"
	"github.com/telegate/telegate/internal/i18n"
	"github.com/telegate/telegate/internal/logger"
	"github.com/telegate/telegate/internal/metrics"
	"github.com/telegate/telegate/internal/router"
	"github.com/telegate/telegate/internal/server"
	"github.com/telegate/telegate/internal/telegram"
	"github.com/telegate/telegate/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			metrics.New,
			classify.NewClassifier,
			provideTokenSource,
			provideCredentials,
			provideBackendClient,
			provideBot,
			telegram.NewSender,
			telegram.NewDownloader,
			provideRegistrar,
			provideRouter,
			provideAddressFilter,
			provideLimiter,
			provideDispatcher,
			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			applyLocalization,
			startLimiterSweep,
			startDispatcher,
			startWebhookRegistration,
			startBackendWarmup,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func loadConfig() (config.Config, error) {
	path := cfgPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideConfig() (config.Config, error) {
	return loadConfig()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideTokenSource(cfg config.Config) (backend.TokenSource, error) {
	return backend.NewTokenSource(cfg.Auth)
}

func provideCredentials(log *slog.Logger, cfg config.Config, source backend.TokenSource) *backend.Credentials {
	return backend.NewCredentials(log, source, cfg.Auth.TTLMargin())
}

func provideBackendClient(log *slog.Logger, cfg config.Config, creds *backend.Credentials) *backend.Client {
	return backend.NewClient(log, cfg.HTTP, cfg.Retry, cfg.Backends, creds)
}

func provideBot(log *slog.Logger, cfg config.Config) (*tgbotapi.BotAPI, error) {
	return telegram.NewBot(log, cfg.Telegram.BotToken)
}

func provideRegistrar(log *slog.Logger, bot *tgbotapi.BotAPI, cfg config.Config) *telegram.Registrar {
	return telegram.NewRegistrar(log, bot, cfg.Telegram)
}

func provideRouter(
	log *slog.Logger,
	m *metrics.Metrics,
	classifier *classify.Classifier,
	client *backend.Client,
	downloader *telegram.Downloader,
	sender *telegram.Sender,
	cfg config.Config,
) *router.Router {
	return router.New(log, m, classifier, client, downloader, sender, cfg.Search)
}

func provideAddressFilter(cfg config.Config) (*webhook.AddressFilter, error) {
	if !cfg.Filter.Enabled {
		return nil, nil
	}
	return webhook.NewAddressFilter(cfg.Filter.AllowedCIDRs)
}

func provideLimiter(log *slog.Logger, cfg config.Config) *webhook.Limiter {
	return webhook.NewLimiter(log, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
}

func provideDispatcher(log *slog.Logger, m *metrics.Metrics, r *router.Router, cfg config.Config) *webhook.Dispatcher {
	return webhook.NewDispatcher(log, m, r, cfg.Dispatch.QueueSize, cfg.Dispatch.Workers)
}

func provideWebhookHandler(
	log *slog.Logger,
	m *metrics.Metrics,
	cfg config.Config,
	filter *webhook.AddressFilter,
	limiter *webhook.Limiter,
	dispatcher *webhook.Dispatcher,
) *webhook.Handler {
	return webhook.NewHandler(log, m, cfg.Telegram.WebhookPath, cfg.Telegram.WebhookSecret, filter, limiter, dispatcher)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	addr := params.Config.Server.Addr
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		addr = value
	}
	return server.NewServer(params.Logger, addr, params.Handlers...)
}

func applyLocalization(cfg config.Config) {
	i18n.Configure(cfg.I18n.DefaultLanguage, cfg.I18n.SupportedLanguages)
}

func startLimiterSweep(lc fx.Lifecycle, limiter *webhook.Limiter) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { go limiter.Start(ctx); return nil },
		OnStop:  func(_ context.Context) error { cancel(); return nil },
	})
}

func startDispatcher(lc fx.Lifecycle, dispatcher *webhook.Dispatcher, cfg config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { dispatcher.Start(ctx); return nil },
		OnStop: func(_ context.Context) error {
			dropped := dispatcher.Stop(cfg.Server.GracePeriod())
			if dropped > 0 {
				logger.Warn("updates abandoned at shutdown", slog.Int("dropped", dropped))
			}
			cancel()
			return nil
		},
	})
}

func startWebhookRegistration(lc fx.Lifecycle, registrar *telegram.Registrar, cfg config.Config) {
	if !cfg.Telegram.RegisterWebhook {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return registrar.Register(ctx) },
		OnStop:  func(ctx context.Context) error { registrar.Deregister(ctx); return nil },
	})
}

func startBackendWarmup(lc fx.Lifecycle, client *backend.Client) {
	lc.Append(fx.Hook{OnStart: func(_ context.Context) error {
		go client.Warmup(context.Background())
		return nil
	}})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
