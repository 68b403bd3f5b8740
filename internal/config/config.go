// Package config loads and validates the gateway configuration from TOML.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultWebhookPath    = "/webhook"
	DefaultLanguage       = "es"
	DefaultRateLimit      = 100
	DefaultRateWindowSec  = 60
	DefaultShutdownGrace  = 30
	DefaultQueueSize      = 256
	DefaultWorkers        = 4
	DefaultSearchLimit    = 5
	DefaultMaxDistance    = 0.5
	DefaultTokenTTLMargin = 5 * time.Minute
	DefaultMaxConnections = 40
)

// TelegramAllowedCIDRs are the chat platform's published webhook source ranges.
var TelegramAllowedCIDRs = []string{
	"149.154.160.0/20",
	"91.108.4.0/22",
	"2001:67c:4e8::/48",
	"2001:b28:f23d::/48",
	"2001:b28:f23f::/48",
}

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Filter    FilterConfig    `toml:"filter"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Backends  BackendsConfig  `toml:"backends"`
	HTTP      HTTPConfig      `toml:"http"`
	Retry     RetryConfig     `toml:"retry"`
	Auth      AuthConfig      `toml:"auth"`
	Search    SearchConfig    `toml:"search"`
	I18n      I18nConfig      `toml:"i18n"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr                 string `toml:"addr"`
	ShutdownGraceSeconds int    `toml:"shutdown_grace_seconds" validate:"gte=1,lte=300"`
}

// GracePeriod returns the shutdown grace period as a duration.
func (c ServerConfig) GracePeriod() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

type TelegramConfig struct {
	BotToken           string `toml:"bot_token"`
	WebhookHost        string `toml:"webhook_host"`
	WebhookPath        string `toml:"webhook_path"`
	WebhookSecret      string `toml:"webhook_secret"`
	MaxConnections     int    `toml:"max_connections" validate:"gte=1,lte=100"`
	DropPendingUpdates bool   `toml:"drop_pending_updates"`
	RegisterWebhook    bool   `toml:"register_webhook"`
}

// WebhookURL joins the public host and the webhook path.
func (c TelegramConfig) WebhookURL() string {
	return c.WebhookHost + c.WebhookPath
}

type FilterConfig struct {
	Enabled      bool     `toml:"enabled"`
	AllowedCIDRs []string `toml:"allowed_cidrs"`
}

type RateLimitConfig struct {
	MaxRequests   int `toml:"max_requests" validate:"gte=1"`
	WindowSeconds int `toml:"window_seconds" validate:"gte=1"`
}

// Window returns the sliding window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type BackendsConfig struct {
	TextURL   string `toml:"text_url" validate:"required,url"`
	SpeechURL string `toml:"speech_url" validate:"required,url"`
	VisionURL string `toml:"vision_url" validate:"required,url"`
	SearchURL string `toml:"search_url" validate:"required,url"`
}

type HTTPConfig struct {
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds" validate:"gte=1"`
	ReadTimeoutSeconds    int `toml:"read_timeout_seconds" validate:"gte=1"`
	WriteTimeoutSeconds   int `toml:"write_timeout_seconds" validate:"gte=1"`
	MaxIdleConns          int `toml:"max_idle_conns" validate:"gte=1"`
	MaxConns              int `toml:"max_conns" validate:"gte=1"`
}

func (c HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type RetryConfig struct {
	MaxRetries       int     `toml:"max_retries" validate:"gte=0,lte=10"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds" validate:"gt=0"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds" validate:"gt=0"`
	Jitter           float64 `toml:"jitter" validate:"gte=0,lte=1"`
}

func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySeconds * float64(time.Second))
}

func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds * float64(time.Second))
}

// AuthConfig selects how bearer tokens for backend calls are acquired.
// Mode "metadata" asks the GCE/Cloud Run metadata server for identity tokens,
// "jwt" self-signs HS256 service tokens with the shared secret, and "none"
// sends unauthenticated requests.
type AuthConfig struct {
	Mode             string `toml:"mode" validate:"oneof=metadata jwt none"`
	JWTSecret        string `toml:"jwt_secret"`
	TTLMarginSeconds int    `toml:"ttl_margin_seconds" validate:"gte=0"`
}

func (c AuthConfig) TTLMargin() time.Duration {
	return time.Duration(c.TTLMarginSeconds) * time.Second
}

type SearchConfig struct {
	Limit           int     `toml:"limit" validate:"gte=1,lte=20"`
	MaxDistance     float64 `toml:"max_distance" validate:"gt=0"`
	HighThreshold   float64 `toml:"high_threshold" validate:"gt=0,lte=1"`
	MediumThreshold float64 `toml:"medium_threshold" validate:"gt=0,lte=1"`
	LowThreshold    float64 `toml:"low_threshold" validate:"gt=0,lte=1"`
}

type I18nConfig struct {
	DefaultLanguage    string   `toml:"default_language"`
	SupportedLanguages []string `toml:"supported_languages"`
}

type DispatchConfig struct {
	QueueSize int `toml:"queue_size" validate:"gte=1"`
	Workers   int `toml:"workers" validate:"gte=1,lte=64"`
}

// Load reads the configuration file at path, applying defaults for anything
// the file omits. A missing file yields the pure-default configuration.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:                 DefaultHTTPAddr,
			ShutdownGraceSeconds: DefaultShutdownGrace,
		},
		Telegram: TelegramConfig{
			WebhookPath:        DefaultWebhookPath,
			MaxConnections:     DefaultMaxConnections,
			DropPendingUpdates: true,
			RegisterWebhook:    true,
		},
		Filter: FilterConfig{
			Enabled:      true,
			AllowedCIDRs: TelegramAllowedCIDRs,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   DefaultRateLimit,
			WindowSeconds: DefaultRateWindowSec,
		},
		Backends: BackendsConfig{
			TextURL:   "http://127.0.0.1:8001",
			SpeechURL: "http://127.0.0.1:8002",
			VisionURL: "http://127.0.0.1:8003",
			SearchURL: "http://127.0.0.1:8004",
		},
		HTTP: HTTPConfig{
			ConnectTimeoutSeconds: 10,
			ReadTimeoutSeconds:    60,
			WriteTimeoutSeconds:   10,
			MaxIdleConns:          10,
			MaxConns:              20,
		},
		Retry: RetryConfig{
			MaxRetries:       3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  10,
			Jitter:           0.5,
		},
		Auth: AuthConfig{
			Mode:             "metadata",
			TTLMarginSeconds: int(DefaultTokenTTLMargin / time.Second),
		},
		Search: SearchConfig{
			Limit:           DefaultSearchLimit,
			MaxDistance:     DefaultMaxDistance,
			HighThreshold:   0.75,
			MediumThreshold: 0.60,
			LowThreshold:    0.45,
		},
		I18n: I18nConfig{
			DefaultLanguage:    DefaultLanguage,
			SupportedLanguages: []string{"es", "en", "pt", "fr", "ar"},
		},
		Dispatch: DispatchConfig{
			QueueSize: DefaultQueueSize,
			Workers:   DefaultWorkers,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks invariants that must hold before the gateway starts.
// Violations are fatal startup errors, never per-request failures.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for _, cidr := range c.Filter.AllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("invalid allowed cidr %q: %w", cidr, err)
		}
	}
	s := c.Search
	if !(s.HighThreshold > s.MediumThreshold && s.MediumThreshold > s.LowThreshold) {
		return fmt.Errorf("confidence thresholds must be strictly descending: %.2f, %.2f, %.2f",
			s.HighThreshold, s.MediumThreshold, s.LowThreshold)
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return fmt.Errorf("retry max delay %.1fs is below base delay %.1fs",
			c.Retry.MaxDelaySeconds, c.Retry.BaseDelaySeconds)
	}
	if c.Telegram.RegisterWebhook {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot_token is required when register_webhook is enabled")
		}
		if c.Telegram.WebhookSecret == "" {
			return fmt.Errorf("telegram webhook_secret is required when register_webhook is enabled")
		}
		if c.Telegram.WebhookHost == "" {
			return fmt.Errorf("telegram webhook_host is required when register_webhook is enabled")
		}
	}
	if c.Auth.Mode == "jwt" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required in jwt mode")
	}
	if c.I18n.DefaultLanguage != "" && len(c.I18n.SupportedLanguages) > 0 &&
		!slices.Contains(c.I18n.SupportedLanguages, c.I18n.DefaultLanguage) {
		return fmt.Errorf("i18n default_language %q is not in supported_languages", c.I18n.DefaultLanguage)
	}
	return nil
}
