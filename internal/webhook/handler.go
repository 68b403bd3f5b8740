package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/telegate/telegate/internal/metrics"
)

// Admission outcomes recorded on the webhook request counter.
const (
	outcomeAdmitted     = "admitted"
	outcomeForbidden    = "forbidden"
	outcomeRateLimited  = "rate_limited"
	outcomeUnauthorized = "unauthorized"
	outcomeBadRequest   = "bad_request"
	outcomeQueueFull    = "queue_full"
)

// Handler receives chat platform webhook deliveries. Every request passes the
// address filter, the rate limiter, and the shared-secret check before its
// payload is even parsed; admitted updates are queued and the request is
// acknowledged immediately.
type Handler struct {
	path       string
	secret     string
	filter     *AddressFilter
	limiter    *Limiter
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewHandler(
	log *slog.Logger,
	m *metrics.Metrics,
	path, secret string,
	filter *AddressFilter,
	limiter *Limiter,
	dispatcher *Dispatcher,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		path:       path,
		secret:     secret,
		filter:     filter,
		limiter:    limiter,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     log.With(slog.String("handler", "webhook")),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST(h.path, h.Receive)
}

func (h *Handler) Receive(c echo.Context) error {
	addr := c.RealIP()

	if h.filter != nil && !h.filter.Allowed(addr) {
		h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeForbidden).Inc()
		h.logger.Warn("address rejected", slog.String("addr", addr))
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if !h.limiter.Allow(addr) {
		h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeRateLimited).Inc()
		h.logger.Warn("rate limited", slog.String("addr", addr))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	if !ValidSecret(c.Request().Header.Get(SecretHeader), h.secret) {
		h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeUnauthorized).Inc()
		h.logger.Warn("secret mismatch", slog.String("addr", addr))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid secret token")
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		h.logger.Warn("malformed update", slog.String("addr", addr), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	}

	if !h.dispatcher.Enqueue(&update) {
		h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeQueueFull).Inc()
		h.logger.Warn("queue full, update dropped", slog.Int("update_id", update.UpdateID))
		// Still acknowledged: a retry storm from the platform would only
		// deepen the overload.
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	h.metrics.WebhookRequestsTotal.WithLabelValues(outcomeAdmitted).Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
