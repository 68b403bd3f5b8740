// Package backend provides the authenticated, retrying HTTP client for the
// processing backends (text understanding, speech transcription, image
// analysis, vector similarity search) and the per-audience credential cache.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telegate/telegate/internal/config"
)

// ErrLowConfidence signals that the transcription backend could not
// confidently understand the audio. It is a permanent, non-retryable outcome.
var ErrLowConfidence = errors.New("low confidence transcription")

const (
	lowConfidenceCode = "low_confidence"
	clientID          = "telegram-bot"
)

// Client calls the processing backends with connection reuse, bounded
// timeouts, and retry-with-backoff for transient failures. Every attempt
// re-attaches a fresh bearer token from the credential cache.
type Client struct {
	httpClient *http.Client
	creds      *Credentials
	retry      config.RetryConfig
	urls       config.BackendsConfig
	timeout    time.Duration
	logger     *slog.Logger

	// sleep and randFloat are swapped out in tests.
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// NewClient creates a backend client from the HTTP, retry, and backend
// configuration sections.
func NewClient(log *slog.Logger, httpCfg config.HTTPConfig, retryCfg config.RetryConfig, urls config.BackendsConfig, creds *Credentials) *Client {
	if log == nil {
		log = slog.Default()
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   httpCfg.ConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          httpCfg.MaxIdleConns,
		MaxIdleConnsPerHost:   httpCfg.MaxIdleConns,
		MaxConnsPerHost:       httpCfg.MaxConns,
		IdleConnTimeout:       5 * time.Minute,
		TLSHandshakeTimeout:   httpCfg.ConnectTimeout(),
		ResponseHeaderTimeout: httpCfg.ReadTimeout(),
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		creds:      creds,
		retry:      retryCfg,
		urls:       urls,
		timeout:    httpCfg.ConnectTimeout() + httpCfg.ReadTimeout() + httpCfg.WriteTimeout(),
		logger:     log.With(slog.String("service", "backend")),
		sleep:      sleepContext,
		randFloat:  rand.Float64,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryDelay computes the backoff before retry attempt k (1-based):
// exponential growth from the base delay, widened by up to the jitter
// fraction, capped at the max delay.
func (c *Client) retryDelay(attempt int) time.Duration {
	base := c.retry.BaseDelay().Seconds()
	exp := base * math.Pow(2, float64(attempt-1))
	jittered := exp * (1 + c.retry.Jitter*c.randFloat())
	capped := math.Min(jittered, c.retry.MaxDelay().Seconds())
	return time.Duration(capped * float64(time.Second))
}

// retryableStatus reports whether an HTTP status is worth retrying.
// Server errors are transient except 501 Not Implemented.
func retryableStatus(status int) bool {
	return status >= 500 && status != http.StatusNotImplemented
}

type request struct {
	audience    string
	url         string
	contentType string
	body        []byte
	header      http.Header
}

// do executes the request with the retry policy. The response body is
// returned for 2xx statuses; 4xx statuses produce a permanent *Error;
// transient failures are retried and, once exhausted, surface as an *Error
// wrapping the last observed failure.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	var tokenRefreshed bool
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			c.logger.Warn("retrying backend call",
				slog.String("audience", req.audience),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &Error{Audience: req.audience, Err: err}
			}
		}

		body, status, err := c.attempt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Audience: req.audience, Err: err}
			}
			lastErr = err
			continue
		}
		if status >= 200 && status < 300 {
			return body, nil
		}
		// A rejected token may simply be stale (rotated or revoked). Drop it
		// and retry once with a fresh one; a second 401 is permanent. The
		// refresh retry shares the attempt budget.
		if status == http.StatusUnauthorized && c.creds != nil && !tokenRefreshed {
			tokenRefreshed = true
			c.creds.Invalidate(req.audience)
			c.logger.Warn("token rejected, refreshing", slog.String("audience", req.audience))
			lastErr = fmt.Errorf("status %d", status)
			continue
		}
		if retryableStatus(status) {
			lastErr = fmt.Errorf("status %d", status)
			continue
		}
		return nil, permanentError(req.audience, status, body)
	}
	return nil, &Error{Audience: req.audience, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

// attempt performs one HTTP exchange with a fresh bearer token. Tokens may
// rotate between attempts, so the cache is consulted every time.
func (c *Client) attempt(ctx context.Context, req request) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(req.body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.contentType)
	for key, values := range req.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if c.creds != nil {
		token, err := c.creds.Bearer(ctx, req.audience)
		if err != nil {
			return nil, 0, err
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// errorBody is the machine-readable error shape backends return on 4xx.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func permanentError(audience string, status int, body []byte) error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)
	backendErr := &Error{Audience: audience, Status: status, Code: parsed.Code, Message: parsed.Detail}
	if parsed.Code == lowConfidenceCode {
		backendErr.Err = ErrLowConfidence
	}
	return backendErr
}

func (c *Client) doJSON(ctx context.Context, audience, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", audience, err)
	}
	respBody, err := c.do(ctx, request{
		audience:    audience,
		url:         url,
		contentType: "application/json",
		body:        body,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Audience: audience, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

func (c *Client) doMultipart(ctx context.Context, audience, url string, fields map[string]string, fileField, filename, mime string, content []byte, header http.Header, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("encode %s form: %w", audience, err)
		}
	}
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filename))
	partHeader.Set("Content-Type", mime)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("encode %s form file: %w", audience, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("encode %s form file: %w", audience, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encode %s form: %w", audience, err)
	}

	respBody, err := c.do(ctx, request{
		audience:    audience,
		url:         url,
		contentType: writer.FormDataContentType(),
		body:        buf.Bytes(),
		header:      header,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Audience: audience, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// ProcessText sends text to the text-understanding backend.
func (c *Client) ProcessText(ctx context.Context, req TextRequest) (TextResponse, error) {
	var out TextResponse
	c.logger.Info("calling text backend",
		slog.Int("length", len(req.Text)),
		slog.String("conversation_id", req.ConversationID),
		slog.String("detected_language", req.DetectedLanguage))
	if err := c.doJSON(ctx, AudienceText, c.urls.TextURL+"/api/v1/process", req, &out); err != nil {
		return TextResponse{}, err
	}
	return out, nil
}

// Transcribe sends audio bytes to the transcription backend. A backend
// low-confidence signal surfaces as an error wrapping ErrLowConfidence.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (SpeechResponse, error) {
	header := http.Header{}
	header.Set("X-Request-Id", uuid.NewString())
	fields := map[string]string{
		"client_id":          clientID,
		"quality_preference": "balanced",
	}
	var out SpeechResponse
	c.logger.Info("calling speech backend", slog.String("filename", filename))
	if err := c.doMultipart(ctx, AudienceSpeech, c.urls.SpeechURL+"/transcribe", fields, "audio_file", filename, "audio/ogg", audio, header, &out); err != nil {
		return SpeechResponse{}, err
	}
	return out, nil
}

// Analyze sends image bytes to the vision backend in automatic
// classification mode.
func (c *Client) Analyze(ctx context.Context, image []byte, filename, mimeType string) (VisionAnalysis, error) {
	fields := map[string]string{
		"client_id": clientID,
		"mode":      "auto",
	}
	var out VisionAnalysis
	c.logger.Info("calling vision backend", slog.String("filename", filename))
	if err := c.doMultipart(ctx, AudienceVision, c.urls.VisionURL+"/analyze/upload", fields, "file", filename, mimeType, image, nil, &out); err != nil {
		return VisionAnalysis{}, err
	}
	c.logger.Info("image classified",
		slog.String("type", out.Classification.Type),
		slog.Float64("confidence", out.Classification.Confidence))
	return out, nil
}

// SearchByEmbedding queries the vector-similarity backend for products
// matching the image embedding.
func (c *Client) SearchByEmbedding(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var out SearchResponse
	c.logger.Info("calling search backend",
		slog.Int("limit", req.Limit),
		slog.Float64("max_distance", req.MaxDistance))
	if err := c.doJSON(ctx, AudienceSearch, c.urls.SearchURL+"/api/v1/image-search", req, &out); err != nil {
		return SearchResponse{}, err
	}
	c.logger.Info("search completed", slog.Bool("found", out.Found), slog.Int("count", out.Count))
	return out, nil
}

// Warmup pre-fetches credentials and probes each backend's health endpoint
// so the first user request does not pay cold-start latency. Failures are
// logged and never fatal.
func (c *Client) Warmup(ctx context.Context) {
	targets := map[string]string{
		AudienceText:   c.urls.TextURL + "/api/v1/health",
		AudienceSpeech: c.urls.SpeechURL + "/health",
		AudienceVision: c.urls.VisionURL + "/health",
		AudienceSearch: c.urls.SearchURL + "/health",
	}
	var wg sync.WaitGroup
	for audience, url := range targets {
		wg.Add(1)
		go func(audience, url string) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return
			}
			if c.creds != nil {
				token, err := c.creds.Bearer(ctx, audience)
				if err != nil {
					c.logger.Warn("warmup token failed", slog.String("audience", audience), slog.Any("error", err))
					return
				}
				if token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Warn("warmup probe failed", slog.String("audience", audience), slog.Any("error", err))
				return
			}
			_ = resp.Body.Close()
			c.logger.Info("warmed up backend", slog.String("audience", audience), slog.Int("status", resp.StatusCode))
		}(audience, url)
	}
	wg.Wait()
}
