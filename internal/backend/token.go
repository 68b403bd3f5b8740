package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/golang-jwt/jwt/v5"

	"github.com/telegate/telegate/internal/config"
)

// defaultTokenTTL is assumed when a source cannot report an expiry.
const defaultTokenTTL = 50 * time.Minute

// TokenSource acquires a fresh bearer token for a backend audience.
type TokenSource interface {
	Token(ctx context.Context, audience string) (string, time.Time, error)
}

// NewTokenSource builds the token source selected by the auth config.
func NewTokenSource(cfg config.AuthConfig) (TokenSource, error) {
	switch cfg.Mode {
	case "metadata":
		return &metadataSource{client: metadata.NewClient(nil)}, nil
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("jwt auth mode requires a secret")
		}
		return &jwtSource{secret: []byte(cfg.JWTSecret)}, nil
	case "none":
		return noneSource{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

type cachedCredential struct {
	mu      sync.Mutex
	fetched bool
	token   string
	expiry  time.Time
}

// Credentials caches bearer tokens per audience. Acquisition is serialized
// per audience: concurrent callers for the same audience never trigger an
// acquisition storm, and a stalled fetch for one audience does not block the
// others. The outer lock only guards the entry map.
type Credentials struct {
	source TokenSource
	margin time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*cachedCredential

	now func() time.Time
}

// NewCredentials creates a credential cache over the given token source.
// Tokens are refreshed margin before their reported expiry.
func NewCredentials(log *slog.Logger, source TokenSource, margin time.Duration) *Credentials {
	if log == nil {
		log = slog.Default()
	}
	return &Credentials{
		source:  source,
		margin:  margin,
		logger:  log.With(slog.String("service", "credentials")),
		entries: make(map[string]*cachedCredential),
		now:     time.Now,
	}
}

func (c *Credentials) entry(audience string) *cachedCredential {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[audience]
	if !ok {
		e = &cachedCredential{}
		c.entries[audience] = e
	}
	return e
}

// Bearer returns a valid bearer token for the audience, fetching a fresh one
// when the cached entry has passed its expiry minus the safety margin.
// An empty token means the backend is called unauthenticated.
func (c *Credentials) Bearer(ctx context.Context, audience string) (string, error) {
	e := c.entry(audience)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fetched && c.now().Before(e.expiry.Add(-c.margin)) {
		return e.token, nil
	}

	start := c.now()
	token, expiry, err := c.source.Token(ctx, audience)
	if err != nil {
		return "", fmt.Errorf("acquire token for %s: %w", audience, err)
	}
	if expiry.IsZero() {
		expiry = c.now().Add(defaultTokenTTL)
	}
	e.fetched = true
	e.token = token
	e.expiry = expiry
	c.logger.Info("token acquired",
		slog.String("audience", audience),
		slog.Duration("elapsed", c.now().Sub(start)),
		slog.Time("expiry", expiry))
	return token, nil
}

// Invalidate drops the cached token for the audience so the next Bearer call
// acquires a fresh one.
func (c *Credentials) Invalidate(audience string) {
	c.mu.Lock()
	e, ok := c.entries[audience]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.fetched = false
	e.token = ""
	e.expiry = time.Time{}
	e.mu.Unlock()
}

// metadataSource fetches identity tokens from the GCE/Cloud Run metadata
// server. The audience is the target service URL.
type metadataSource struct {
	client *metadata.Client
}

func (s *metadataSource) Token(ctx context.Context, audience string) (string, time.Time, error) {
	suffix := "instance/service-accounts/default/identity?audience=" + url.QueryEscape(audience)
	token, err := s.client.GetWithContext(ctx, suffix)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("metadata identity token: %w", err)
	}
	return token, identityTokenExpiry(token), nil
}

// identityTokenExpiry extracts the exp claim without verifying the signature;
// the metadata server is trusted and the claim only drives cache refresh.
func identityTokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// jwtSource self-signs HS256 service tokens with a shared secret, for
// deployments without a platform identity provider.
type jwtSource struct {
	secret []byte
	now    func() time.Time
}

func (s *jwtSource) Token(_ context.Context, audience string) (string, time.Time, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	issuedAt := now().UTC()
	expiry := issuedAt.Add(time.Hour)
	claims := jwt.MapClaims{
		"iss": "telegate",
		"aud": audience,
		"iat": issuedAt.Unix(),
		"exp": expiry.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign service token: %w", err)
	}
	return signed, expiry, nil
}

// noneSource disables backend authentication.
type noneSource struct{}

func (noneSource) Token(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, nil
}
