package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/imaging"
)

// ErrSkip marks a content record that could not be enriched.
var ErrSkip = errors.New("enrichment skipped")

const maxBodyBytes = 16 << 20

// Config describes how to reach and authenticate against the content API.
type Config struct {
	APIBaseURL      string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	ClientUserAgent string
	MatureContent   bool
	Timeout         time.Duration
	MaxAttempts     int
}

// Client fetches content records. The bearer token is obtained once in New
// and never refreshed.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	retry   *retryPolicy
	logger  *zap.Logger
	now     func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithNow overrides the capture timestamp source.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New exchanges the refresh credential for an access token and returns a
// client that sends it on every request. An *http.Client stored in ctx under
// oauth2.HTTPClient is used as the underlying transport.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshToken == "" {
		return nil, errors.New("enrich: refresh token is required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("enrich: token url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("enrich: invalid api base url %q", cfg.APIBaseURL)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	token, err := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("exchange refresh token: %w", err)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if hc, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && hc != nil && hc.Transport != nil {
		transport = hc.Transport
	}
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if cfg.ClientUserAgent != "" {
		headers.Set("CustomUserAgent", cfg.ClientUserAgent)
	}
	if cfg.MatureContent {
		headers.Set("X-Mature-Content", "true")
	}

	c := &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(token),
				Base:   &headerTransport{base: transport, headers: headers},
			},
		},
		baseURL: base,
		retry:   newRetryPolicy(cfg.MaxAttempts),
		logger:  logger.Named("enrich"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("content api session established", zap.String("api", base.Host))
	return c, nil
}

// Fetch retrieves content id and its cover. Any failure wraps ErrSkip.
func (c *Client) Fetch(ctx context.Context, id int64) (catalog.ContentRecord, error) {
	endpoint := c.baseURL.JoinPath("v1", "fiction", strconv.FormatInt(id, 10)).String()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return catalog.ContentRecord{}, fmt.Errorf("%w: fiction %d: %w", ErrSkip, id, err)
	}
	payload, err := ParseFiction(body)
	if err != nil {
		return catalog.ContentRecord{}, fmt.Errorf("%w: fiction %d: %w", ErrSkip, id, err)
	}
	coverURL := payload.CoverURL()
	if coverURL == "" {
		return catalog.ContentRecord{}, fmt.Errorf("%w: fiction %d has no cover", ErrSkip, id)
	}
	coverBytes, err := c.get(ctx, coverURL)
	if err != nil {
		return catalog.ContentRecord{}, fmt.Errorf("%w: cover for fiction %d: %w", ErrSkip, id, err)
	}
	cover, format, err := imaging.Decode(coverBytes)
	if err != nil {
		return catalog.ContentRecord{}, fmt.Errorf("%w: cover for fiction %d: %w", ErrSkip, id, err)
	}
	rec, err := ToContentRecord(payload, cover, c.now().Unix())
	if err != nil {
		return catalog.ContentRecord{}, fmt.Errorf("fiction %d: %w", id, err)
	}
	c.logger.Debug("fetched content",
		zap.Int64("content_id", id),
		zap.String("cover_format", format),
		zap.Int("tags", len(rec.Tags)),
	)
	return rec, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !c.retry.shouldRetry(err, attempt) {
			break
		}
		delay := c.retry.backoff(attempt)
		c.logger.Warn("retrying content api request",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, url: rawURL}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, values := range t.headers {
		clone.Header[key] = append([]string(nil), values...)
	}
	return t.base.RoundTrip(clone)
}
