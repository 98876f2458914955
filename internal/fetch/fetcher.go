// Package fetch is the HTTP layer every source adapter goes through: a bounded
// per-request timeout, a small retry budget with linear backoff, and one last
// attempt over a secondary transport before giving up.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
)

const (
	DefaultTimeout          = 8 * time.Second
	DefaultRetries          = 3
	DefaultBackoff          = 800 * time.Millisecond
	DefaultRateLimitBackoff = 2 * time.Second
	DefaultUserAgent        = "MetaOdds/0.1 (+https://github.com/yanboishere/MetaOdds)"

	transportPrimary   = "primary"
	transportSecondary = "secondary"

	maxErrorBody = 2048
)

// Config controls the retry policy. Zero values take the defaults above.
type Config struct {
	Timeout          time.Duration
	Retries          int
	Backoff          time.Duration
	RateLimitBackoff time.Duration
	UserAgent        string
	// ProxyURL routes the secondary transport; empty means HTTPS_PROXY/HTTP_PROXY.
	ProxyURL string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Fetcher implements collectors.JSONGetter.
type Fetcher struct {
	cfg       Config
	primary   *http.Client
	secondary *http.Client
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = logging.OrNop(l).Named("fetch") }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithSleep replaces the backoff sleep; tests use it to skip real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithClients replaces both transports.
func WithClients(primary, secondary *http.Client) Option {
	return func(f *Fetcher) {
		if primary != nil {
			f.primary = primary
		}
		if secondary != nil {
			f.secondary = secondary
		}
	}
}

// New builds a Fetcher with a direct primary transport and a proxy-aware
// keep-alive secondary transport.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	cfg = cfg.withDefaults()
	secondary, err := newSecondaryClient(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		cfg:       cfg,
		primary:   newPrimaryClient(),
		secondary: secondary,
		sleep:     sleepContext,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func newPrimaryClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func newSecondaryClient(proxyURL string) (*http.Client, error) {
	proxy := http.ProxyFromEnvironment
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(u)
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: proxy,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   false,
			DisableCompression:  true,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}, nil
}

// GetJSON fetches url and decodes the JSON body into dst.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, dst any) error {
	var last *FetchError
	for i := 0; i < f.cfg.Retries; i++ {
		err := f.attempt(ctx, f.primary, transportPrimary, rawURL, dst)
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil {
			return last
		}

		delay := f.cfg.Backoff * time.Duration(i+1)
		if err.Kind == KindRateLimited {
			delay = f.cfg.RateLimitBackoff * time.Duration(i+1)
		}
		f.logger.Debug("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", i+1),
			zap.Stringer("kind", err.Kind),
			zap.Duration("backoff", delay),
			zap.Error(err.Err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return &FetchError{Kind: last.Kind, URL: rawURL, Status: last.Status, Transport: transportPrimary, Err: err}
		}
	}

	f.logger.Warn("primary transport exhausted, trying secondary",
		zap.String("url", rawURL),
		zap.Stringer("kind", last.Kind),
		zap.Error(last.Err),
	)
	err := f.attempt(ctx, f.secondary, transportSecondary, rawURL, dst)
	if err == nil {
		f.metrics.RecordFallback("ok")
		return nil
	}
	f.metrics.RecordFallback("failed")
	err.Err = fmt.Errorf("%w (primary: %s: %v)", err.Err, last.Kind, last.Err)
	return err
}

func (f *Fetcher) attempt(ctx context.Context, client *http.Client, transport, rawURL string, dst any) *FetchError {
	fail := func(kind Kind, status int, err error) *FetchError {
		f.metrics.RecordFetchAttempt(transport, kind.String())
		return &FetchError{Kind: kind, URL: rawURL, Status: status, Transport: transport, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(KindClient, 0, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if transport == transportSecondary {
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Accept-Encoding", "identity")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fail(classify(err), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("%s: %s", resp.Status, string(body))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fail(KindRateLimited, resp.StatusCode, statusErr)
		case resp.StatusCode >= 500:
			return fail(KindServer, resp.StatusCode, statusErr)
		default:
			return fail(KindClient, resp.StatusCode, statusErr)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(classify(err), resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fail(KindParse, resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	f.metrics.RecordFetchAttempt(transport, "ok")
	return nil
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
