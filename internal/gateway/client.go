// Package gateway downloads daily report archives from the franchise-data
// portal using its password-grant token and HMAC-signed listing request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/tracing"
)

var (
	ErrAuth         = errors.New("gateway: authentication failed")
	ErrTransfer     = errors.New("gateway: transfer failed")
	ErrBlobNotFound = errors.New("gateway: report blob not found")
)

const maxMetadataBody = 1 << 20

// Config holds the portal location, credentials and transport limits.
type Config struct {
	BaseURL  string
	Username string
	Password string
	AppID    string
	HMACKey  string // base64
	StoreID  string
	Timeout  time.Duration
	Retry    RetryConfig
}

// Client talks to the report gateway. It is safe for concurrent use.
type Client struct {
	cfg   Config
	http  *http.Client
	now   func() time.Time
	nonce func() (string, error)
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithHTTPClient replaces the default transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithClock overrides the signing timestamp source.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithNonce overrides nonce generation.
func WithNonce(fn func() (string, error)) Option { return func(c *Client) { c.nonce = fn } }

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: cfg.Timeout,
		},
		now:   time.Now,
		nonce: newNonce,
		sleep: sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchReportArchive downloads the report bundle for date (YYYY-MM-DD)
// into destDir and returns the path of the zip file.
func (c *Client) FetchReportArchive(ctx context.Context, date, destDir string) (string, error) {
	if c.cfg.Username == "" || c.cfg.Password == "" || c.cfg.AppID == "" || c.cfg.HMACKey == "" {
		return "", fmt.Errorf("%w: gateway credentials are not configured", ErrAuth)
	}

	start := time.Now()
	token, err := c.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	uri, err := c.ListBlobs(ctx, token, date)
	if err != nil {
		return "", err
	}
	path, err := c.Download(ctx, uri, destDir)
	if err != nil {
		return "", err
	}
	log.Info().Str("date", date).Str("file", path).Dur("elapsed", time.Since(start)).
		Msg("gateway: downloaded report archive")
	return path, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// FetchToken exchanges the configured credentials for a bearer token.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	endpoint := c.cfg.BaseURL + "/Token"
	ctx, span := tracing.StartGatewaySpan(ctx, "token", endpoint)
	defer span.End()

	form := url.Values{
		"grant_type": {"password"},
		"UserName":   {c.cfg.Username},
		"Password":   {c.cfg.Password},
	}
	resp, err := c.do(ctx, "token", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json,text/plain,*/*")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %w", ErrTransfer, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", ErrAuth)
	}
	return tr.AccessToken, nil
}

// ListingURL is the signed blob-listing URL for date.
func (c *Client) ListingURL(date string) string {
	return c.cfg.BaseURL + "/GetReportBlobs?userName=" + url.QueryEscape(c.cfg.Username) +
		"&fileName=" + url.QueryEscape(c.cfg.StoreID+"_"+date+".zip")
}

// ListBlobs asks the gateway where the archive for date is stored and
// returns its download URI.
func (c *Client) ListBlobs(ctx context.Context, token, date string) (string, error) {
	requestURL := c.ListingURL(date)
	ctx, span := tracing.StartGatewaySpan(ctx, "list", requestURL)
	defer span.End()

	resp, err := c.do(ctx, "list", func() (*http.Request, error) {
		nonce, err := c.nonce()
		if err != nil {
			return nil, err
		}
		sig, err := Sign(c.cfg.AppID, c.cfg.HMACKey, http.MethodGet, requestURL, c.now().Unix(), nonce, "")
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(SignatureHeader, sig.Header())
		req.Header.Set("Authorization", "bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: listing returned %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: no archive for %s", ErrBlobNotFound, date)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: listing returned %d", ErrTransfer, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return "", fmt.Errorf("%w: read listing: %w", ErrTransfer, err)
	}
	return firstBlobURI(body)
}

// Download streams uri into a new temp_report_*.zip file in destDir. The
// partial file is removed if the transfer fails.
func (c *Client) Download(ctx context.Context, uri, destDir string) (string, error) {
	ctx, span := tracing.StartGatewaySpan(ctx, "download", uri)
	defer span.End()

	resp, err := c.do(ctx, "download", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: download returned %d", ErrTransfer, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", fmt.Errorf("gateway: create download dir: %w", err)
	}
	f, err := os.CreateTemp(destDir, fmt.Sprintf("temp_report_%d_*.zip", c.now().Unix()))
	if err != nil {
		return "", fmt.Errorf("gateway: create archive file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		tracing.RecordError(ctx, err)
		return "", fmt.Errorf("%w: write archive: %w", ErrTransfer, err)
	}
	log.Debug().Str("file", f.Name()).Int64("bytes", n).Msg("gateway: archive saved")
	return f.Name(), nil
}

// do sends the request built by build, retrying network errors and
// transient statuses. build runs per attempt so signatures stay fresh.
// A Retry-After from the server replaces the backoff for that attempt.
// The caller owns the returned body.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error)) (*http.Response, error) {
	var (
		lastErr error
		wait    time.Duration
	)
	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if wait <= 0 {
				wait = backoffDelay(attempt-1, c.cfg.Retry.BaseDelay, c.cfg.Retry.MaxDelay)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrTransfer, op, err)
			}
			wait = 0
		}

		req, err := build()
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return nil, err
			}
			return nil, fmt.Errorf("gateway: build %s request: %w", op, err)
		}
		tracing.InjectHeaders(ctx, req)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("gateway: request failed")
			continue
		}
		tracing.SetStatus(ctx, resp.StatusCode)

		if isRetryableStatus(resp.StatusCode) && attempt+1 < c.cfg.Retry.MaxAttempts {
			wait = retryAfterDuration(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			log.Warn().Str("op", op).Int("status", resp.StatusCode).Int("attempt", attempt+1).
				Dur("retry_after", wait).Msg("gateway: transient status, retrying")
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrTransfer, op, lastErr)
}
