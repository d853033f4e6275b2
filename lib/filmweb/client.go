package filmweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the public Filmweb API root.
	DefaultBaseURL = "https://www.filmweb.pl/api/v1"

	localeHeader  = "X-Locale"
	defaultLocale = "pl_PL"

	// secretCookie carries the long-lived secret on the token exchange;
	// sessionCookie carries the short-lived JWT on authenticated calls.
	secretCookie  = "_artuser_prm"
	sessionCookie = "JWT"

	tokenPath   = "/jwt"
	maxAttempts = 3
)

// Client performs authenticated requests against the Filmweb API. It owns
// the session credential: the JWT is obtained from the token exchange,
// attached to authenticated calls, and silently renewed once per call when
// the remote signals expiry. Client is not safe for concurrent use; a sync
// run is strictly sequential.
type Client struct {
	baseURL    string
	secret     string
	jwt        string
	httpClient *http.Client
	logger     *slog.Logger

	throttle   time.Duration
	jitter     bool
	retryPause time.Duration

	refreshes int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithThrottle sets the politeness delay inserted before every outbound
// call. Jitter spreads the delay between 50% and 150% of d.
func WithThrottle(d time.Duration, jitter bool) Option {
	return func(c *Client) {
		c.throttle = d
		c.jitter = jitter
	}
}

// WithRetryPause overrides the pause between timeout retries.
func WithRetryPause(d time.Duration) Option {
	return func(c *Client) { c.retryPause = d }
}

// NewClient builds a client around the long-lived secret. No request is
// made until the first call; the token exchange runs lazily on the first
// authenticated fetch or explicitly via Authenticate.
func NewClient(secret string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryPause: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate exchanges the long-lived secret for a session JWT and
// stores it on the client. The exchange is never retried; a rejection is
// an AuthenticationError.
func (c *Client) Authenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, nil)
	if err != nil {
		return &AuthenticationError{Err: err}
	}
	req.AddCookie(&http.Cookie{Name: secretCookie, Value: c.secret})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthenticationError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthenticationError{Err: fmt.Errorf("token exchange returned status %d", resp.StatusCode)}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			c.jwt = cookie.Value
			c.refreshes++
			c.logger.Debug("Obtained session token", slog.Int("refreshes", c.refreshes))
			return nil
		}
	}
	return &AuthenticationError{Err: errors.New("token exchange response carried no session cookie")}
}

// SessionToken returns the current session credential.
func (c *Client) SessionToken() string { return c.jwt }

// SetSessionToken injects a session credential, bypassing the token
// exchange. Used by tests to start from a known (possibly expired) JWT.
func (c *Client) SetSessionToken(jwt string) { c.jwt = jwt }

// Refreshes reports how many times the token exchange has run.
func (c *Client) Refreshes() int { return c.refreshes }

// Fetch performs a GET against path (relative to the API root) and
// returns the raw JSON body. A 204 response is a valid success with a nil
// body. Transport timeouts are retried up to 3 attempts with a fixed
// pause; an HTTP 400 on an authenticated call triggers exactly one silent
// token refresh and a reissue of the same call without consuming the
// timeout budget. Every other rejection is a FetchError.
func (c *Client) Fetch(ctx context.Context, path string, requiresAuth bool) (json.RawMessage, error) {
	if requiresAuth && c.jwt == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	refreshed := false
	attempt := 1
	for {
		c.wait()

		body, status, err := c.do(ctx, path, requiresAuth)
		if err != nil {
			if !isTimeout(err) {
				return nil, &FetchError{Err: err}
			}
			c.logger.Warn("Request timed out",
				slog.String("path", path),
				slog.Int("attempt", attempt))
			if attempt == maxAttempts {
				return nil, &TransientFetchError{Attempts: attempt, Err: err}
			}
			attempt++
			time.Sleep(c.retryPause)
			continue
		}

		switch {
		case status == http.StatusNoContent:
			return nil, nil
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusBadRequest && requiresAuth && !refreshed:
			// The remote signals an expired credential as a bad request.
			// Renew once and reissue the same call.
			c.logger.Debug("Session token rejected, refreshing", slog.String("path", path))
			if err := c.Authenticate(ctx); err != nil {
				return nil, err
			}
			refreshed = true
			continue
		default:
			return nil, &FetchError{Status: status, Body: string(body)}
		}
	}
}

// do issues a single GET. It returns the body and status without judging
// the status; that is Fetch's job.
func (c *Client) do(ctx context.Context, path string, requiresAuth bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(localeHeader, defaultLocale)
	if requiresAuth {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.jwt})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// wait applies the politeness throttle before an outbound call.
func (c *Client) wait() {
	if c.throttle <= 0 {
		return
	}
	d := c.throttle
	if c.jitter {
		d = c.throttle/2 + time.Duration(rand.Int63n(int64(c.throttle)))
	}
	time.Sleep(d)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
