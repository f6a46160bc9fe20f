// Package intranet talks to the school intranet: cookie based login and the
// AJAX timetable endpoint.
package intranet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"stundenplan/internal/metrics"
	"stundenplan/internal/models"
)

// ErrAuthentication means the login response carried no session cookie.
var ErrAuthentication = errors.New("intranet authentication failed")

// UpstreamError is a failed intranet request. StatusCode is 0 for transport errors.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("intranet %s: http %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("intranet %s: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Username      string
	Password      string
	UsernameField string
	PasswordField string
	LoginPath     string
	TimetablePath string
	SessionCookie string
	Timeout       time.Duration
	// RequestsPerSecond throttles outbound calls; 0 disables throttling.
	RequestsPerSecond float64
}

// Session is an authenticated intranet context.
type Session struct {
	Cookie    *http.Cookie
	CreatedAt time.Time

	httpClient *http.Client
}

// Client logs into the intranet and requests timetable windows.
type Client struct {
	opts      Options
	transport http.RoundTripper
	limiter   *rate.Limiter
	logger    *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

type timetableResponse struct {
	Data []models.Lesson `json:"data"`
}

// NewClient constructs a client. Empty options fall back to the defaults of
// the intranet login form.
func NewClient(opts Options, logger *zerolog.Logger) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.UsernameField == "" {
		opts.UsernameField = "username"
	}
	if opts.PasswordField == "" {
		opts.PasswordField = "password"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	c := &Client{
		opts:      opts,
		transport: http.DefaultTransport,
		logger:    logger,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// UseRedisCache configures optional Redis caching of timetable windows.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Authenticate posts the credentials and returns the resulting session.
// Hidden inputs of the login form (tokens) are sent along when the form can be read.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: c.opts.Timeout, Jar: jar, Transport: c.transport}
	loginURL := c.opts.BaseURL + c.opts.LoginPath

	form := c.loginFormFields(ctx, httpClient, loginURL)
	form.Set(c.opts.UsernameField, c.opts.Username)
	form.Set(c.opts.PasswordField, c.opts.Password)

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream("login", 0, time.Since(started))
		return nil, &UpstreamError{Operation: "login", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	metrics.ObserveUpstream("login", resp.StatusCode, time.Since(started))

	cookie := c.findSessionCookie(jar, resp)
	if cookie == nil {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("cookie", c.opts.SessionCookie).
			Msg("login response without session cookie")
		return nil, ErrAuthentication
	}

	return &Session{Cookie: cookie, CreatedAt: time.Now(), httpClient: httpClient}, nil
}

// FetchWindow requests all lessons between start and end, both sent as epoch
// milliseconds.
func (c *Client) FetchWindow(ctx context.Context, session *Session, start, end time.Time) ([]models.Lesson, error) {
	if session == nil || session.httpClient == nil {
		return nil, ErrAuthentication
	}

	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	var resp timetableResponse

	form := url.Values{}
	form.Set("startDate", strconv.FormatInt(startMs, 10))
	form.Set("endDate", strconv.FormatInt(endMs, 10))
	form.Set("holidaysOnly", "0")

	if err := c.doPost(ctx, session.httpClient, c.opts.BaseURL+c.opts.TimetablePath, form, &resp); err != nil {
		return nil, err
	}
	resp.Data = nonNil(resp.Data)
	c.writeCache(ctx, cacheKey(startMs, endMs), resp)
	return resp.Data, nil
}

// CachedWindow returns a previously fetched window from Redis, if caching is enabled.
func (c *Client) CachedWindow(ctx context.Context, start, end time.Time) ([]models.Lesson, bool) {
	var resp timetableResponse
	if !c.readCache(ctx, cacheKey(start.UnixMilli(), end.UnixMilli()), &resp) {
		return nil, false
	}
	return nonNil(resp.Data), true
}

func cacheKey(startMs, endMs int64) string {
	return fmt.Sprintf("timetable:%d:%d", startMs, endMs)
}

func (c *Client) loginFormFields(ctx context.Context, httpClient *http.Client, loginURL string) url.Values {
	form := url.Values{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, http.NoBody)
	if err != nil {
		return form
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("login page unavailable")
		return form
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return form
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return form
	}
	doc.Find(`form input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		form.Set(name, value)
	})
	return form
}

func (c *Client) findSessionCookie(jar http.CookieJar, resp *http.Response) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == c.opts.SessionCookie && ck.Value != "" {
			return ck
		}
	}
	for _, raw := range []string{c.opts.BaseURL + c.opts.LoginPath, c.opts.BaseURL + c.opts.TimetablePath} {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, ck := range jar.Cookies(u) {
			if ck.Name == c.opts.SessionCookie && ck.Value != "" {
				return ck
			}
		}
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, httpClient *http.Client, endpoint string, form url.Values, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream("timetable", 0, time.Since(started))
		return &UpstreamError{Operation: "timetable", Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream("timetable", resp.StatusCode, time.Since(started))

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Operation: "timetable", StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Operation: "timetable", Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func nonNil(lessons []models.Lesson) []models.Lesson {
	if lessons == nil {
		return []models.Lesson{}
	}
	return lessons
}
