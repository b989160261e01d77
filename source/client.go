// Package source is the HTTP client shared by every scraper. It paces
// requests, retries transient failures with a fixed wait and decodes pages
// into goquery documents.
package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/syncerr"
)

// Client wraps a resty client with pacing between requests.
type Client struct {
	http     *resty.Client
	interval time.Duration
	logger   *zap.Logger
}

// New builds a Client from the sync settings.
func New(cfg *config.SyncConfig, logger *zap.Logger) *Client {
	return NewWithOptions(Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
		Interval:  cfg.PageInterval,
		Retries:   cfg.Retries,
		RetryWait: cfg.RetryWait,
	}, logger)
}

// Options configures a Client directly.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Interval  time.Duration
	Retries   int
	RetryWait time.Duration
}

func NewWithOptions(opts Options, logger *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetCookieJar(jar).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			if r == nil || r.Request == nil {
				logger.Warn("retrying request", zap.Error(err))
				return
			}
			logger.Warn("retrying request",
				zap.String("url", r.Request.URL),
				zap.Int("attempt", r.Request.Attempt),
				zap.Int("status_code", r.StatusCode()),
				zap.Error(err),
			)
		})
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{http: client, interval: opts.Interval, logger: logger}
}

// Resty exposes the underlying client for callers that need sessions.
func (c *Client) Resty() *resty.Client {
	return c.http
}

// Get fetches url with the query parameters and returns the parsed document.
func (c *Client) Get(ctx context.Context, url string, query map[string]string, referer string) (*goquery.Document, error) {
	req := c.request(ctx, referer).SetQueryParams(query)
	resp, err := req.Get(url)
	if err := check(url, resp, err); err != nil {
		return nil, err
	}
	return Document(resp.Body(), resp.Header().Get("Content-Type"))
}

// PostForm posts a form and returns the raw response body.
func (c *Client) PostForm(ctx context.Context, url string, form map[string]string, referer string) ([]byte, error) {
	req := c.request(ctx, referer).SetFormData(form)
	resp, err := req.Post(url)
	if err := check(url, resp, err); err != nil {
		return nil, err
	}
	return Decode(resp.Body(), resp.Header().Get("Content-Type"))
}

// Pace waits the configured interval between requests. It returns early
// with ctx.Err() when ctx is cancelled.
func (c *Client) Pace(ctx context.Context) error {
	return Sleep(ctx, c.interval)
}

// request runs on a context detached from cancellation so a signal never
// aborts a fetch halfway; the client timeout still bounds it.
func (c *Client) request(ctx context.Context, referer string) *resty.Request {
	req := c.http.R().SetContext(context.WithoutCancel(ctx))
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	return req
}

func check(url string, resp *resty.Response, err error) error {
	if err != nil {
		return syncerr.Network(url, 0, err)
	}
	if resp.IsError() {
		return syncerr.Network(url, resp.StatusCode(), nil)
	}
	return nil
}

// Decode converts body to UTF-8 using the declared or sniffed charset.
func Decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return buf.Bytes(), nil
}

// Document parses an HTML body into a goquery document.
func Document(body []byte, contentType string) (*goquery.Document, error) {
	decoded, err := Decode(body, contentType)
	if err != nil {
		return nil, err
	}
	node, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(node), nil
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
