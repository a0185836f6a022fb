package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-versus/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// APIError is a non-2xx answer from chessd.
type APIError struct {
	Status int
	chessdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chessd api error: status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the chessd HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the network dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	var out chessdto.HealthResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unhealthy: %q", out.Status)
	}
	return nil
}

func (c *Client) NewGame(ctx context.Context, color string) (*chessdto.GameView, error) {
	var out chessdto.GameView
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", chessdto.NewGameRequest{Color: color}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Game(ctx context.Context, id string) (*chessdto.GameView, error) {
	var out chessdto.GameView
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Play(ctx context.Context, id, move string) (*chessdto.GameView, error) {
	var out chessdto.GameView
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/moves", chessdto.MoveRequest{Move: move}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Restart(ctx context.Context, id string) (*chessdto.GameView, error) {
	var out chessdto.GameView
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/restart", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete abandons a game.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/games/"+url.PathEscape(id), nil, nil, false)
}

// Retry asks the engine to think again after a failed turn.
func (c *Client) Retry(ctx context.Context, id string) (*chessdto.GameView, error) {
	var out chessdto.GameView
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/retry", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]*chessdto.GameRecord, error) {
	var out chessdto.HistoryResponse
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// WaitIdle polls the game until the engine is no longer thinking.
func (c *Client) WaitIdle(ctx context.Context, id string, every time.Duration) (*chessdto.GameView, error) {
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	for {
		g, err := c.Game(ctx, id)
		if err != nil {
			return nil, err
		}
		if !g.Thinking {
			return g, nil
		}
		if err := sleepWithContext(ctx, every); err != nil {
			return g, err
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				if out != nil {
					if err := json.Unmarshal(resp.Body(), out); err != nil {
						return fmt.Errorf("decode response: %w", err)
					}
				}
				return nil
			}
			apiErr := &APIError{Status: status}
			if jerr := json.Unmarshal(resp.Body(), &apiErr.DomainError); jerr != nil {
				apiErr.Message = truncate(string(resp.Body()), 512)
			}
			if !shouldRetryStatus(status) {
				return apiErr
			}
			err = apiErr
		} else {
			err = fmt.Errorf("request failed: %w", err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
