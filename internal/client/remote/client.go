// Package remote is the thin request layer between the sync engine and the
// CardBox server API. Every call is scoped to the authenticated user via a
// bearer session token; mutating calls map one-to-one onto the server's
// idempotent upsert/delete endpoints, so the sync engine may safely retry
// them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/cardbox/internal/shared"
	"github.com/sethvargo/go-retry"
)

// TokenSource supplies the current session token. The token is issued by an
// external identity flow and stored by the client app; the adapter only
// attaches it.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
}

// Ping probes server reachability. Used by the online-status watcher.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil)
}

// getWithRetry performs an idempotent GET with a bounded fibonacci backoff.
// Only transport errors and 5xx responses are retried; everything else is
// final.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 500
	}
	if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrConflict) {
		return false
	}
	// no response at all: connection refused, timeout, DNS
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", shared.ErrUnauthorized, strings.TrimSpace(string(data)))
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", shared.ErrNotFound, strings.TrimSpace(string(data)))
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", shared.ErrConflict, strings.TrimSpace(string(data)))
		}
		return &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// sinceQuery builds the optional incremental-pull query string.
func sinceQuery(since int64) string {
	if since <= 0 {
		return ""
	}
	v := url.Values{}
	v.Set("since", strconv.FormatInt(since, 10))
	return "?" + v.Encode()
}
