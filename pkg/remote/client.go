// Package remote fetches page snapshots from a context service and falls back
// to building them locally when the service cannot deliver.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entrhq/robotdriver/pkg/snapshot"
)

// Defaults for the context service client.
const (
	DefaultTimeout      = 10 * time.Second
	MaxResponseBytes    = 8 << 20
	contextPath         = "/context"
	errorBodyPreviewLen = 512
)

// ContextFetchError reports that the remote service did not produce a usable
// snapshot. It is always recoverable: callers build the snapshot locally.
type ContextFetchError struct {
	ServiceURL string
	Reason     string
	Err        error
}

func (e *ContextFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("context fetch from %s: %s: %v", e.ServiceURL, e.Reason, e.Err)
	}
	return fmt.Sprintf("context fetch from %s: %s", e.ServiceURL, e.Reason)
}

func (e *ContextFetchError) Unwrap() error {
	return e.Err
}

// IsContextFetchError reports whether err is or wraps a ContextFetchError.
func IsContextFetchError(err error) bool {
	var cfe *ContextFetchError
	return errors.As(err, &cfe)
}

// Client talks to a context service. It is safe for concurrent use; every
// Fetch is a single attempt bounded by its own timeout.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client. A non-positive timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// Connections are not reused between calls.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	return &Client{
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type contextRequest struct {
	URL string `json:"url"`
}

// Fetch asks the service at serviceURL for a snapshot of pageURL.
// Every failure is returned as *ContextFetchError.
func (c *Client) Fetch(ctx context.Context, serviceURL, pageURL string) (snapshot.PageSnapshot, error) {
	fail := func(reason string, err error) (snapshot.PageSnapshot, error) {
		return snapshot.PageSnapshot{}, &ContextFetchError{ServiceURL: serviceURL, Reason: reason, Err: err}
	}
	interrupted := func(ctx context.Context) (snapshot.PageSnapshot, error) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail("timed out", ctx.Err())
		}
		return fail("canceled", ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(contextRequest{URL: pageURL})
	if err != nil {
		return fail("marshal request", err)
	}

	endpoint := strings.TrimRight(serviceURL, "/") + contextPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fail("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		return fail("request failed", err)
	}
	defer func() {
		// Drain what is left so nothing half-read stays on the connection.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBytes))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewLen))
		return fail(fmt.Sprintf("status %d", resp.StatusCode), errors.New(strings.TrimSpace(string(preview))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		return fail("read body", err)
	}
	if len(data) > MaxResponseBytes {
		return fail("response too large", fmt.Errorf("over %d bytes", MaxResponseBytes))
	}

	var snap snapshot.PageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fail("decode body", err)
	}
	return snap, nil
}
