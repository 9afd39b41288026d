// Package httpc holds the HTTP plumbing shared by the speech and
// generation providers. Never use http.DefaultClient: it has no timeout.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Client is used when a helper is passed a nil client.
var Client = NewClient(DefaultTimeout)

// NewClient returns a client whose whole request, body included, is
// bounded by timeout.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// StatusError is a non-2xx response. Body is the raw error payload so
// providers can parse their own error shape.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// PostJSON POSTs in as JSON and decodes the answer into out, which may be nil.
func PostJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, in, out any) error {
	data, err := PostForBytes(ctx, c, url, headers, in)
	if err != nil {
		return err
	}
	return decode(data, out)
}

// PostForBytes POSTs in as JSON and returns the raw answer, for endpoints
// that reply with audio.
func PostForBytes(ctx context.Context, c *http.Client, url string, headers map[string]string, in any) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := newRequest(ctx, http.MethodPost, url, headers, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return send(c, req)
}

// GetJSON GETs url and decodes the answer into out, which may be nil.
func GetJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, out any) error {
	req, err := newRequest(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	data, err := send(c, req)
	if err != nil {
		return err
	}
	return decode(data, out)
}

// Fetch downloads url.
func Fetch(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := newRequest(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	return send(c, req)
}

func newRequest(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func send(c *http.Client, req *http.Request) ([]byte, error) {
	if c == nil {
		c = Client
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

func decode(data []byte, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
