// Package http holds the shared outbound client for the mapping provider
// calls. One instance is built per places client with the configured
// request timeout; retry policy stays with the callers.
package http

import (
	"context"
	"net/http"
	"time"
)

// Client bounds every round trip with a single timeout. It carries no
// retry or backoff logic of its own.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoWithContext runs the request under the caller's context in addition
// to the client-level timeout; whichever expires first cancels the call.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
