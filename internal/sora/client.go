package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for Sora client operations.
var (
	// ErrAPIURLRequired is returned when the API URL is not provided.
	ErrAPIURLRequired = errors.New("sora: API URL is required")
	// ErrTokenNotSet is returned when the SORA_API_TOKEN is not provided.
	ErrTokenNotSet = errors.New("sora: API token is required")
	// ErrServerError is returned when the server keeps failing with 500/503
	// after all retries.
	ErrServerError = errors.New("sora: server error")
	// ErrRequestFailed is returned when the request fails with a
	// non-retryable non-2xx status code.
	ErrRequestFailed = errors.New("sora: request failed")
	// ErrNoResponseBody is returned when a 2xx response carries no body.
	ErrNoResponseBody = errors.New("sora: no response body")
)

// Client defines the interface for opening a generation stream.
// The client does not interpret the stream body; decoding is the stream
// package's job.
type Client interface {
	// Generate opens a streaming generation request for the prompt using the
	// given model. On success it returns the open response body; the caller
	// must close it.
	Generate(ctx context.Context, prompt, model string) (io.ReadCloser, error)
}

// HTTPClient is the HTTP implementation of the Sora Client interface.
type HTTPClient struct {
	apiURL     string
	token      string
	httpClient *http.Client
	maxRetries int
	retryWait  time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for 500/503 responses.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithRetryWait sets the fixed wait between retry attempts.
func WithRetryWait(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.retryWait = d
	}
}

// NewClient creates a new Sora HTTP client.
// The token can be set via the WithToken option. If not provided, it is read
// from the environment variable SORA_API_TOKEN. The API URL must be provided.
//
// The default HTTP client has no overall timeout: a generation stream stays
// open for minutes while the provider renders.
func NewClient(apiURL string, opts ...ClientOption) (*HTTPClient, error) {
	if apiURL == "" {
		return nil, ErrAPIURLRequired
	}

	c := &HTTPClient{
		apiURL:     apiURL,
		httpClient: &http.Client{},
		maxRetries: 5,
		retryWait:  2 * time.Second,
	}

	// Apply options first to allow WithToken to set the token
	for _, opt := range opts {
		opt(c)
	}

	// If token was not set via option, try environment variable
	if c.token == "" {
		c.token = os.Getenv("SORA_API_TOKEN")
	}

	if c.token == "" {
		return nil, ErrTokenNotSet
	}

	return c, nil
}

// Generate opens a streaming generation request.
//
// Retry policy: a 500 or 503 response retries the entire request, up to
// maxRetries additional attempts, with a fixed wait between attempts. Any
// other non-2xx status is a hard failure carrying the status code and text.
// Network errors are not retried.
func (c *HTTPClient) Generate(ctx context.Context, prompt, model string) (io.ReadCloser, error) {
	body, err := json.Marshal(generateRequest{
		Messages: []message{{Role: "user", Content: prompt}},
		Model:    model,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("sora: marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.doRequest(ctx, body)
		if err != nil {
			return nil, err
		}

		if (resp.StatusCode == http.StatusInternalServerError ||
			resp.StatusCode == http.StatusServiceUnavailable) && attempt < c.maxRetries {
			drainAndClose(resp.Body)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("sora: context cancelled: %w", ctx.Err())
			case <-time.After(c.retryWait):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			text := readErrorBody(resp.Body)
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: %d %s: %s",
					ErrServerError, resp.StatusCode, http.StatusText(resp.StatusCode), text)
			}
			return nil, fmt.Errorf("%w: %d %s: %s",
				ErrRequestFailed, resp.StatusCode, http.StatusText(resp.StatusCode), text)
		}

		if resp.Body == nil || resp.Body == http.NoBody {
			return nil, ErrNoResponseBody
		}
		return resp.Body, nil
	}
}

// doRequest performs a single request attempt.
func (c *HTTPClient) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sora: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sora: request failed: %w", err)
	}
	return resp, nil
}

// drainAndClose discards the body of a response being retried so the
// connection can be reused.
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}

// readErrorBody reads a bounded amount of an error response for diagnostics.
func readErrorBody(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(data))
}
