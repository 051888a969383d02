// Package api is the HTTP client for the remote Quick Market API. Payment
// calls are never retried or short-circuited; read-only calls go through a
// circuit breaker.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnsuccessful means the API answered with success:false.
	ErrUnsuccessful = errors.New("api request was not successful")
	ErrCircuitOpen  = errors.New("api temporarily unavailable")
)

const maxBodySize = 4 << 20

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type rawResponse struct {
	body   []byte
	status int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	reads      *gobreaker.CircuitBreaker[rawResponse]

	sfg          singleflight.Group // collapses concurrent locations fetches
	mu           sync.RWMutex
	locations    []Location
	locationsAt  time.Time
	locationsTTL time.Duration
	now          func() time.Time
}

// NewClient builds a client for baseURL. A zero timeout means no client-side
// timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		reads: gobreaker.NewCircuitBreaker[rawResponse](gobreaker.Settings{
			Name:        "quickmarket-api-reads",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: isBreakerSuccess,
		}),
		locationsTTL: 5 * time.Minute,
		now:          time.Now,
	}
}

type bearerKey struct{}

// WithBearer attaches the visitor's API token to outgoing calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func (c *Client) do(ctx context.Context, method, path string, in any) (rawResponse, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return rawResponse{}, fmt.Errorf("marshal request failed: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return rawResponse{}, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := ctx.Value(bearerKey{}).(string); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{}, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return rawResponse{}, fmt.Errorf("read %s response failed: %w", path, err)
	}
	return rawResponse{body: data, status: resp.StatusCode}, nil
}

// read runs a GET through the breaker. Only transport errors and 5xx count
// as breaker failures; a cancelled or expired caller context does not.
func (c *Client) read(ctx context.Context, path string) (rawResponse, error) {
	resp, err := c.reads.Execute(func() (rawResponse, error) {
		r, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return r, err
		}
		if r.status >= http.StatusInternalServerError {
			return r, fmt.Errorf("GET %s returned %d", path, r.status)
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return rawResponse{}, ErrCircuitOpen
	}
	return resp, err
}

// isBreakerSuccess keeps a caller giving up on its own request from counting
// against the API.
func isBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func decodeEnvelope[T any](r rawResponse, path string) (T, error) {
	var env envelope[T]
	if err := json.Unmarshal(r.body, &env); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s response (status %d) failed: %w", path, r.status, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", r.status)
		}
		return env.Data, fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
	}
	return env.Data, nil
}
