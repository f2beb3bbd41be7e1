// Package client provides the upload client that sends pending record
// payloads to the remote sync endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upload operations.
var (
	uploadRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_upload_requests_total",
		Help: "Total upload requests by status",
	}, []string{"status"})

	uploadRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_upload_request_duration_seconds",
		Help:    "Upload request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	uploadErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_upload_errors_total",
		Help: "Total upload errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of upload failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassInvalidResponse represents a 2xx answer without a JSON body.
	ErrorClassInvalidResponse ErrorClass = "invalid_response"
)

// maxResponseBody bounds how much of an endpoint answer is read.
const maxResponseBody = 1 << 20

// Client uploads pending records.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the remote upload URL (REQUIRED, no default).
	Endpoint string

	// UserAgent is sent with every upload.
	UserAgent string

	// Timeout bounds one upload request.
	Timeout time.Duration
}

// DefaultConfig returns a default configuration for endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:  endpoint,
		UserAgent: "offline-agent/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new upload client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoUploadEndpoint
	}

	req, err := http.NewRequest(http.MethodPost, cfg.Endpoint, nil)
	if err != nil || !req.URL.IsAbs() {
		return nil, fmt.Errorf("invalid upload endpoint %q", cfg.Endpoint)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "upload-client").Logger(),
	}, nil
}

// Endpoint returns the configured upload URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Upload POSTs payload as JSON to the endpoint. It succeeds only when the
// endpoint answers with a 2xx status and a JSON body; every other outcome is
// returned as *StatusError.
func (c *Client) Upload(ctx context.Context, payload []byte) error {
	startTime := time.Now()
	defer func() {
		uploadRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Build the request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Step 2: Send it
	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		uploadErrorsTotal.WithLabelValues(string(errClass)).Inc()
		uploadRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", c.config.Endpoint).Msg("Upload request failed")
		return &StatusError{ErrorClass: errClass, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	uploadRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		uploadErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &StatusError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read response", Err: err}
	}

	// Step 3: Classify the answer
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := c.classifyError(resp, nil)
		uploadErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upload rejected")
		return &StatusError{StatusCode: resp.StatusCode, ErrorClass: errClass, Message: resp.Status}
	}

	if !json.Valid(body) {
		uploadErrorsTotal.WithLabelValues(string(ErrorClassInvalidResponse)).Inc()
		return &StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassInvalidResponse,
			Message:    "response body is not JSON",
		}
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(payload)).
		Msg("Upload acknowledged")
	return nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx answers are not an acknowledgement either
		return ErrorClassServer
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
