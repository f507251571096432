package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrUnavailable indicates the translation back-end could not be reached.
var ErrUnavailable = errors.New("translation backend unavailable")

// Config contains translation client configuration
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client is an HTTP JSON client for the translation back-end. Safe for
// concurrent use; every call carries its own deadline.
type Client struct {
	config     Config
	httpClient *http.Client

	totalRequests  uint64
	failedRequests uint64

	mu sync.RWMutex
}

// ClientStats represents translation client statistics
type ClientStats struct {
	TotalRequests  uint64  `json:"total_requests"`
	FailedRequests uint64  `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}

// translateRequest is the JSON body sent to the translation endpoint.
type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// translateResponse is the JSON body returned by the translation endpoint.
type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// NewClient creates a translation HTTP client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Translate converts text from sourceLang to targetLang. Connection-level
// failures are reported as ErrUnavailable; other failures come back wrapped.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	body, err := json.Marshal(translateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		c.recordFailure()
		return "", fmt.Errorf("failed to encode translation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.recordFailure()
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure()

		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
		}
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
		c.recordFailure()
		return "", fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure()
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed translateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.recordFailure()
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return parsed.TranslatedText, nil
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.totalRequests-c.failedRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:  c.totalRequests,
		FailedRequests: c.failedRequests,
		SuccessRate:    successRate,
	}
}
