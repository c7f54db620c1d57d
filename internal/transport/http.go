// Package transport holds the two carrier channels (REST and SFTP) plus
// the instance guard that fences off non-production copies of the system.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gvanweelden/fulfilsync/internal/config"
)

// Result captures the outcome of one outbound HTTP attempt. Network
// failures are folded in (Status 0) instead of escaping to the caller;
// the audit log wants a record either way.
type Result struct {
	Status  int
	Body    string
	Success bool
	Err     string
}

type HTTPClient struct {
	client         *http.Client
	customerNumber string
	apiKey         string
	logger         *slog.Logger
}

func NewHTTPClient(cfg *config.Config, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		client:         &http.Client{Timeout: cfg.HTTPTimeout},
		customerNumber: cfg.CustomerNumber,
		apiKey:         cfg.APIKey,
		logger:         logger,
	}
}

// PostJSON sends a payload to the carrier. Anything other than a 2xx,
// including transport-level errors, comes back as an unsuccessful Result.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, payload []byte) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("customerNumber", c.customerNumber)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Carrier request failed", "url", url, "error", err)
		return Result{Err: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: resp.StatusCode, Err: fmt.Sprintf("read response: %v", err)}
	}

	res := Result{
		Status:  resp.StatusCode,
		Body:    string(body),
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !res.Success {
		res.Err = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)
	}
	return res
}

// GetBinary downloads a document from the carrier, label PDFs mostly.
// The status code is reported alongside so the caller can audit it.
func (c *HTTPClient) GetBinary(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("customerNumber", c.customerNumber)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Carrier request failed", "url", url, "error", err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

// Client returns the underlying http.Client, exposed for tests.
func (c *HTTPClient) Client() *http.Client {
	return c.client
}
