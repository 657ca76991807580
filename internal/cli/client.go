package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/me/schedpol/pkg/model"
)

// Client is an HTTP client for a running engine's statistics endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates an engine statistics client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// statsPayload mirrors the engine's /api/stats response.
type statsPayload struct {
	Policy    string             `json:"policy"`
	Run       string             `json:"run"`
	Processes []model.ProcessRow `json:"processes"`
}

// Stats fetches the live counter snapshot from the engine.
func (c *Client) Stats() (*statsPayload, error) {
	url := c.BaseURL + "/api/stats"
	c.Logger.Debug("HTTP request", "method", "GET", "url", url)

	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.Logger.Debug("HTTP response", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d", resp.StatusCode)
	}

	var payload statsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &payload, nil
}
