// internal/adapter/search/client.go

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wallace/internal/domain/upstream"
)

// DefaultURL is the custom search endpoint
const DefaultURL = "https://www.googleapis.com/customsearch/v1"

// HTTPClient allows injecting mock HTTP clients for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one organic search result
type Result struct {
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
}

// Client handles interactions with the custom search API
type Client struct {
	HTTPClient HTTPClient
	URL        string
	EngineID   string
	key        string
}

// NewClient creates a new custom search client
func NewClient(endpoint, engineID, key string) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		URL:        endpoint,
		EngineID:   engineID,
		key:        key,
	}
}

type searchResponse struct {
	Items []Result `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns the first page of results for q.
// A 403 means the daily quota is spent and matches upstream.ErrQuotaExceeded.
func (c *Client) Search(ctx context.Context, q string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("cx", c.EngineID)
	params.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &upstream.StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	code := resp.StatusCode
	if sr.Error != nil && sr.Error.Code != 0 {
		code = sr.Error.Code
	}
	if code != http.StatusOK {
		statusErr := &upstream.StatusError{Code: code}
		if sr.Error != nil {
			statusErr.Message = sr.Error.Message
		}
		if code == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w", upstream.ErrQuotaExceeded, statusErr)
		}
		return nil, statusErr
	}

	if len(sr.Items) == 0 {
		return nil, upstream.ErrEmptyResponse
	}
	return sr.Items, nil
}
