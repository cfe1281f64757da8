// internal/adapter/trends/client.go

package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/upstream"
)

// DefaultBaseURL is the trends API root
const DefaultBaseURL = "https://www.googleapis.com/trends/v1beta"

// HTTPClient allows injecting mock HTTP clients for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles interactions with the trends API
type Client struct {
	HTTPClient HTTPClient
	BaseURL    string
	key        string
}

// NewClient creates a new trends API client. The developer key is read once here.
func NewClient(baseURL, developerKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		key:        developerKey,
	}
}

type itemsResponse struct {
	Item []struct {
		Title string  `json:"title"`
		MID   string  `json:"mid"`
		Value float64 `json:"value"`
	} `json:"item"`
}

type timelinesResponse struct {
	Lines []struct {
		Term   string `json:"term"`
		Points []struct {
			Date  string  `json:"date"`
			Value float64 `json:"value"`
		} `json:"points"`
	} `json:"lines"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TopQueries returns the top related queries for a term
func (c *Client) TopQueries(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Query, error) {
	var resp itemsResponse
	if err := c.get(ctx, "topQueries", discoveryParams(term, scope, window), &resp); err != nil {
		return nil, err
	}

	queries := make([]keyword.Query, 0, len(resp.Item))
	for _, item := range resp.Item {
		queries = append(queries, keyword.Query{Term: item.Title, Score: item.Value})
	}
	return queries, nil
}

// TopTopics returns the top related topics for a term
func (c *Client) TopTopics(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Topic, error) {
	var resp itemsResponse
	if err := c.get(ctx, "topTopics", discoveryParams(term, scope, window), &resp); err != nil {
		return nil, err
	}

	topics := make([]keyword.Topic, 0, len(resp.Item))
	for _, item := range resp.Item {
		topics = append(topics, keyword.Topic{Title: item.Title, MID: item.MID, Value: item.Value})
	}
	return topics, nil
}

// TimelinesForHealth returns the raw point series of up to 30 terms
func (c *Client) TimelinesForHealth(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) ([]keyword.TermSeries, error) {
	restriction, err := scope.TimelineRestriction()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for _, t := range terms {
		params.Add("terms", t)
	}
	params.Set("time.startDate", window.Start)
	params.Set("time.endDate", window.End)
	params.Set(restriction.Param, restriction.Value)

	var resp timelinesResponse
	if err := c.get(ctx, "timelinesForHealth", params, &resp); err != nil {
		return nil, err
	}

	series := make([]keyword.TermSeries, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		s := keyword.TermSeries{Term: line.Term, Points: make([]keyword.VolumePoint, 0, len(line.Points))}
		for _, p := range line.Points {
			s.Points = append(s.Points, keyword.VolumePoint{Date: p.Date, Value: p.Value})
		}
		series = append(series, s)
	}
	return series, nil
}

func discoveryParams(term string, scope geo.Scope, window keyword.Window) url.Values {
	restriction := scope.DiscoveryRestriction()
	params := url.Values{}
	params.Set("term", term)
	params.Set(restriction.Param, restriction.Value)
	params.Set("restrictions.startDate", window.Start)
	params.Set("restrictions.endDate", window.End)
	return params
}

// get issues a GET and decodes the body into out.
// An empty JSON object yields upstream.ErrEmptyResponse.
func (c *Client) get(ctx context.Context, method string, params url.Values, out interface{}) error {
	if c.key != "" {
		params.Set("key", c.key)
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.BaseURL, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call trends API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read trends response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}

	if isEmpty(body) {
		return upstream.ErrEmptyResponse
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode trends response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != 0 {
		return &upstream.StatusError{Code: errResp.Error.Code, Message: errResp.Error.Message}
	}
	return &upstream.StatusError{Code: status, Message: http.StatusText(status)}
}

func isEmpty(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	return len(obj) == 0
}
