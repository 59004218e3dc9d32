// Package search implements the web-search provider used to turn product
// mentions into links.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"healthchat/internal/config"
	"healthchat/pkg"
)

// BraveClient queries the Brave Search web API.
type BraveClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewBraveClient builds a client from configuration.  The HTTP client
// timeout bounds each search independently of the caller's context.
func NewBraveClient(cfg config.SearchConfig) *BraveClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BraveClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			MetaURL     struct {
				Hostname string `json:"hostname"`
			} `json:"meta_url"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns up to limit results for query.  An unconfigured client and
// an empty result set both yield an empty slice without error.
func (c *BraveClient) Search(ctx context.Context, query string, limit int) ([]pkg.SearchResult, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search service returned status %d: %s", resp.StatusCode, string(body))
	}

	var br braveResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]pkg.SearchResult, 0, limit)
	for _, r := range br.Web.Results {
		if len(results) == limit {
			break
		}
		if r.URL == "" {
			continue
		}
		source := r.MetaURL.Hostname
		if source == "" {
			if u, err := url.Parse(r.URL); err == nil {
				source = u.Hostname()
			}
		}
		results = append(results, pkg.SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Source:      source,
		})
	}
	return results, nil
}
