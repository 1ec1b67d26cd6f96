package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
)

// Client looks tracks up in the catalog service. Search failures are never
// fatal for the caller: they surface as an error alongside zero results.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a catalog client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type searchResponse struct {
	Results []models.Track `json:"results"`
}

// Search queries the catalog. The returned slice is never nil.
func (c *Client) Search(ctx context.Context, query string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return []models.Track{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("catalog search failed")
		return []models.Track{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		log.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("catalog search rejected")
		return []models.Track{}, fmt.Errorf("catalog returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Warn().Err(err).Str("query", query).Msg("malformed catalog response")
		return []models.Track{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Results == nil {
		return []models.Track{}, nil
	}
	return parsed.Results, nil
}
