// Package imagesearch wraps the keyed image-search endpoint the editor
// assistant pulls illustrations from: one GET with the API key and query
// in the URL, one JSON page of hits back.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultLimit = 10

// Image is the subset of a hit the assistant inserts into markdown; the
// rest of the provider's schema stays opaque.
type Image struct {
	ID         int    `json:"id"`
	Tags       string `json:"tags"`
	PageURL    string `json:"pageURL"`
	PreviewURL string `json:"previewURL"`
	LargeURL   string `json:"largeImageURL"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Image, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse image api url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search: status %d", resp.StatusCode)
	}

	var page struct {
		Hits []Image `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("image search: decode page: %w", err)
	}

	c.log.Debug("image search done",
		slog.String("query", query),
		slog.Int("hits", len(page.Hits)))
	return page.Hits, nil
}
