// Package scrape fetches rendered retail pages and structured Amazon search
// results through the Oxylabs realtime scraper API.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/httpx"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 20 << 20

	// Rendered pages under this length are provider error stubs, not
	// real content.
	minContentLength = 100
)

// Client handles communication with the Oxylabs realtime scraper API
type Client struct {
	httpClient  *http.Client
	username    string
	password    string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new scrape client. Empty credentials are allowed; the
// client then reports itself unavailable on every call.
func NewClient(username, password, baseURL string) *Client {
	// Page rendering is slow on the provider side; the limiter only guards
	// against hammering it when many workers start at once.
	limiter := rate.NewLimiter(rate.Limit(5), 10)

	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		username:    username,
		password:    password,
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[SCRAPE] "+format, args...)
	}
}

type fetchPayload struct {
	Source      string `json:"source"`
	URL         string `json:"url"`
	GeoLocation string `json:"geo_location"`
	Render      string `json:"render"`
}

type amazonPayload struct {
	Source string `json:"source"`
	Domain string `json:"domain"`
	Query  string `json:"query"`
	Parse  bool   `json:"parse"`
	Pages  int    `json:"pages"`
}

type queryResponse struct {
	Results []struct {
		Content json.RawMessage `json:"content"`
	} `json:"results"`
}

func (c *Client) post(ctx context.Context, payload interface{}) (*queryResponse, error) {
	if c.username == "" || c.password == "" {
		return nil, fmt.Errorf("%w: scrape credentials not set", domain.ErrProviderUnavailable)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := httpx.DoWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/queries", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.password)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := httpx.ReadLimitedBody(resp.Body, 512)
		c.debugLog("scrape error body: %s", string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderError, resp.StatusCode)
	}

	raw, err := httpx.ReadLimitedBody(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	return &parsed, nil
}

// FetchPage retrieves one URL rendered to HTML and returns the page source.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	log.Printf("[SCRAPE] fetching %.80s", pageURL)

	parsed, err := c.post(ctx, fetchPayload{
		Source:      "universal",
		URL:         pageURL,
		GeoLocation: "Mexico",
		Render:      "html",
	})
	if err != nil {
		return "", err
	}

	for _, result := range parsed.Results {
		var content string
		if err := json.Unmarshal(result.Content, &content); err != nil {
			continue
		}
		if len(content) > minContentLength {
			c.debugLog("fetched %d chars from %.60s", len(content), pageURL)
			return content, nil
		}
	}
	return "", fmt.Errorf("%w: no usable page content", domain.ErrParseFailure)
}

// SearchAmazon runs one query through the provider's structured Amazon
// source and returns the parsed product rows. An empty slice with no error
// means the search worked but matched nothing.
func (c *Client) SearchAmazon(ctx context.Context, query string) ([]domain.AmazonResult, error) {
	log.Printf("[SCRAPE] searching amazon for %q", query)

	parsed, err := c.post(ctx, amazonPayload{
		Source: "amazon_search",
		Domain: "com.mx",
		Query:  query,
		Parse:  true,
		Pages:  1,
	})
	if err != nil {
		return nil, err
	}

	var rows []domain.AmazonResult
	for _, result := range parsed.Results {
		rows = append(rows, mapAmazonContent(result.Content)...)
	}
	log.Printf("[SCRAPE] amazon returned %d product rows", len(rows))
	return rows, nil
}
