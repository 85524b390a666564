// Package catalog looks up known products in the internal catalog service,
// mainly to resolve product names to barcodes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/httpx"
)

const searchLimit = 10

// Client handles communication with the product catalog service
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	debug      bool
}

// NewClient creates a catalog client. An empty base URL is allowed; the
// client then reports itself unavailable on every call.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[CATALOG] "+format, args...)
	}
}

// SearchProducts finds catalog rows matching the free-text query.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.CatalogProduct, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: catalog service not configured", domain.ErrProviderUnavailable)
	}

	log.Printf("[CATALOG] searching products for %q", query)

	params := url.Values{}
	params.Add("search", query)
	params.Add("limit", fmt.Sprintf("%d", searchLimit))
	reqURL := fmt.Sprintf("%s/products?%s", c.baseURL, params.Encode())

	resp, err := httpx.DoWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := httpx.ReadLimitedBody(resp.Body, 512)
		c.debugLog("catalog error body: %s", string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderError, resp.StatusCode)
	}

	var products []domain.CatalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	log.Printf("[CATALOG] found %d products for %q", len(products), query)
	return products, nil
}
