// Package search finds candidate retail pages through the Oxylabs realtime
// search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/httpx"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 20 << 20

// Client handles communication with the Oxylabs realtime search API
type Client struct {
	httpClient  *http.Client
	username    string
	password    string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new search client. Empty credentials are allowed; the
// client then reports itself unavailable on every call.
func NewClient(username, password, baseURL string) *Client {
	// The realtime endpoint tolerates short bursts but throttles sustained
	// traffic, so keep a small steady rate with headroom.
	limiter := rate.NewLimiter(rate.Limit(2), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
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
		log.Printf("[SEARCH] "+format, args...)
	}
}

type searchPayload struct {
	Source      string `json:"source"`
	Query       string `json:"query"`
	Domain      string `json:"domain"`
	Locale      string `json:"locale"`
	GeoLocation string `json:"geo_location"`
	Parse       bool   `json:"parse"`
	Pages       int    `json:"pages"`
}

// The provider has shipped two content layouts for parsed searches: organic
// and shopping blocks nested under results, or organic at the top level.
type searchResponse struct {
	Results []struct {
		Content searchContent `json:"content"`
	} `json:"results"`
}

type searchContent struct {
	Results searchBlocks   `json:"results"`
	Organic []searchResult `json:"organic"`
}

type searchBlocks struct {
	Organic  []searchResult   `json:"organic"`
	Shopping []shoppingResult `json:"shopping"`
}

type searchResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type shoppingResult struct {
	URL   string      `json:"url"`
	Title string      `json:"title"`
	Price interface{} `json:"price"`
}

// SearchStores runs one search term through the provider and returns the
// deduplicated result URLs that belong to known retailers. Results outside
// the retailer allow-list are discarded.
func (c *Client) SearchStores(ctx context.Context, term string) ([]domain.CandidateURL, error) {
	if c.username == "" || c.password == "" {
		return nil, fmt.Errorf("%w: search credentials not set", domain.ErrProviderUnavailable)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	log.Printf("[SEARCH] searching stores for %q", term)

	body, err := json.Marshal(searchPayload{
		Source:      "google_search",
		Query:       term,
		Domain:      "com.mx",
		Locale:      "es-mx",
		GeoLocation: "Mexico",
		Parse:       true,
		Pages:       2,
	})
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
		c.debugLog("search error body: %s", string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderError, resp.StatusCode)
	}

	raw, err := httpx.ReadLimitedBody(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	var candidates []domain.CandidateURL
	seen := make(map[string]bool)
	add := func(u, title, hint string) {
		if u == "" || seen[u] {
			return
		}
		lower := strings.ToLower(u)
		for _, dom := range domain.SearchDomains {
			if strings.Contains(lower, dom) {
				seen[u] = true
				candidates = append(candidates, domain.CandidateURL{
					URL:       u,
					Title:     title,
					Store:     domain.IdentifyStore(u),
					Origin:    domain.OriginSearch,
					PriceHint: hint,
				})
				return
			}
		}
		c.debugLog("skipping non-retail result: %s", u)
	}

	for _, result := range parsed.Results {
		organic := result.Content.Results.Organic
		if len(organic) == 0 {
			organic = result.Content.Organic
		}
		if len(organic) > 20 {
			organic = organic[:20]
		}
		for _, item := range organic {
			add(item.URL, item.Title, "")
		}

		shopping := result.Content.Results.Shopping
		if len(shopping) > 10 {
			shopping = shopping[:10]
		}
		for _, item := range shopping {
			add(item.URL, item.Title, hintString(item.Price))
		}
	}

	log.Printf("[SEARCH] found %d unique retail URLs for %q", len(candidates), term)
	return candidates, nil
}

// hintString renders the shopping price the provider attached to a result.
// The field arrives as a string or a bare number depending on the layout.
func hintString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
