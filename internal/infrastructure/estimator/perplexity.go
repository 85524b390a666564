package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/httpx"
)

const defaultPerplexityModel = "sonar"

// PerplexityEstimator asks Perplexity for current prices. The model does
// live retrieval; when the reply carries citations the prices are treated
// as observed, otherwise they are flagged as estimates like any other
// model guess.
type PerplexityEstimator struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	bounds     domain.PriceBounds
	debug      bool
}

// NewPerplexityEstimator creates a Perplexity-backed estimator. An empty
// API key is allowed; the estimator then answers every call with no offers.
func NewPerplexityEstimator(apiKey, baseURL, model string, bounds domain.PriceBounds) *PerplexityEstimator {
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	if model == "" {
		model = defaultPerplexityModel
	}
	if bounds.Max <= 0 {
		bounds = domain.DefaultPriceBounds
	}
	return &PerplexityEstimator{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		bounds:     bounds,
	}
}

// Name identifies the estimator in offer sources and logs.
func (e *PerplexityEstimator) Name() string { return "perplexity" }

// SetDebug enables or disables debug logging
func (e *PerplexityEstimator) SetDebug(enabled bool) {
	e.debug = enabled
}

func (e *PerplexityEstimator) debugLog(format string, args ...interface{}) {
	if e.debug {
		log.Printf("[PERPLEXITY] "+format, args...)
	}
}

type perplexityRequest struct {
	Model               string              `json:"model"`
	Messages            []perplexityMessage `json:"messages"`
	Temperature         float64             `json:"temperature"`
	SearchRecencyFilter string              `json:"search_recency_filter"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// EstimatePrices returns retrieval-backed prices for the product. Every
// failure path resolves to an empty slice.
func (e *PerplexityEstimator) EstimatePrices(ctx context.Context, query *domain.ProductQuery) (offers []domain.StoreOffer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PERPLEXITY] recovered: %v", r)
			offers = nil
		}
	}()

	if e.apiKey == "" {
		log.Printf("[PERPLEXITY] skipped: no API key")
		return nil
	}

	log.Printf("[PERPLEXITY] searching prices for %q (upc=%q)", query.Name, query.UPC)

	body, err := json.Marshal(perplexityRequest{
		Model:               e.model,
		Messages:            []perplexityMessage{{Role: "user", Content: e.buildPrompt(query)}},
		Temperature:         0.1,
		SearchRecencyFilter: "week",
	})
	if err != nil {
		log.Printf("[PERPLEXITY] failed to encode request: %v", err)
		return nil
	}

	resp, err := httpx.DoWithRetry(ctx, e.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		log.Printf("[PERPLEXITY] request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := httpx.ReadLimitedBody(resp.Body, 512)
		log.Printf("[PERPLEXITY] status %d: %.300s", resp.StatusCode, string(raw))
		return nil
	}

	raw, err := httpx.ReadLimitedBody(resp.Body, 1<<20)
	if err != nil {
		log.Printf("[PERPLEXITY] read failed: %v", err)
		return nil
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("[PERPLEXITY] decode failed: %v", err)
		return nil
	}
	if len(parsed.Choices) == 0 {
		log.Printf("[PERPLEXITY] empty reply")
		return nil
	}

	text := parsed.Choices[0].Message.Content
	e.debugLog("raw reply: %.400s", text)

	// Prices only count as observed when the reply cites sources.
	grounded := len(parsed.Citations) > 0
	offers = PricesFromReply(text, "perplexity", !grounded, e.bounds)
	log.Printf("[PERPLEXITY] parsed %d prices (grounded=%t)", len(offers), grounded)
	return offers
}

func (e *PerplexityEstimator) buildPrompt(query *domain.ProductQuery) string {
	return "Busca el precio actual de este producto en tiendas de Mexico:\n\n" +
		promptProductLines(query) +
		"\nBusca precios en: Amazon Mexico, Walmart Mexico, Mercado Libre, Soriana, Chedraui, HEB, Farmacias Guadalajara.\n\n" +
		"IMPORTANTE: Responde UNICAMENTE con un JSON array valido (sin explicaciones ni texto adicional):\n" +
		`[{"store": "Nombre Tienda", "price": 25.90}]` + "\n\n" +
		"Si no encuentras precios, responde exactamente: []"
}
