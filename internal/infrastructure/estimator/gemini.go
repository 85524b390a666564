package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/httpx"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiEstimator asks Gemini for prices from model knowledge. The model
// has no live retrieval, so every price it returns is an estimate and is
// flagged as one.
type GeminiEstimator struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	bounds     domain.PriceBounds
	debug      bool
}

// NewGeminiEstimator creates a Gemini-backed estimator. An empty API key is
// allowed; the estimator then answers every call with no offers.
func NewGeminiEstimator(apiKey, baseURL, model string, bounds domain.PriceBounds) *GeminiEstimator {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if bounds.Max <= 0 {
		bounds = domain.DefaultPriceBounds
	}
	return &GeminiEstimator{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		bounds:     bounds,
	}
}

// Name identifies the estimator in offer sources and logs.
func (e *GeminiEstimator) Name() string { return "gemini" }

// SetDebug enables or disables debug logging
func (e *GeminiEstimator) SetDebug(enabled bool) {
	e.debug = enabled
}

func (e *GeminiEstimator) debugLog(format string, args ...interface{}) {
	if e.debug {
		log.Printf("[GEMINI] "+format, args...)
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// EstimatePrices returns model-knowledge price estimates for the product.
// Every failure path resolves to an empty slice.
func (e *GeminiEstimator) EstimatePrices(ctx context.Context, query *domain.ProductQuery) (offers []domain.StoreOffer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[GEMINI] recovered: %v", r)
			offers = nil
		}
	}()

	if e.apiKey == "" {
		log.Printf("[GEMINI] skipped: no API key")
		return nil
	}

	log.Printf("[GEMINI] estimating prices for %q (upc=%q)", query.Name, query.UPC)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: e.buildPrompt(query)}}}},
	})
	if err != nil {
		log.Printf("[GEMINI] failed to encode request: %v", err)
		return nil
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		e.baseURL, e.model, url.QueryEscape(e.apiKey))

	resp, err := httpx.DoWithRetry(ctx, e.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		log.Printf("[GEMINI] request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := httpx.ReadLimitedBody(resp.Body, 512)
		log.Printf("[GEMINI] status %d: %.200s", resp.StatusCode, string(raw))
		return nil
	}

	raw, err := httpx.ReadLimitedBody(resp.Body, 1<<20)
	if err != nil {
		log.Printf("[GEMINI] read failed: %v", err)
		return nil
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("[GEMINI] decode failed: %v", err)
		return nil
	}

	var text strings.Builder
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	e.debugLog("raw reply: %.400s", text.String())

	offers = PricesFromReply(text.String(), "gemini", true, e.bounds)
	log.Printf("[GEMINI] parsed %d estimated prices", len(offers))
	return offers
}

func (e *GeminiEstimator) buildPrompt(query *domain.ProductQuery) string {
	return "Basandote en tu conocimiento de precios en tiendas mexicanas, proporciona precios ESTIMADOS para este producto:\n\n" +
		promptProductLines(query) +
		"\nTiendas a considerar: Amazon Mexico, Walmart Mexico, Mercado Libre, Soriana, Chedraui, HEB, Farmacias Guadalajara, Farmacias del Ahorro.\n\n" +
		"IMPORTANTE: Responde UNICAMENTE con un JSON array valido, sin explicaciones:\n" +
		`[{"store": "Nombre Tienda", "price": 25.90}]` + "\n\n" +
		"Si no tienes informacion del producto, responde: []"
}
