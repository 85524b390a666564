// Package vision identifies products from screenshots through the OpenAI
// vision models.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

const identifyPrompt = `Analiza esta imagen y extrae la informacion del producto.
Responde SOLO con JSON:
{"product_name": "nombre", "brand": "marca", "upc": "codigo si visible", "category": "categoria"}`

var jsonObjectRegex = regexp.MustCompile(`\{[\s\S]*?\}`)

// Client identifies products from screenshots
type Client struct {
	api   *openai.Client
	model string
	debug bool
}

// NewClient creates a vision client. An empty API key is allowed; the
// client then reports itself unavailable on every call.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}
	c := &Client{model: model}
	if apiKey != "" {
		c.api = openai.NewClient(apiKey)
	}
	return c
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[VISION] "+format, args...)
	}
}

// IdentifyProduct reads a screenshot and returns what product it shows.
// imageBase64 may arrive bare or as a data URL.
func (c *Client) IdentifyProduct(ctx context.Context, imageBase64 string) (*domain.VisionResult, error) {
	if c.api == nil {
		return nil, fmt.Errorf("%w: vision API key not set", domain.ErrProviderUnavailable)
	}

	payload := strippedBase64(imageBase64)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty screenshot", domain.ErrInvalidRequest)
	}

	log.Printf("[VISION] identifying product from screenshot (%d chars)", len(payload))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 500,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/png;base64," + payload,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: identifyPrompt,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderError, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty vision reply", domain.ErrProviderError)
	}

	text := resp.Choices[0].Message.Content
	c.debugLog("raw reply: %.200s", text)

	result, err := parseVisionReply(text)
	if err != nil {
		return nil, err
	}
	log.Printf("[VISION] identified %q (brand=%q upc=%q)", result.ProductName, result.Brand, result.UPC)
	return result, nil
}

// parseVisionReply reads the JSON object out of the model reply. A reply
// with no JSON at all becomes a bare name guess.
func parseVisionReply(text string) (*domain.VisionResult, error) {
	m := jsonObjectRegex.FindString(text)
	if m == "" {
		return &domain.VisionResult{ProductName: truncateChars(strings.TrimSpace(text), 200)}, nil
	}

	var result domain.VisionResult
	if err := json.Unmarshal([]byte(m), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	return &result, nil
}

// strippedBase64 drops the data URL wrapper the extension sends.
func strippedBase64(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

func truncateChars(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
