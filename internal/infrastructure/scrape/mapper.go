package scrape

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// maxAmazonRows caps how many parsed rows one result page contributes.
const maxAmazonRows = 15

// amazonItem is one parsed product row. Price arrives as a number or a
// display string depending on the listing, so both forms are kept.
type amazonItem struct {
	Title       string      `json:"title"`
	Price       interface{} `json:"price"`
	PriceString string      `json:"price_string"`
	PriceUpper  string      `json:"price_upper"`
	URL         string      `json:"url"`
	URLProduct  string      `json:"url_product"`
	ASIN        string      `json:"asin"`
}

// The amazon_search source has shipped three content layouts: organic rows
// nested under results, organic rows at the top level, or a bare row list.
type amazonNested struct {
	Results struct {
		Organic []amazonItem `json:"organic"`
	} `json:"results"`
	Organic []amazonItem `json:"organic"`
}

// mapAmazonContent converts one result's content into domain rows, whatever
// layout the provider used. Rows without a usable price are dropped.
func mapAmazonContent(raw json.RawMessage) []domain.AmazonResult {
	if len(raw) == 0 {
		return nil
	}

	var items []amazonItem
	var nested amazonNested
	if err := json.Unmarshal(raw, &nested); err == nil {
		items = nested.Results.Organic
		if len(items) == 0 {
			items = nested.Organic
		}
	}
	if len(items) == 0 {
		var bare []amazonItem
		if err := json.Unmarshal(raw, &bare); err == nil {
			items = bare
		}
	}

	if len(items) > maxAmazonRows {
		items = items[:maxAmazonRows]
	}

	var rows []domain.AmazonResult
	for _, item := range items {
		price := itemPrice(item)
		if price <= 0 {
			continue
		}
		rows = append(rows, domain.AmazonResult{
			Title: item.Title,
			Price: price,
			URL:   itemURL(item),
		})
	}
	return rows
}

func itemPrice(item amazonItem) float64 {
	if n, ok := item.Price.(float64); ok && n > 0 {
		return n
	}
	if s, ok := item.Price.(string); ok {
		if n := priceFromText(s); n > 0 {
			return n
		}
	}
	if n := priceFromText(item.PriceString); n > 0 {
		return n
	}
	return priceFromText(item.PriceUpper)
}

// itemURL resolves the row to an absolute product URL, preferring the ASIN
// since listing URLs carry tracking junk.
func itemURL(item amazonItem) string {
	if item.ASIN != "" {
		return "https://www.amazon.com.mx/dp/" + item.ASIN
	}
	u := item.URL
	if u == "" {
		u = item.URLProduct
	}
	if strings.HasPrefix(u, "/") {
		return "https://www.amazon.com.mx" + u
	}
	return u
}

var priceTextRegex = regexp.MustCompile(`([\d,]+(?:\.\d+)?)`)

func priceFromText(text string) float64 {
	m := priceTextRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return n
}
