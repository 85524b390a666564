// Package estimator holds the model-backed price estimators. The adapters
// share one reply parser: the prompts demand a bare JSON array of store
// rows, and when a model wraps or ignores that, a free-text sweep recovers
// what it can. Estimators never return errors; a failed call is an empty
// slice.
package estimator

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// ExtractJSONArray returns the first complete JSON array in text, tracking
// nesting and string literals so brackets inside values do not end the scan
// early. Returns "" when no balanced array exists.
func ExtractJSONArray(text string) string {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// storeRow is the reply shape the prompts ask for. Models send price as a
// number or a string depending on mood.
type storeRow struct {
	Store string      `json:"store"`
	Price interface{} `json:"price"`
	URL   string      `json:"url"`
}

// ParseStorePrices decodes the JSON array in a model reply into offers.
// Rows without a store name or with an implausible price are dropped.
func ParseStorePrices(text, source string, estimated bool, bounds domain.PriceBounds) []domain.StoreOffer {
	arr := ExtractJSONArray(text)
	if arr == "" {
		return nil
	}

	var rows []storeRow
	if err := json.Unmarshal([]byte(arr), &rows); err != nil {
		return nil
	}

	var offers []domain.StoreOffer
	for _, row := range rows {
		store := strings.TrimSpace(row.Store)
		price := rowPrice(row.Price)
		if store == "" || !bounds.Plausible(price) {
			continue
		}
		offers = append(offers, domain.StoreOffer{
			Store:     store,
			Price:     price,
			URL:       row.URL,
			Source:    source,
			Estimated: estimated,
		})
	}
	return offers
}

// fallbackStoreNames are the retailer name shapes swept for when a model
// answers in prose instead of JSON.
var fallbackStoreNames = []string{
	`Amazon`,
	`Walmart`,
	`Mercado\s*Libre`,
	`Soriana`,
	`Chedraui`,
	`HEB`,
	`Farmacia[s]?\s*(?:del\s*)?Ahorro`,
	`Farmacia[s]?\s*Guadalajara`,
}

var fallbackStorePatterns = buildFallbackPatterns()

func buildFallbackPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(fallbackStoreNames))
	for _, name := range fallbackStoreNames {
		patterns = append(patterns, regexp.MustCompile(
			`(?i)(`+name+`[^:]*?)[:.\s]+\$?\s*([\d,]+\.?\d*)\s*(?:MXN|pesos)?`))
	}
	return patterns
}

// FallbackStorePrices sweeps free text for "Store: $price" shapes.
func FallbackStorePrices(text, source string, estimated bool, bounds domain.PriceBounds) []domain.StoreOffer {
	var offers []domain.StoreOffer
	for _, pattern := range fallbackStorePatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			price, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
			if err != nil || !bounds.Plausible(price) {
				continue
			}
			offers = append(offers, domain.StoreOffer{
				Store:     strings.TrimSpace(m[1]),
				Price:     price,
				Source:    source,
				Estimated: estimated,
			})
		}
	}
	return offers
}

// PricesFromReply turns one model reply into offers: the JSON array the
// prompt demands when present, otherwise the free-text sweep. An explicit
// empty array means the model found nothing and is honored as-is.
func PricesFromReply(text, source string, estimated bool, bounds domain.PriceBounds) []domain.StoreOffer {
	if offers := ParseStorePrices(text, source, estimated, bounds); len(offers) > 0 {
		return offers
	}
	if strings.Contains(text, "[]") {
		return nil
	}
	return FallbackStorePrices(text, source, estimated, bounds)
}

func rowPrice(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "$"))
		n, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func truncateChars(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// promptProductLines renders the product block shared by the estimator
// prompts: the primary term line plus whichever identity lines exist.
func promptProductLines(query *domain.ProductQuery) string {
	term := query.UPC
	if term == "" {
		term = truncateChars(query.Name, 60)
	}

	var b strings.Builder
	b.WriteString("Busqueda: " + term + "\n")
	if query.UPC != "" {
		b.WriteString("UPC: " + query.UPC + "\n")
	}
	if query.Name != "" {
		b.WriteString("Producto: " + query.Name + "\n")
	}
	if query.Brand != "" {
		b.WriteString("Marca: " + query.Brand + "\n")
	}
	return b.String()
}
