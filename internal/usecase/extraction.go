package usecase

import (
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Extraction method tags recorded on offers.
const (
	methodJSONLD   = "jsonld"
	methodState    = "state"
	methodPairs    = "pairs"
	methodNextData = "nextdata"
	methodMarkup   = "markup"
	methodPattern  = "pattern"
)

// minorUnitThreshold separates peso prices from platform prices reported in
// integer centavos. Captures above it are divided by 100.
const minorUnitThreshold = 10000

var (
	jsonLDRegex = regexp.MustCompile(`(?is)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

	stateRegex = regexp.MustCompile(`(?s)__STATE__\s*=\s*(\{.*?\});?\s*(?:</script>|window\.)`)

	// Paired productName/price fields inside embedded scripts, from the
	// tightest shape to the loosest bounded window.
	pairPatterns = []struct {
		re         *regexp.Regexp
		minorUnits bool
	}{
		{re: regexp.MustCompile(`"productName"\s*:\s*"([^"]+)"[^}]*"sellingPrice"\s*:\s*(\d+)`), minorUnits: true},
		{re: regexp.MustCompile(`"product"\s*:\s*\{[^}]*"productName"\s*:\s*"([^"]+)"[^}]*\}[^}]*"priceRange"\s*:\s*\{[^}]*"sellingPrice"\s*:\s*\{[^}]*"lowPrice"\s*:\s*([\d.]+)`)},
		{re: regexp.MustCompile(`(?s)"productName"\s*:\s*"([^"]+)".{0,500}?"(?:Price|sellingPrice)"\s*:\s*([\d.]+)`), minorUnits: true},
		{re: regexp.MustCompile(`(?s)"(?:name|title|productName)"\s*:\s*"([^"]{5,100})".{0,300}?"(?:price|Price|salePrice|sellingPrice|currentPrice)"\s*:\s*"?([\d.]+)"?`), minorUnits: true},
	}

	nextDataRegex = regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

	// Name and price sitting close together in plain markup.
	markupPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)data-product-name="([^"]{5,100})".{0,500}?\$\s*([\d,]+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?is)aria-label="([^"]{5,100})".{0,300}?\$\s*([\d,]+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?is)<img[^>]*title="([^"]{5,80})"[^>]*>.{0,400}?\$\s*([\d,]+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?is)<h[23][^>]*>([^<]{5,80})</h[23]>.{0,300}?\$\s*([\d,]+(?:\.\d{2})?)`),
	}
)

// Extractor turns raw page content into (title, price) candidates without
// retailer-specific layout code. Strategies run in order of reliability and
// the first one that produces anything wins.
type Extractor struct {
	bounds domain.PriceBounds
	debug  bool
}

// NewExtractor creates an extractor enforcing the given plausibility bounds
func NewExtractor(bounds domain.PriceBounds) *Extractor {
	return &Extractor{bounds: bounds}
}

// SetDebug enables verbose extraction logs
func (e *Extractor) SetDebug(debug bool) {
	e.debug = debug
}

// ExtractOffers runs the strategy cascade over page content. An empty result
// is routine: it means no strategy recognized the content, not an error.
func (e *Extractor) ExtractOffers(content, storeName string) []domain.ExtractedOffer {
	if content == "" {
		return nil
	}

	strategies := []struct {
		method string
		fn     func(string) []domain.ExtractedOffer
	}{
		{methodJSONLD, e.extractJSONLD},
		{methodState, e.extractStateObject},
		{methodPairs, e.extractPairedFields},
		{methodNextData, e.extractDataIsland},
		{methodMarkup, e.extractMarkup},
	}

	for _, s := range strategies {
		offers := s.fn(content)
		if len(offers) > 0 {
			if e.debug {
				log.Printf("[EXTRACT] [%s] %s: %d offers", storeName, s.method, len(offers))
			}
			return offers
		}
	}
	return nil
}

// extractJSONLD reads schema.org Product, ProductGroup and ItemList blocks.
func (e *Extractor) extractJSONLD(content string) []domain.ExtractedOffer {
	var offers []domain.ExtractedOffer

	for _, m := range jsonLDRegex.FindAllStringSubmatch(content, -1) {
		var data interface{}
		if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
			continue
		}
		items, ok := data.([]interface{})
		if !ok {
			items = []interface{}{data}
		}
		for _, raw := range items {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch schemaType(item) {
			case "ItemList":
				for _, elemRaw := range asSlice(item["itemListElement"]) {
					elem, ok := elemRaw.(map[string]interface{})
					if !ok {
						continue
					}
					prod, ok := elem["item"].(map[string]interface{})
					if !ok {
						continue
					}
					e.appendOffer(&offers, stringField(prod, "name"), offersPrice(prod["offers"]), methodJSONLD, false)
				}
			case "Product", "ProductGroup":
				e.appendOffer(&offers, stringField(item, "name"), offersPrice(item["offers"]), methodJSONLD, false)
			}
		}
	}
	return offers
}

// extractStateObject reads the flat normalized state object some platforms
// embed, where every entry may be a product carrying its name and price, or
// nesting it under item, seller and commercial offer.
func (e *Extractor) extractStateObject(content string) []domain.ExtractedOffer {
	m := stateRegex.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	// Raw state objects leave literal undefined values behind.
	raw := strings.ReplaceAll(m[1], "undefined", "null")
	var state map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		if e.debug {
			log.Printf("[EXTRACT] state object did not parse: %v", err)
		}
		return nil
	}

	var offers []domain.ExtractedOffer
	for _, value := range state {
		entry, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		name := stringField(entry, "productName")
		if name == "" {
			name = stringField(entry, "name")
		}
		if name == "" {
			continue
		}

		price, ok := firstPrice(entry, "price", "sellingPrice", "Price")
		if !ok {
			price, ok = commercialOfferPrice(entry)
		}
		if ok {
			e.appendOffer(&offers, name, price, methodState, true)
		}
	}
	return offers
}

// extractPairedFields scans embedded scripts for product-name fields with a
// price field inside a bounded window, one pattern shape at a time.
func (e *Extractor) extractPairedFields(content string) []domain.ExtractedOffer {
	for _, p := range pairPatterns {
		var offers []domain.ExtractedOffer
		for _, m := range p.re.FindAllStringSubmatch(content, -1) {
			price, ok := parsePriceText(m[2])
			if !ok {
				continue
			}
			e.appendOffer(&offers, m[1], price, methodPairs, p.minorUnits)
		}
		if len(offers) > 0 {
			return offers
		}
	}
	return nil
}

// extractDataIsland reads the app-framework data island and walks its known
// product collections.
func (e *Extractor) extractDataIsland(content string) []domain.ExtractedOffer {
	m := nextDataRegex.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return nil
	}

	props, _ := data["props"].(map[string]interface{})
	pageProps, _ := props["pageProps"].(map[string]interface{})
	if pageProps == nil {
		return nil
	}

	collection := firstPresent(pageProps, "searchResults", "products", "items")
	if inner, ok := collection.(map[string]interface{}); ok {
		collection = firstPresent(inner, "products", "items")
	}

	var offers []domain.ExtractedOffer
	for _, raw := range asSlice(collection) {
		prod, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := firstString(prod, "name", "title", "productName")
		price, ok := firstPrice(prod, "price", "salePrice", "sellingPrice")
		if !ok {
			if info, isMap := prod["priceInfo"].(map[string]interface{}); isMap {
				price, ok = firstPrice(info, "currentPrice")
			}
		}
		if ok {
			e.appendOffer(&offers, name, price, methodNextData, false)
		}
	}
	return offers
}

// extractMarkup pairs names with nearby peso amounts in plain HTML.
func (e *Extractor) extractMarkup(content string) []domain.ExtractedOffer {
	var offers []domain.ExtractedOffer
	for _, pattern := range markupPatterns {
		for _, m := range pattern.FindAllStringSubmatch(content, -1) {
			price, ok := parsePriceText(m[2])
			if !ok {
				continue
			}
			e.appendOffer(&offers, strings.TrimSpace(m[1]), price, methodMarkup, false)
		}
	}
	return offers
}

// ExtractStorePrice is the last-resort path for direct store pages: sweep the
// store's own price patterns plus the generic ones and keep the lowest
// plausible hit. Used only when the cascade produced nothing.
func (e *Extractor) ExtractStorePrice(content string, store domain.StoreInfo) (float64, bool) {
	patterns := make([]domain.PricePattern, 0, len(store.PricePatterns)+len(domain.GenericPricePatterns))
	patterns = append(patterns, store.PricePatterns...)
	patterns = append(patterns, domain.GenericPricePatterns...)

	lowest := 0.0
	found := false
	for _, p := range patterns {
		for _, m := range p.Re.FindAllStringSubmatch(content, -1) {
			price, ok := parsePriceText(m[1])
			if !ok {
				continue
			}
			if p.MinorUnits && price > minorUnitThreshold {
				price /= 100
			}
			if !e.bounds.Plausible(price) {
				continue
			}
			if !found || price < lowest {
				lowest = price
				found = true
			}
		}
	}
	return lowest, found
}

// appendOffer applies the minor-unit correction and the plausibility bounds
// before keeping a candidate.
func (e *Extractor) appendOffer(offers *[]domain.ExtractedOffer, title string, price float64, method string, minorUnits bool) {
	if title == "" || price == 0 {
		return
	}
	if minorUnits && price > minorUnitThreshold {
		price /= 100
	}
	if !e.bounds.Plausible(price) {
		return
	}
	*offers = append(*offers, domain.ExtractedOffer{Title: title, Price: price, Method: method})
}

// schemaType returns the @type of a schema.org node, taking the first entry
// when the type is a list.
func schemaType(item map[string]interface{}) string {
	switch v := item["@type"].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// offersPrice digs the price out of a schema.org offers value, which may be
// a single offer or a list, quoting price, lowPrice or highPrice.
func offersPrice(v interface{}) float64 {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return 0
		}
		v = list[0]
	}
	offer, ok := v.(map[string]interface{})
	if !ok {
		return 0
	}
	if price, ok := firstPrice(offer, "price", "lowPrice", "highPrice"); ok {
		return price
	}
	return 0
}

// commercialOfferPrice follows the item, seller, commercial-offer nesting
// some platforms use instead of a flat price field.
func commercialOfferPrice(entry map[string]interface{}) (float64, bool) {
	items := asSlice(entry["items"])
	if len(items) == 0 {
		return 0, false
	}
	item, ok := items[0].(map[string]interface{})
	if !ok {
		return 0, false
	}
	sellers := asSlice(item["sellers"])
	if len(sellers) == 0 {
		return 0, false
	}
	seller, ok := sellers[0].(map[string]interface{})
	if !ok {
		return 0, false
	}
	offer, ok := seller["commertialOffer"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	return firstPrice(offer, "Price", "sellingPrice")
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}

func firstPresent(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstPrice returns the first key holding a usable non-zero price value.
func firstPrice(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		if price, ok := priceValue(m[key]); ok && price != 0 {
			return price, true
		}
	}
	return 0, false
}

// priceValue coerces a decoded JSON value into a price. Strings may carry
// currency symbols and thousand separators.
func priceValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		return parsePriceText(val)
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

// parsePriceText parses a price out of text like "$1,234.56" or "1234".
func parsePriceText(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
