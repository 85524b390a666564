package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// PricePattern is one regex that pulls a bare price out of a store's markup.
// MinorUnits marks patterns whose platforms report integer centavos, so large
// captures need the minor-unit correction before use.
type PricePattern struct {
	Re         *regexp.Regexp
	MinorUnits bool
}

// StoreInfo describes one known retailer: how to build its search page URL
// and which patterns recover a price from its markup when structured
// extraction finds nothing.
type StoreInfo struct {
	Key           string
	Name          string
	Domain        string
	SearchURL     string
	PricePatterns []PricePattern
}

// SearchPageURL fills the store's search template with an escaped query.
func (s StoreInfo) SearchPageURL(query string) string {
	return strings.ReplaceAll(s.SearchURL, "{query}", url.QueryEscape(query))
}

// Stores is the registry of known Mexican retailers keyed by canonical key.
var Stores = map[string]StoreInfo{
	"amazon": {
		Key:       "amazon",
		Name:      "Amazon Mexico",
		Domain:    "amazon.com.mx",
		SearchURL: "https://www.amazon.com.mx/s?k={query}",
	},
	"walmart": {
		Key:       "walmart",
		Name:      "Walmart Mexico",
		Domain:    "walmart.com.mx",
		SearchURL: "https://www.walmart.com.mx/search?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*w_iUH7[^"]*"[^>]*>([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"priceInfo"[^}]*"currentPrice":([\d.]+)`)},
			{Re: regexp.MustCompile(`aria-label="[^"]*\$([\d,]+(?:\.\d{2})?)[^"]*precio actual"`)},
			{Re: regexp.MustCompile(`class="[^"]*price-main[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
			{Re: regexp.MustCompile(`<span[^>]*class="[^"]*f2[^"]*"[^>]*>\$([\d,]+)`)},
		},
	},
	"soriana": {
		Key:       "soriana",
		Name:      "Soriana",
		Domain:    "soriana.com",
		SearchURL: "https://www.soriana.com/buscar?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`class="[^"]*vtex-product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"sellingPrice"\s*:\s*([\d]+)`), MinorUnits: true},
			{Re: regexp.MustCompile(`"Price"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*currencyContainer[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
		},
	},
	"chedraui": {
		Key:       "chedraui",
		Name:      "Chedraui",
		Domain:    "chedraui.com.mx",
		SearchURL: "https://www.chedraui.com.mx/search?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"sellingPrice"\s*:\s*([\d]+)`), MinorUnits: true},
			{Re: regexp.MustCompile(`class="[^"]*vtex-product-price[^"]*"[^>]*>\s*([\d,]+)`)},
			{Re: regexp.MustCompile(`"spotPrice"\s*:\s*([\d]+)`), MinorUnits: true},
			{Re: regexp.MustCompile(`class="[^"]*price[^"]*"[^>]*data[^>]*>\s*\$?\s*([\d,]+)`)},
		},
	},
	"heb": {
		Key:       "heb",
		Name:      "HEB",
		Domain:    "heb.com.mx",
		SearchURL: "https://www.heb.com.mx/search?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"price"\s*:\s*\{\s*"value"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`"salePrice"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*price_text[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
		},
	},
	"fahorro": {
		Key:       "fahorro",
		Name:      "Farmacias del Ahorro",
		Domain:    "fahorro.com",
		SearchURL: "https://www.fahorro.com/catalogsearch/result/?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"price"\s*:\s*"([\d,]+(?:\.\d{2})?)"`)},
			{Re: regexp.MustCompile(`data-price-amount="([\d.]+)"`)},
			{Re: regexp.MustCompile(`class="[^"]*product-item-price[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
			{Re: regexp.MustCompile(`itemprop="price"[^>]*content="([\d.]+)"`)},
		},
	},
	"fguadalajara": {
		Key:       "fguadalajara",
		Name:      "Farmacias Guadalajara",
		Domain:    "farmaciasguadalajara.com",
		SearchURL: "https://www.farmaciasguadalajara.com/search?q={query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*precio[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"price"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*price-box[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
		},
	},
	"lacomer": {
		Key:       "lacomer",
		Name:      "La Comer",
		Domain:    "lacomer.com.mx",
		SearchURL: "https://www.lacomer.com.mx/{query}?_q={query}&map=ft",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"sellingPrice"\s*:\s*([\d]+)`), MinorUnits: true},
			{Re: regexp.MustCompile(`"Price"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*vtex[^"]*price[^"]*"[^>]*>\s*([\d,]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*currencyContainer[^"]*"[^>]*>\s*\$?\s*([\d,]+)`)},
		},
	},
	"sams": {
		Key:       "sams",
		Name:      "Sam's Club",
		Domain:    "sams.com.mx",
		SearchURL: "https://www.sams.com.mx/search/{query}",
		PricePatterns: []PricePattern{
			{Re: regexp.MustCompile(`"price"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
			{Re: regexp.MustCompile(`class="[^"]*Price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
			{Re: regexp.MustCompile(`"salePrice"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`"finalPrice"\s*:\s*([\d.]+)`)},
			{Re: regexp.MustCompile(`class="[^"]*sc-[^"]*"[^>]*>\$([\d,]+)`)},
			{Re: regexp.MustCompile(`aria-label="[^"]*\$([\d,]+(?:\.\d{2})?)"`)},
		},
	},
}

// GenericPricePatterns apply to any store after its specific patterns.
var GenericPricePatterns = []PricePattern{
	{Re: regexp.MustCompile(`>\s*\$\s*([\d,]+(?:\.\d{2})?)\s*<`)},
	{Re: regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`)},
	{Re: regexp.MustCompile(`data-price="([\d,]+(?:\.\d{2})?)"`)},
	{Re: regexp.MustCompile(`data-product-price="([\d,]+(?:\.\d{2})?)"`)},
	{Re: regexp.MustCompile(`data-price-value="([\d,]+(?:\.\d{2})?)"`)},
	{Re: regexp.MustCompile(`"price"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
	{Re: regexp.MustCompile(`"salePrice"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
	{Re: regexp.MustCompile(`"offerPrice"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
	{Re: regexp.MustCompile(`"finalPrice"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
	{Re: regexp.MustCompile(`"regularPrice"\s*:\s*"?\$?([\d,]+(?:\.\d{2})?)"?`)},
	{Re: regexp.MustCompile(`class="[^"]*price[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
	{Re: regexp.MustCompile(`class="[^"]*precio[^"]*"[^>]*>\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
	{Re: regexp.MustCompile(`MXN\s*\$?\s*([\d,]+(?:\.\d{2})?)`)},
	{Re: regexp.MustCompile(`([\d,]+(?:\.\d{2})?)\s*MXN`)},
}

// SearchDomains is the retailer allow-list applied to search results. Only
// URLs whose host matches one of these domains become candidates.
var SearchDomains = []string{
	"amazon.com.mx",
	"walmart.com.mx",
	"soriana.com",
	"chedraui.com.mx",
	"heb.com.mx",
	"fahorro.com",
	"farmaciasguadalajara.com",
	"lacomer.com.mx",
	"sams.com.mx",
	"costco.com.mx",
	"superama.com.mx",
	"bodegaaurrera.com.mx",
	"liverpool.com.mx",
	"coppel.com",
	"mercadolibre.com.mx",
	"sanborns.com.mx",
	"farmaciasdelahorro.com.mx",
	"farmaciasanpablo.com.mx",
}

// domainStoreNames maps allow-listed domains to display names, including
// retailers that are discoverable through search but have no direct scrape
// entry in Stores.
var domainStoreNames = map[string]string{
	"amazon.com.mx":             "Amazon Mexico",
	"walmart.com.mx":            "Walmart Mexico",
	"soriana.com":               "Soriana",
	"chedraui.com.mx":           "Chedraui",
	"heb.com.mx":                "HEB",
	"fahorro.com":               "Farmacias del Ahorro",
	"farmaciasdelahorro.com.mx": "Farmacias del Ahorro",
	"farmaciasguadalajara.com":  "Farmacias Guadalajara",
	"lacomer.com.mx":            "La Comer",
	"sams.com.mx":               "Sam's Club",
	"costco.com.mx":             "Costco",
	"superama.com.mx":           "Superama",
	"bodegaaurrera.com.mx":      "Bodega Aurrera",
	"liverpool.com.mx":          "Liverpool",
	"coppel.com":                "Coppel",
	"mercadolibre.com.mx":       "Mercado Libre",
	"sanborns.com.mx":           "Sanborns",
	"farmaciasanpablo.com.mx":   "Farmacias San Pablo",
}

// IdentifyStore resolves a result URL to a store display name, falling back
// to the raw domain when the URL belongs to no known retailer.
func IdentifyStore(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, dom := range SearchDomains {
		if strings.Contains(lower, dom) {
			return domainStoreNames[dom]
		}
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return rawURL
}

// PriorityStores are scraped directly whenever search discovery did not cover
// them, ordered by how often they carry the queried products.
var PriorityStores = []string{"walmart", "chedraui", "heb", "fguadalajara"}

// DirectFallbackStores are scraped when search discovery returns nothing at
// all.
var DirectFallbackStores = []string{"walmart", "soriana", "chedraui", "fahorro", "lacomer", "sams"}

// storeKeywords maps substrings of observed store labels to canonical display
// names. Order matters: the first match wins.
var storeKeywords = []struct {
	keyword   string
	canonical string
}{
	{"amazon", "Amazon Mexico"},
	{"walmart", "Walmart Mexico"},
	{"mercado", "Mercado Libre"},
	{"soriana", "Soriana"},
	{"chedraui", "Chedraui"},
	{"guadalajara", "Farmacias Guadalajara"},
	{"ahorro", "Farmacias del Ahorro"},
	{"benavides", "Farmacias Benavides"},
	{"sam", "Sam's Club"},
	{"costco", "Costco"},
	{"heb", "HEB"},
	{"liverpool", "Liverpool"},
	{"coppel", "Coppel"},
	{"lacomer", "La Comer"},
	{"la comer", "La Comer"},
}

// CanonicalStoreName collapses store label variants onto one canonical name
// so offers for the same retailer merge during consolidation. Labels matching
// no known retailer pass through unchanged.
func CanonicalStoreName(observed string) string {
	lower := strings.ToLower(observed)
	for _, entry := range storeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.canonical
		}
	}
	return observed
}
