package domain

// Candidate URL origins.
const (
	OriginSearch = "search"
	OriginDirect = "direct"
)

// CandidateURL is a retail page discovered for a product, either through the
// search provider or by building a known store's search URL directly.
type CandidateURL struct {
	URL       string
	Title     string
	Store     string
	Origin    string
	PriceHint string
}

// ExtractedOffer is one (title, price) pair pulled out of page content by an
// extraction strategy. Method records which strategy produced it.
type ExtractedOffer struct {
	Title  string
	Price  float64
	Method string
}

// ScoredOffer is an extracted offer scored against the product query.
type ScoredOffer struct {
	Title     string
	Price     float64
	Method    string
	Score     float64
	Multipack bool
}

// StoreOffer is one observed price at one store. Offers flow from scrape and
// estimator tasks into consolidation, which leaves at most one per canonical
// store. Estimated marks model-guessed prices as opposed to scraped ones.
type StoreOffer struct {
	Store      string  `json:"store"`
	Title      string  `json:"title,omitempty"`
	Price      float64 `json:"price"`
	URL        string  `json:"url,omitempty"`
	Source     string  `json:"source_api,omitempty"`
	MatchScore float64 `json:"match_score,omitempty"`
	Estimated  bool    `json:"estimated"`
}

// PriceReport is the final per-store price summary for one product. Stores is
// sorted ascending by price and Lowest points at its first entry, or is nil
// when nothing was found. An empty report is a valid outcome.
type PriceReport struct {
	Product   ProductSummary `json:"product"`
	Stores    []StoreOffer   `json:"stores"`
	Lowest    *StoreOffer    `json:"lowest"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// AmazonResult is one row from the structured Amazon search source.
type AmazonResult struct {
	Title string
	Price float64
	URL   string
}

// TaskOutcome records how a single scrape or estimation task ended. Failed
// tasks carry their error here as data; nothing above the orchestrator ever
// sees it as an error value.
type TaskOutcome struct {
	Task   string
	Offers []StoreOffer
	Err    error
}

// PriceBounds is the plausibility range an extracted price must fall inside
// before it is considered at all.
type PriceBounds struct {
	Min float64
	Max float64
}

// DefaultPriceBounds covers typical consumer goods in MXN.
var DefaultPriceBounds = PriceBounds{Min: 5, Max: 50000}

// Plausible reports whether p falls inside the bounds.
func (b PriceBounds) Plausible(p float64) bool {
	return p >= b.Min && p <= b.Max
}
