package usecase

import (
	"regexp"
	"strings"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Length limits applied to product names at each use site. Search engines
// and store search boxes behave worse with long tails.
const (
	maxNameLength       = 80
	maxSearchNameLength = 40
	maxScrapeQueryLimit = 50
)

// searchTermSuffix biases provider results toward Mexican retail pages.
const searchTermSuffix = " precio mexico"

var nonDigitRegex = regexp.MustCompile(`\D+`)

// QueryPlanner normalizes identification signals into a product query and
// plans the provider search terms for it.
type QueryPlanner struct{}

// NewQueryPlanner creates a planner
func NewQueryPlanner() *QueryPlanner {
	return &QueryPlanner{}
}

// BuildQuery normalizes raw identification fields into a ProductQuery.
// Whitespace is collapsed, the name is capped, and the UPC keeps digits only.
func (p *QueryPlanner) BuildQuery(name, upc, brand string) *domain.ProductQuery {
	name = truncateRunes(strings.Join(strings.Fields(name), " "), maxNameLength)
	return &domain.ProductQuery{
		Name:     name,
		UPC:      NormalizeUPC(upc),
		Brand:    strings.TrimSpace(brand),
		Keywords: NormalizeKeywords(name),
	}
}

// SearchTerms returns the provider queries for a product in execution order:
// the barcode term first when a UPC is known, then the name term. Callers
// run later terms only while earlier ones have not produced enough
// candidates.
func (p *QueryPlanner) SearchTerms(query *domain.ProductQuery) []domain.SearchTerm {
	var terms []domain.SearchTerm
	if query.UPC != "" {
		terms = append(terms, domain.SearchTerm{Query: query.UPC + searchTermSuffix, ByUPC: true})
	}
	if query.Name != "" {
		short := truncateRunes(query.Name, maxSearchNameLength)
		terms = append(terms, domain.SearchTerm{Query: short + searchTermSuffix})
	}
	return terms
}

// NormalizeUPC strips everything but digits from a barcode, tolerating
// scanner artifacts like spaces and dashes.
func NormalizeUPC(upc string) string {
	return nonDigitRegex.ReplaceAllString(upc, "")
}

// IsLikelyUPC reports whether a normalized barcode is long enough to be a
// real product code rather than a catalog fragment.
func IsLikelyUPC(upc string) bool {
	return len(upc) >= 10
}

// truncateRunes caps s at n characters without splitting multi-byte runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
