package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Score thresholds by retrieval path. Title quality drops from
// search-discovered pages to direct store search pages to the bare pattern
// extractor, and the bar drops with it.
const (
	ThresholdSearchPage  = 0.30
	ThresholdDirectStore = 0.25
	ThresholdLastResort  = 0.20
)

// lastResortScore is recorded on offers whose title was never validated
// against the query, such as bare pattern-extracted prices.
const lastResortScore = 0.5

// firstKeywordBonus is added when the query's first keyword, usually the
// brand, appears among the found title's keywords.
const firstKeywordBonus = 0.2

// Package-level compiled regex patterns for performance
var (
	keywordRegex = regexp.MustCompile(`[a-záéíóúñü]+`)

	multipackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\s*pack\b`),
		regexp.MustCompile(`\b\d+\s*pzas?\b`),
		regexp.MustCompile(`\b\d+\s*piezas?\b`),
		regexp.MustCompile(`\b\d+\s*frascos?\b`),
		regexp.MustCompile(`\b\d+\s*botellas?\b`),
		regexp.MustCompile(`\b\d+\s*unidades?\b`),
		regexp.MustCompile(`\bpack\s*de\s*\d+\b`),
		regexp.MustCompile(`\bpaquete\s*de\s*\d+\b`),
		regexp.MustCompile(`\bx\s*\d+\b`),
		regexp.MustCompile(`\(\d+\s*pzas?\)`),
		regexp.MustCompile(`\(\d+\s*pack\)`),
		regexp.MustCompile(`\(\d+\s*frascos?\)`),
	}
)

// keywordStopWords are Spanish filler and unit words that carry no product
// identity and are dropped before comparison.
var keywordStopWords = map[string]bool{
	"de": true, "la": true, "el": true, "los": true, "las": true,
	"un": true, "una": true, "con": true, "para": true, "por": true,
	"en": true, "ml": true, "gr": true, "kg": true, "lt": true,
	"pz": true, "pzas": true,
}

// NormalizeKeywords lowercases a product name and returns its meaningful
// keywords in order of first appearance, without duplicates. Stop words and
// tokens shorter than three letters are dropped.
func NormalizeKeywords(name string) []string {
	tokens := keywordRegex.FindAllString(strings.ToLower(name), -1)
	var keywords []string
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) <= 2 || keywordStopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}
	return keywords
}

// MatchScorer validates that listings found at stores are actually the
// queried product.
type MatchScorer struct {
	debug bool
}

// NewMatchScorer creates a scorer with default settings
func NewMatchScorer() *MatchScorer {
	return &MatchScorer{}
}

// SetDebug enables verbose scoring logs
func (s *MatchScorer) SetDebug(debug bool) {
	s.debug = debug
}

// Score returns how well a found listing title matches the searched product
// name, in [0, 1]. The base is Jaccard similarity over normalized keyword
// sets, plus a flat bonus when the query's first keyword appears in the found
// title, capped at 1.0.
//
// The bonus makes the score asymmetric: Score(a, b) and Score(b, a) can
// differ because the bonus tracks only the query side's first keyword.
func (s *MatchScorer) Score(searchName, foundTitle string) float64 {
	if searchName == "" || foundTitle == "" {
		return 0
	}

	searchKeywords := NormalizeKeywords(searchName)
	if len(searchKeywords) == 0 {
		// Nothing to compare against. Neutral score rather than a veto.
		return 0.5
	}
	foundKeywords := NormalizeKeywords(foundTitle)

	foundSet := make(map[string]bool, len(foundKeywords))
	for _, kw := range foundKeywords {
		foundSet[kw] = true
	}

	intersection := 0
	for _, kw := range searchKeywords {
		if foundSet[kw] {
			intersection++
		}
	}
	union := len(searchKeywords) + len(foundSet) - intersection
	if union == 0 {
		return 0
	}

	score := float64(intersection) / float64(union)
	if foundSet[searchKeywords[0]] {
		score = math.Min(1.0, score+firstKeywordBonus)
	}
	return score
}

// IsMultipack reports whether a listing title describes a multi-unit bundle
// rather than a single product.
func IsMultipack(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range multipackPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// SelectBestOffer picks the strongest offer among one page's extracted
// candidates. Offers outside bounds are dropped, single-unit listings are
// preferred over multipacks whenever any exist, and the rest are ordered by
// score descending with the lower price breaking ties. Returns nil when the
// winner does not reach the threshold.
func (s *MatchScorer) SelectBestOffer(searchName string, offers []domain.ExtractedOffer, bounds domain.PriceBounds, threshold float64) *domain.ScoredOffer {
	var scored []domain.ScoredOffer
	for _, o := range offers {
		if !bounds.Plausible(o.Price) {
			continue
		}
		scored = append(scored, domain.ScoredOffer{
			Title:     o.Title,
			Price:     o.Price,
			Method:    o.Method,
			Score:     s.Score(searchName, o.Title),
			Multipack: IsMultipack(o.Title),
		})
	}
	if len(scored) == 0 {
		return nil
	}

	pool := make([]domain.ScoredOffer, 0, len(scored))
	for _, o := range scored {
		if !o.Multipack {
			pool = append(pool, o)
		}
	}
	if len(pool) == 0 {
		pool = scored
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		return pool[i].Price < pool[j].Price
	})

	best := pool[0]
	if best.Score < threshold {
		return nil
	}
	return &best
}
