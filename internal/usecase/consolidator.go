package usecase

import (
	"sort"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Consolidate merges observed offers down to one per canonical store.
// Scraped offers displace estimated ones regardless of price; within the
// same provenance class the lower price wins. The result is sorted ascending
// by price.
func Consolidate(offers []domain.StoreOffer, bounds domain.PriceBounds) []domain.StoreOffer {
	byStore := make(map[string]domain.StoreOffer)
	for _, offer := range offers {
		if !bounds.Plausible(offer.Price) {
			continue
		}
		offer.Store = domain.CanonicalStoreName(offer.Store)

		existing, ok := byStore[offer.Store]
		switch {
		case !ok:
			byStore[offer.Store] = offer
		case existing.Estimated && !offer.Estimated:
			byStore[offer.Store] = offer
		case existing.Estimated == offer.Estimated && offer.Price < existing.Price:
			byStore[offer.Store] = offer
		}
	}

	consolidated := make([]domain.StoreOffer, 0, len(byStore))
	for _, offer := range byStore {
		consolidated = append(consolidated, offer)
	}
	sort.Slice(consolidated, func(i, j int) bool {
		return consolidated[i].Price < consolidated[j].Price
	})
	return consolidated
}

// BuildReport assembles the final report from consolidated offers. Stores is
// never nil so an empty result serializes as an empty list, and Lowest is
// the first entry or nil.
func BuildReport(query *domain.ProductQuery, stores []domain.StoreOffer) *domain.PriceReport {
	if stores == nil {
		stores = []domain.StoreOffer{}
	}
	report := &domain.PriceReport{
		Product: domain.ProductSummary{
			Name:  query.Name,
			Brand: query.Brand,
			UPC:   query.UPC,
		},
		Stores:    stores,
		Count:     len(stores),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if report.Product.Name == "" {
		report.Product.Name = "Producto"
	}
	if len(stores) > 0 {
		report.Lowest = &stores[0]
	}
	return report
}
