package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SearchProvider finds candidate retail pages for one search term.
type SearchProvider interface {
	SearchStores(ctx context.Context, term string) ([]CandidateURL, error)
}

// PageFetcher retrieves rendered page content through the scrape provider.
// SearchAmazon uses the provider's structured Amazon source instead of raw
// page rendering.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
	SearchAmazon(ctx context.Context, query string) ([]AmazonResult, error)
}

// PriceEstimator produces model-based price guesses for a product. Adapters
// never fail: every error path inside an adapter resolves to an empty slice.
type PriceEstimator interface {
	Name() string
	EstimatePrices(ctx context.Context, query *ProductQuery) []StoreOffer
}

// VisionProvider identifies a product from a screenshot.
type VisionProvider interface {
	IdentifyProduct(ctx context.Context, imageBase64 string) (*VisionResult, error)
}

// ProductCatalog looks up known products by free text.
type ProductCatalog interface {
	SearchProducts(ctx context.Context, query string) ([]CatalogProduct, error)
}
