package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// MockSearchProvider is a mock implementation of domain.SearchProvider
type MockSearchProvider struct {
	mu       sync.Mutex
	results  map[string][]domain.CandidateURL
	defaults []domain.CandidateURL
	err      error
	queries  []string
}

func NewMockSearchProvider() *MockSearchProvider {
	return &MockSearchProvider{results: make(map[string][]domain.CandidateURL)}
}

func (m *MockSearchProvider) SearchStores(ctx context.Context, term string) ([]domain.CandidateURL, error) {
	m.mu.Lock()
	m.queries = append(m.queries, term)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if found, ok := m.results[term]; ok {
		return found, nil
	}
	return m.defaults, nil
}

func (m *MockSearchProvider) seenQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// MockVisionProvider is a mock implementation of domain.VisionProvider
type MockVisionProvider struct {
	result *domain.VisionResult
	err    error
	calls  int
}

func (m *MockVisionProvider) IdentifyProduct(ctx context.Context, imageBase64 string) (*domain.VisionResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// MockProductCatalog is a mock implementation of domain.ProductCatalog
type MockProductCatalog struct {
	mu       sync.Mutex
	products []domain.CatalogProduct
	err      error
	queries  []string
}

func (m *MockProductCatalog) SearchProducts(ctx context.Context, query string) ([]domain.CatalogProduct, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m *MockProductCatalog) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu   sync.Mutex
	data map[string]interface{}
	sets int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string]interface{})}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func newTestService(search domain.SearchProvider, vision domain.VisionProvider, catalog domain.ProductCatalog, cache domain.CacheRepository, orch *Orchestrator) *PriceCheckService {
	return NewPriceCheckService(search, vision, catalog, cache, orch, PriceCheckConfig{Bounds: testBounds})
}

func TestCheckPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates verified and estimated prices end to end", func(t *testing.T) {
		search := NewMockSearchProvider()
		search.defaults = []domain.CandidateURL{
			{URL: "https://www.walmart.com.mx/ip/coca-cola-600ml/1", Store: "Walmart Mexico", Origin: domain.OriginSearch},
			{URL: "https://www.soriana.com/p/coca-cola-600ml", Store: "Soriana", Origin: domain.OriginSearch},
		}
		fetcher := NewMockPageFetcher()
		fetcher.pages["https://www.walmart.com.mx/ip/coca-cola-600ml/1"] = productPage("Coca Cola 600ml", 21.5)
		fetcher.pages["https://www.soriana.com/p/coca-cola-600ml"] = productPage("Coca Cola 600ml", 19.9)
		estimator := &MockEstimator{name: "gemini", offers: []domain.StoreOffer{
			{Store: "Soriana", Price: 18, Source: "gemini", Estimated: true},
		}}

		orch := newTestOrchestrator(fetcher, []domain.PriceEstimator{estimator}, ScrapeConfig{})
		svc := newTestService(search, nil, nil, NewMockCacheRepository(), orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{
			ScrapedData: &domain.ScrapedData{ProductName: "Coca Cola 600ml", UPC: "7501055333073"},
		})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}

		if report.Count != 2 {
			t.Fatalf("count = %d, want 2 (stores: %+v)", report.Count, report.Stores)
		}
		if report.Lowest == nil {
			t.Fatal("lowest is nil")
		}
		if report.Lowest.Store != "Soriana" || report.Lowest.Price != 19.9 {
			t.Errorf("lowest = %s @ %v, want Soriana @ 19.9", report.Lowest.Store, report.Lowest.Price)
		}
		if report.Lowest.Estimated {
			t.Error("verified price should displace the cheaper estimate for the same store")
		}
		if report.Stores[1].Store != "Walmart Mexico" || report.Stores[1].Price != 21.5 {
			t.Errorf("second store = %s @ %v, want Walmart Mexico @ 21.5", report.Stores[1].Store, report.Stores[1].Price)
		}
		if report.Product.Name != "Coca Cola 600ml" || report.Product.UPC != "7501055333073" {
			t.Errorf("product echo = %+v", report.Product)
		}
		if report.Timestamp == "" {
			t.Error("timestamp not set")
		}
	})

	t.Run("rejects requests with no identification signal", func(t *testing.T) {
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(NewMockSearchProvider(), nil, nil, nil, orch)

		if _, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{Input: "   "}); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("err = %v, want ErrInvalidRequest", err)
		}
		if _, err := svc.CheckPrice(ctx, nil); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("nil request err = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("scraped page data overrides vision identification", func(t *testing.T) {
		vision := &MockVisionProvider{result: &domain.VisionResult{
			ProductName: "Ensure Vainilla",
			Brand:       "Abbott",
		}}
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(NewMockSearchProvider(), vision, nil, nil, orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{
			ScrapedData: &domain.ScrapedData{ProductName: "Ensure Advance Vainilla 1.5L"},
			Screenshot:  "data:image/png;base64,iVBORw0KGgo=",
		})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if vision.calls != 1 {
			t.Errorf("vision calls = %d, want 1", vision.calls)
		}
		if report.Product.Name != "Ensure Advance Vainilla 1.5L" {
			t.Errorf("name = %q, want the scraped value", report.Product.Name)
		}
		if report.Product.Brand != "Abbott" {
			t.Errorf("brand = %q, want the vision value kept", report.Product.Brand)
		}
	})

	t.Run("falls back to raw input when vision fails", func(t *testing.T) {
		vision := &MockVisionProvider{err: domain.ErrProviderError}
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(NewMockSearchProvider(), vision, nil, nil, orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{
			Input:      "Coca Cola 600ml",
			Screenshot: "data:image/png;base64,iVBORw0KGgo=",
		})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if report.Product.Name != "Coca Cola 600ml" {
			t.Errorf("name = %q, want the raw input", report.Product.Name)
		}
	})

	t.Run("resolves a missing barcode through the catalog", func(t *testing.T) {
		catalog := &MockProductCatalog{products: []domain.CatalogProduct{
			{SKU: "CC-600", Name: "Coca Cola 600ml", UPC: "N/A"},
			{SKU: "CC-601", Name: "Coca Cola 600ml NR", UPC: "7501055333073"},
		}}
		search := NewMockSearchProvider()
		cache := NewMockCacheRepository()
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(search, nil, catalog, cache, orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{Input: "Coca Cola 600ml"})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if report.Product.UPC != "7501055333073" {
			t.Errorf("upc = %q, want the catalog resolution", report.Product.UPC)
		}
		if cache.sets == 0 {
			t.Error("resolved barcode was not cached")
		}

		var upcQueried bool
		for _, q := range search.seenQueries() {
			if strings.Contains(q, "7501055333073") {
				upcQueried = true
			}
		}
		if !upcQueried {
			t.Error("search never used the resolved barcode")
		}
	})

	t.Run("serves the barcode from cache without hitting the catalog", func(t *testing.T) {
		catalog := &MockProductCatalog{}
		cache := NewMockCacheRepository()
		cache.data["catalog:upc:cocacola600ml"] = "7501055333073"
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(NewMockSearchProvider(), nil, catalog, cache, orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{Input: "Coca Cola 600ml"})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if report.Product.UPC != "7501055333073" {
			t.Errorf("upc = %q, want the cached resolution", report.Product.UPC)
		}
		if catalog.callCount() != 0 {
			t.Errorf("catalog calls = %d, want 0 on a cache hit", catalog.callCount())
		}
	})

	t.Run("skips the name pass when the barcode pass is rich", func(t *testing.T) {
		search := NewMockSearchProvider()
		upcTerm := "7501055333073 precio mexico"
		for i := 0; i < supplementThreshold+2; i++ {
			search.results[upcTerm] = append(search.results[upcTerm], domain.CandidateURL{
				URL:   "https://www.soriana.com/p/" + strings.Repeat("x", i+1),
				Store: "Soriana",
			})
		}
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(search, nil, nil, nil, orch)

		if _, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{
			ScrapedData: &domain.ScrapedData{ProductName: "Coca Cola 600ml", UPC: "7501055333073"},
		}); err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if got := search.seenQueries(); len(got) != 1 {
			t.Errorf("queries = %v, want only the barcode pass", got)
		}
	})

	t.Run("supplements a thin barcode pass and dedupes across passes", func(t *testing.T) {
		shared := domain.CandidateURL{URL: "https://www.soriana.com/p/coca", Store: "Soriana"}
		search := NewMockSearchProvider()
		search.results["7501055333073 precio mexico"] = []domain.CandidateURL{shared}
		search.results["Coca Cola 600ml precio mexico"] = []domain.CandidateURL{
			shared,
			{URL: "https://www.chedraui.com.mx/p/coca", Store: "Chedraui"},
		}
		fetcher := NewMockPageFetcher()
		fetcher.defaultContent = productPage("Coca Cola 600ml", 18.5)
		orch := newTestOrchestrator(fetcher, nil, ScrapeConfig{})
		svc := newTestService(search, nil, nil, nil, orch)

		if _, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{
			ScrapedData: &domain.ScrapedData{ProductName: "Coca Cola 600ml", UPC: "7501055333073"},
		}); err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if got := search.seenQueries(); len(got) != 2 {
			t.Errorf("queries = %v, want both passes", got)
		}

		sharedFetches := 0
		for _, u := range fetcher.fetchedURLs() {
			if u == shared.URL {
				sharedFetches++
			}
		}
		if sharedFetches != 1 {
			t.Errorf("shared URL fetched %d times, want 1", sharedFetches)
		}
	})

	t.Run("search failure still yields a valid empty report", func(t *testing.T) {
		search := NewMockSearchProvider()
		search.err = domain.ErrProviderError
		fetcher := NewMockPageFetcher()
		orch := newTestOrchestrator(fetcher, nil, ScrapeConfig{})
		svc := newTestService(search, nil, nil, nil, orch)

		report, err := svc.CheckPrice(ctx, &domain.PriceCheckRequest{Input: "Coca Cola 600ml"})
		if err != nil {
			t.Fatalf("CheckPrice: %v", err)
		}
		if report.Count != 0 || report.Lowest != nil {
			t.Errorf("report = %+v, want empty success", report)
		}
		if report.Stores == nil {
			t.Error("stores should be an empty list, not null")
		}
	})
}

func TestCheckPriceStream(t *testing.T) {
	t.Run("emits progress and ends with complete", func(t *testing.T) {
		search := NewMockSearchProvider()
		search.defaults = []domain.CandidateURL{
			{URL: "https://www.soriana.com/p/coca", Store: "Soriana"},
		}
		fetcher := NewMockPageFetcher()
		fetcher.pages["https://www.soriana.com/p/coca"] = productPage("Coca Cola 600ml", 19.9)
		vision := &MockVisionProvider{result: &domain.VisionResult{ProductName: "Coca Cola 600ml"}}

		orch := newTestOrchestrator(fetcher, nil, ScrapeConfig{})
		svc := newTestService(search, vision, nil, nil, orch)

		events := make(chan StreamEvent, 16)
		go svc.CheckPriceStream(context.Background(), &domain.PriceCheckRequest{
			Screenshot: "data:image/png;base64,iVBORw0KGgo=",
		}, events)

		var collected []StreamEvent
		for ev := range events {
			collected = append(collected, ev)
		}
		if len(collected) < 4 {
			t.Fatalf("got %d events, want the full progress sequence", len(collected))
		}
		if collected[0].Type != EventStatus || collected[0].Data != "Iniciando..." {
			t.Errorf("first event = %+v, want the opening status", collected[0])
		}

		statuses := make(map[string]bool)
		var sawProduct bool
		for _, ev := range collected {
			switch ev.Type {
			case EventStatus:
				if msg, ok := ev.Data.(string); ok {
					statuses[msg] = true
				}
			case EventProduct:
				sawProduct = true
				summary, ok := ev.Data.(domain.ProductSummary)
				if !ok || summary.Name != "Coca Cola 600ml" {
					t.Errorf("product event = %+v", ev.Data)
				}
			case EventError:
				t.Errorf("unexpected error event: %+v", ev.Data)
			}
		}
		if !statuses["Analizando imagen..."] {
			t.Error("missing the vision status")
		}
		if !statuses["Scrapeando tiendas en tiempo real (paralelo)..."] {
			t.Error("missing the scrape status")
		}
		if !sawProduct {
			t.Error("missing the product event")
		}

		last := collected[len(collected)-1]
		if last.Type != EventComplete {
			t.Fatalf("last event type = %q, want complete", last.Type)
		}
		report, ok := last.Data.(*domain.PriceReport)
		if !ok {
			t.Fatalf("complete payload type = %T", last.Data)
		}
		if report.Count != 1 || report.Lowest == nil || report.Lowest.Price != 19.9 {
			t.Errorf("final report = %+v", report)
		}
	})

	t.Run("ends with an error event on an invalid request", func(t *testing.T) {
		orch := newTestOrchestrator(NewMockPageFetcher(), nil, ScrapeConfig{})
		svc := newTestService(NewMockSearchProvider(), nil, nil, nil, orch)

		events := make(chan StreamEvent, 16)
		go svc.CheckPriceStream(context.Background(), &domain.PriceCheckRequest{}, events)

		var collected []StreamEvent
		for ev := range events {
			collected = append(collected, ev)
		}
		if len(collected) != 1 {
			t.Fatalf("got %d events, want only the terminal error", len(collected))
		}
		if collected[0].Type != EventError {
			t.Errorf("event type = %q, want error", collected[0].Type)
		}
	})
}
