package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Stream event types.
const (
	EventStatus   = "status"
	EventProduct  = "product"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one progress message emitted during a streaming check.
type StreamEvent struct {
	Type string
	Data interface{}
}

// supplementThreshold keeps the name search pass from running once the
// barcode pass already found this many candidates.
const supplementThreshold = 10

const defaultCatalogTTL = 24 * time.Hour

// PriceCheckConfig holds tunables for the price check pipeline
type PriceCheckConfig struct {
	Bounds          domain.PriceBounds
	CatalogCacheTTL time.Duration
}

// PriceCheckService resolves which product the caller means and aggregates
// current prices for it across retailers.
type PriceCheckService struct {
	planner  *QueryPlanner
	search   domain.SearchProvider
	vision   domain.VisionProvider
	catalog  domain.ProductCatalog
	cache    domain.CacheRepository
	orch     *Orchestrator
	bounds   domain.PriceBounds
	cacheTTL time.Duration
}

// NewPriceCheckService creates the service with the given collaborators.
// vision and catalog may be nil; the pipeline simply skips those stages.
func NewPriceCheckService(search domain.SearchProvider, vision domain.VisionProvider, catalog domain.ProductCatalog, cache domain.CacheRepository, orch *Orchestrator, config PriceCheckConfig) *PriceCheckService {
	bounds := config.Bounds
	if bounds.Max <= 0 {
		bounds = domain.DefaultPriceBounds
	}
	cacheTTL := config.CatalogCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCatalogTTL
	}
	return &PriceCheckService{
		planner:  NewQueryPlanner(),
		search:   search,
		vision:   vision,
		catalog:  catalog,
		cache:    cache,
		orch:     orch,
		bounds:   bounds,
		cacheTTL: cacheTTL,
	}
}

// CheckPrice runs the full pipeline. Provider failures degrade the result
// instead of failing it; the only error a caller can see is an invalid
// request.
func (s *PriceCheckService) CheckPrice(ctx context.Context, req *domain.PriceCheckRequest) (*domain.PriceReport, error) {
	return s.run(ctx, req, nil)
}

// CheckPriceStream runs the pipeline emitting progress into events and
// closes the channel when done. The terminal event is always complete or
// error.
func (s *PriceCheckService) CheckPriceStream(ctx context.Context, req *domain.PriceCheckRequest, events chan<- StreamEvent) {
	defer close(events)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PRICES] stream panic: %v", r)
			s.emit(ctx, events, StreamEvent{Type: EventError, Data: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	report, err := s.run(ctx, req, func(ev StreamEvent) { s.emit(ctx, events, ev) })
	if err != nil {
		s.emit(ctx, events, StreamEvent{Type: EventError, Data: err.Error()})
		return
	}
	s.emit(ctx, events, StreamEvent{Type: EventComplete, Data: report})
}

func (s *PriceCheckService) run(ctx context.Context, req *domain.PriceCheckRequest, emit func(StreamEvent)) (*domain.PriceReport, error) {
	notify := func(ev StreamEvent) {
		if emit != nil {
			emit(ev)
		}
	}
	status := func(msg string) {
		notify(StreamEvent{Type: EventStatus, Data: msg})
	}

	if req == nil {
		return nil, fmt.Errorf("%w: empty request", domain.ErrInvalidRequest)
	}
	input := strings.TrimSpace(req.Input)
	if input == "" && req.ScrapedData == nil && req.Screenshot == "" {
		return nil, fmt.Errorf("%w: no identification signal", domain.ErrInvalidRequest)
	}

	status("Iniciando...")

	// Identification signals, weakest to strongest: a screenshot read by the
	// vision model, then page-scraped fields, then the raw user input.
	var name, upc, brand string
	if req.Screenshot != "" && s.vision != nil {
		status("Analizando imagen...")
		vr, err := s.vision.IdentifyProduct(ctx, req.Screenshot)
		if err != nil {
			log.Printf("[PRICES] vision identification failed: %v", err)
		} else if vr != nil {
			name, brand, upc = vr.ProductName, vr.Brand, vr.UPC
		}
	}
	if req.ScrapedData != nil {
		if req.ScrapedData.ProductName != "" {
			name = req.ScrapedData.ProductName
		}
		if req.ScrapedData.UPC != "" {
			upc = req.ScrapedData.UPC
		}
		if req.ScrapedData.Brand != "" {
			brand = req.ScrapedData.Brand
		}
	}
	if name == "" && input != "" {
		name = input
	}

	query := s.planner.BuildQuery(name, upc, brand)

	if query.UPC == "" && query.Name != "" && s.catalog != nil {
		status("Buscando UPC en base de datos...")
		if found := s.lookupUPC(ctx, query.Name, query.Brand); found != "" {
			query.UPC = found
			status("UPC encontrado: " + found)
		}
	}

	notify(StreamEvent{Type: EventProduct, Data: domain.ProductSummary{
		Name:  query.Name,
		Brand: query.Brand,
		UPC:   query.UPC,
	}})

	log.Printf("[PRICES] checking prices for %q (upc=%q)", query.Name, query.UPC)
	status("Scrapeando tiendas en tiempo real (paralelo)...")

	candidates := s.discover(ctx, query)
	status("Buscando en todas las tiendas...")

	offers := s.orch.CollectOffers(ctx, query, candidates)
	status(fmt.Sprintf("Encontrados %d precios...", len(offers)))

	stores := Consolidate(offers, s.bounds)
	log.Printf("[PRICES] consolidated %d offers into %d stores", len(offers), len(stores))

	return BuildReport(query, stores), nil
}

// discover runs the planned search terms in order, skipping later passes
// once earlier ones produced enough candidates. Failures yield an empty
// list; the orchestrator falls back to direct store scrapes for that.
func (s *PriceCheckService) discover(ctx context.Context, query *domain.ProductQuery) []domain.CandidateURL {
	if s.search == nil {
		return nil
	}

	var candidates []domain.CandidateURL
	seen := make(map[string]bool)
	for i, term := range s.planner.SearchTerms(query) {
		if i > 0 && len(candidates) >= supplementThreshold {
			break
		}
		found, err := s.search.SearchStores(ctx, term.Query)
		if err != nil {
			log.Printf("[PRICES] search %q failed: %v", term.Query, err)
			continue
		}
		for _, c := range found {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			candidates = append(candidates, c)
		}
	}
	log.Printf("[PRICES] discovery found %d candidate pages", len(candidates))
	return candidates
}

// lookupUPC resolves a product name to a barcode through the catalog,
// caching successful resolutions. Catalog identity is stable, so the long
// TTL is safe; prices are never cached.
func (s *PriceCheckService) lookupUPC(ctx context.Context, name, brand string) string {
	cacheKey := "catalog:upc:" + normalizeForCacheKey(name+" "+brand)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			if upc, ok := cached.(string); ok && upc != "" {
				log.Printf("[PRICES] catalog cache hit for %q", name)
				return upc
			}
		}
	}

	upc := s.catalogUPC(ctx, name)
	if upc == "" && brand != "" {
		upc = s.catalogUPC(ctx, brand)
	}
	if upc != "" && s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, upc, s.cacheTTL); err != nil {
			log.Printf("[PRICES] catalog cache set failed: %v", err)
		}
	}
	return upc
}

func (s *PriceCheckService) catalogUPC(ctx context.Context, query string) string {
	products, err := s.catalog.SearchProducts(ctx, query)
	if err != nil {
		log.Printf("[PRICES] catalog lookup %q failed: %v", query, err)
		return ""
	}
	for _, p := range products {
		if upc := NormalizeUPC(p.UPC); IsLikelyUPC(upc) {
			return upc
		}
	}
	return ""
}

// emit delivers an event unless the client has gone away.
func (s *PriceCheckService) emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// normalizeForCacheKey lowercases and strips non-alphanumerics so that
// near-identical queries share one cache entry.
func normalizeForCacheKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
