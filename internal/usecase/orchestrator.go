package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

// Offer source tags, recorded as source_api on results.
const (
	sourceSearchScrape = "search_scrape"
	sourceStoreScrape  = "store_scrape"
	sourceAmazonSearch = "amazon_search"
)

const methodVendor = "vendor"

// ScrapeConfig bounds the orchestrator's fan-out. TaskTimeout must stay
// below GroupDeadline so individual tasks give up before collection does.
type ScrapeConfig struct {
	Workers       int
	TaskTimeout   time.Duration
	GroupDeadline time.Duration
	MaxSearchURLs int
}

type scrapeTask struct {
	name string
	run  func(ctx context.Context) ([]domain.StoreOffer, error)
}

// Orchestrator fans fetch+extract+score work out over a bounded worker pool
// and collects whatever finishes before the group deadline.
type Orchestrator struct {
	fetcher    domain.PageFetcher
	estimators []domain.PriceEstimator
	scorer     *MatchScorer
	extractor  *Extractor
	bounds     domain.PriceBounds
	config     ScrapeConfig
}

// NewOrchestrator creates an orchestrator, applying defaults for any zero
// config values
func NewOrchestrator(fetcher domain.PageFetcher, estimators []domain.PriceEstimator, scorer *MatchScorer, extractor *Extractor, bounds domain.PriceBounds, config ScrapeConfig) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 25 * time.Second
	}
	if config.GroupDeadline <= 0 {
		config.GroupDeadline = 40 * time.Second
	}
	if config.MaxSearchURLs <= 0 {
		config.MaxSearchURLs = 15
	}
	return &Orchestrator{
		fetcher:    fetcher,
		estimators: estimators,
		scorer:     scorer,
		extractor:  extractor,
		bounds:     bounds,
		config:     config,
	}
}

// CollectOffers runs every scrape and estimation task for the query and
// returns the offers that completed in time. Tasks still running at the
// group deadline are abandoned, not cancelled: they finish into a buffered
// channel nobody reads anymore, so nothing leaks and nothing blocks.
func (o *Orchestrator) CollectOffers(ctx context.Context, query *domain.ProductQuery, candidates []domain.CandidateURL) []domain.StoreOffer {
	tasks := o.buildTasks(query, candidates)
	if len(tasks) == 0 {
		return nil
	}

	jobs := make(chan scrapeTask)
	results := make(chan domain.TaskOutcome, len(tasks))

	workers := o.config.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for task := range jobs {
				results <- o.runTask(ctx, task)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	deadline := time.NewTimer(o.config.GroupDeadline)
	defer deadline.Stop()

	var offers []domain.StoreOffer
	done := 0
	for done < len(tasks) {
		select {
		case outcome := <-results:
			done++
			if outcome.Err != nil {
				log.Printf("[ORCH] %s: %v", outcome.Task, outcome.Err)
				continue
			}
			if len(outcome.Offers) > 0 {
				log.Printf("[ORCH] %s: %d offers", outcome.Task, len(outcome.Offers))
			}
			offers = append(offers, outcome.Offers...)
		case <-deadline.C:
			log.Printf("[ORCH] group deadline reached, abandoning %d of %d tasks", len(tasks)-done, len(tasks))
			return offers
		case <-ctx.Done():
			return offers
		}
	}
	return offers
}

// runTask executes one task under its own timeout and converts any failure
// into data. Nothing a task does can fail the request.
func (o *Orchestrator) runTask(ctx context.Context, task scrapeTask) domain.TaskOutcome {
	taskCtx, cancel := context.WithTimeout(ctx, o.config.TaskTimeout)
	defer cancel()

	offers, err := task.run(taskCtx)
	if err != nil {
		if taskCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return domain.TaskOutcome{Task: task.name, Err: err}
	}
	return domain.TaskOutcome{Task: task.name, Offers: offers}
}

// buildTasks assembles the task list for one query: discovered pages capped
// at MaxSearchURLs, the structured vendor search, direct scrapes of priority
// stores that discovery did not reach (or of the fallback stores when
// discovery came back empty), and one task per estimator.
func (o *Orchestrator) buildTasks(query *domain.ProductQuery, candidates []domain.CandidateURL) []scrapeTask {
	var tasks []scrapeTask

	if len(candidates) > o.config.MaxSearchURLs {
		candidates = candidates[:o.config.MaxSearchURLs]
	}

	var coveredStores []string
	for _, candidate := range candidates {
		c := candidate
		coveredStores = append(coveredStores, strings.ToLower(c.Store))
		tasks = append(tasks, scrapeTask{
			name: "page:" + c.Store,
			run: func(taskCtx context.Context) ([]domain.StoreOffer, error) {
				return o.scrapeCandidate(taskCtx, query, c)
			},
		})
	}

	tasks = append(tasks, scrapeTask{
		name: "amazon",
		run: func(taskCtx context.Context) ([]domain.StoreOffer, error) {
			return o.searchAmazon(taskCtx, query)
		},
	})

	directKeys := domain.PriorityStores
	if len(candidates) == 0 {
		directKeys = domain.DirectFallbackStores
	}
	for _, key := range directKeys {
		store, ok := domain.Stores[key]
		if !ok || storeCovered(coveredStores, store.Name) {
			continue
		}
		tasks = append(tasks, scrapeTask{
			name: "store:" + store.Key,
			run: func(taskCtx context.Context) ([]domain.StoreOffer, error) {
				return o.scrapeStore(taskCtx, query, store)
			},
		})
	}

	for _, est := range o.estimators {
		e := est
		tasks = append(tasks, scrapeTask{
			name: "estimator:" + e.Name(),
			run: func(taskCtx context.Context) ([]domain.StoreOffer, error) {
				return e.EstimatePrices(taskCtx, query), nil
			},
		})
	}
	return tasks
}

// storeCovered reports whether any discovered candidate already belongs to
// the store, matching loosely on the display name.
func storeCovered(coveredStores []string, storeName string) bool {
	needle := strings.ToLower(storeName)
	for _, covered := range coveredStores {
		if strings.Contains(covered, needle) || strings.Contains(needle, covered) {
			return true
		}
	}
	return false
}

// scrapeCandidate fetches one discovered page, extracts its offers and keeps
// the best match for the query.
func (o *Orchestrator) scrapeCandidate(ctx context.Context, query *domain.ProductQuery, candidate domain.CandidateURL) ([]domain.StoreOffer, error) {
	content, err := o.fetcher.FetchPage(ctx, candidate.URL)
	if err != nil {
		return nil, err
	}

	offers := o.extractor.ExtractOffers(content, candidate.Store)
	if len(offers) == 0 {
		return nil, domain.ErrParseFailure
	}

	searchName := query.Name
	if searchName == "" {
		searchName = candidate.Title
	}
	best := o.scorer.SelectBestOffer(searchName, offers, o.bounds, ThresholdSearchPage)
	if best == nil {
		return nil, domain.ErrNoMatch
	}

	return []domain.StoreOffer{{
		Store:      candidate.Store,
		Title:      truncateRunes(best.Title, 100),
		Price:      best.Price,
		URL:        candidate.URL,
		Source:     sourceSearchScrape,
		MatchScore: best.Score,
	}}, nil
}

// scrapeStore fetches a known store's search page directly. When the cascade
// finds structured offers the usual selection applies; when it finds nothing
// the per-store pattern sweep recovers a single price as a last resort.
func (o *Orchestrator) scrapeStore(ctx context.Context, query *domain.ProductQuery, store domain.StoreInfo) ([]domain.StoreOffer, error) {
	q := truncateRunes(query.Name, maxScrapeQueryLimit)
	if q == "" {
		q = query.UPC
	}
	pageURL := store.SearchPageURL(q)

	content, err := o.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	offers := o.extractor.ExtractOffers(content, store.Name)
	if len(offers) > 0 {
		best := o.scorer.SelectBestOffer(query.Name, offers, o.bounds, ThresholdDirectStore)
		if best == nil {
			return nil, domain.ErrNoMatch
		}
		return []domain.StoreOffer{{
			Store:      store.Name,
			Title:      truncateRunes(best.Title, 100),
			Price:      best.Price,
			URL:        pageURL,
			Source:     sourceStoreScrape,
			MatchScore: best.Score,
		}}, nil
	}

	price, ok := o.extractor.ExtractStorePrice(content, store)
	if !ok {
		return nil, domain.ErrParseFailure
	}
	// The price came from a bare pattern, so its title is the query itself
	// and the offer carries the neutral unvalidated score.
	single := []domain.ExtractedOffer{{Title: query.Name, Price: price, Method: methodPattern}}
	if best := o.scorer.SelectBestOffer(query.Name, single, o.bounds, ThresholdLastResort); best == nil {
		return nil, domain.ErrNoMatch
	}
	return []domain.StoreOffer{{
		Store:      store.Name,
		Title:      query.Name,
		Price:      price,
		URL:        pageURL,
		Source:     sourceStoreScrape,
		MatchScore: lastResortScore,
	}}, nil
}

// searchAmazon runs the structured vendor search and scores its rows like a
// page's extracted offers. Zero rows is an ordinary empty result.
func (o *Orchestrator) searchAmazon(ctx context.Context, query *domain.ProductQuery) ([]domain.StoreOffer, error) {
	q := truncateRunes(query.Name, maxScrapeQueryLimit)
	if q == "" {
		q = query.UPC
	}

	rows, err := o.fetcher.SearchAmazon(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	extracted := make([]domain.ExtractedOffer, 0, len(rows))
	for _, row := range rows {
		extracted = append(extracted, domain.ExtractedOffer{Title: row.Title, Price: row.Price, Method: methodVendor})
	}
	best := o.scorer.SelectBestOffer(query.Name, extracted, o.bounds, ThresholdSearchPage)
	if best == nil {
		return nil, domain.ErrNoMatch
	}

	offer := domain.StoreOffer{
		Store:      domain.Stores["amazon"].Name,
		Title:      truncateRunes(best.Title, 100),
		Price:      best.Price,
		Source:     sourceAmazonSearch,
		MatchScore: best.Score,
	}
	for _, row := range rows {
		if row.Title == best.Title && row.Price == best.Price {
			offer.URL = row.URL
			break
		}
	}
	return []domain.StoreOffer{offer}, nil
}
