package main

import (
	"fmt"
	"log"
	"os"

	"github.com/IvndxDB/upc-backend-chatbot/config"
	httpDelivery "github.com/IvndxDB/upc-backend-chatbot/internal/delivery/http"
	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/cache"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/catalog"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/estimator"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/scrape"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/search"
	"github.com/IvndxDB/upc-backend-chatbot/internal/infrastructure/vision"
	"github.com/IvndxDB/upc-backend-chatbot/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Price Checker Backend v2.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s", cfg.Cache.Type)

	debug := cfg.Server.Environment == "development"

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	bounds := domain.PriceBounds{Min: cfg.Pricing.MinPrice, Max: cfg.Pricing.MaxPrice}

	searchClient := search.NewClient(cfg.Scrape.Username, cfg.Scrape.Password, cfg.Scrape.BaseURL)
	scrapeClient := scrape.NewClient(cfg.Scrape.Username, cfg.Scrape.Password, cfg.Scrape.BaseURL)
	visionClient := vision.NewClient(cfg.Vision.APIKey, cfg.Vision.Model)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey)

	// Both estimators are always constructed; a keyless estimator answers
	// every query with no offers instead of failing the pipeline.
	gemini := estimator.NewGeminiEstimator(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, bounds)
	perplexity := estimator.NewPerplexityEstimator(cfg.Perplexity.APIKey, cfg.Perplexity.BaseURL, cfg.Perplexity.Model, bounds)

	if debug {
		searchClient.SetDebug(true)
		scrapeClient.SetDebug(true)
		visionClient.SetDebug(true)
		catalogClient.SetDebug(true)
		gemini.SetDebug(true)
		perplexity.SetDebug(true)
		log.Printf("Provider debug mode enabled")
	}

	scrapeConfigured := cfg.Scrape.Username != "" && cfg.Scrape.Password != ""
	providers := map[string]bool{
		"search":     scrapeConfigured,
		"scrape":     scrapeConfigured,
		"gemini":     cfg.Gemini.APIKey != "",
		"perplexity": cfg.Perplexity.APIKey != "",
		"vision":     cfg.Vision.APIKey != "",
		"catalog":    cfg.Catalog.BaseURL != "",
	}
	for _, name := range []string{"search", "scrape", "gemini", "perplexity", "vision", "catalog"} {
		if providers[name] {
			log.Printf("Provider %s: OK", name)
		} else {
			log.Printf("Provider %s: NOT CONFIGURED", name)
		}
	}

	// Initialize usecase layer
	orchestrator := usecase.NewOrchestrator(
		scrapeClient,
		[]domain.PriceEstimator{gemini, perplexity},
		usecase.NewMatchScorer(),
		usecase.NewExtractor(bounds),
		bounds,
		usecase.ScrapeConfig{
			Workers:       cfg.Pricing.Workers,
			TaskTimeout:   cfg.Pricing.TaskTimeout,
			GroupDeadline: cfg.Pricing.GroupDeadline,
			MaxSearchURLs: cfg.Pricing.MaxSearchURLs,
		},
	)

	priceCheckService := usecase.NewPriceCheckService(
		searchClient,
		visionClient,
		catalogClient,
		memoryCache,
		orchestrator,
		usecase.PriceCheckConfig{
			Bounds:          bounds,
			CatalogCacheTTL: cfg.Cache.TTL,
		},
	)

	log.Printf("Pricing: bounds=%.0f..%.0f MXN, workers=%d, task=%s, deadline=%s",
		bounds.Min, bounds.Max, cfg.Pricing.Workers, cfg.Pricing.TaskTimeout, cfg.Pricing.GroupDeadline)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(priceCheckService, providers)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
