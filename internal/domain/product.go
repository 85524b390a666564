package domain

// ProductQuery identifies the product whose prices are being checked. It is
// built once per request by the query planner and treated as read-only by
// everything downstream.
type ProductQuery struct {
	Name     string   `json:"name"`
	UPC      string   `json:"upc,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Keywords []string `json:"-"`
}

// ProductSummary is the product block echoed back inside a PriceReport.
type ProductSummary struct {
	Name  string `json:"name"`
	Brand string `json:"brand"`
	UPC   string `json:"upc"`
}

// SearchTerm is one planned provider query. Terms are ordered by precision:
// a barcode term first when a UPC is known, then a name term.
type SearchTerm struct {
	Query string
	ByUPC bool
}

// VisionResult holds the best-effort product identification read off a
// screenshot. Any field may be empty.
type VisionResult struct {
	ProductName string `json:"product_name"`
	Brand       string `json:"brand,omitempty"`
	UPC         string `json:"upc,omitempty"`
	Category    string `json:"category,omitempty"`
}

// CatalogProduct is one row returned by the product catalog service.
type CatalogProduct struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	UPC      string `json:"upc"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
}

// ScrapedData carries product fields the extension already pulled from the
// page the user is looking at.
type ScrapedData struct {
	ProductName string `json:"productName"`
	UPC         string `json:"upc"`
	Brand       string `json:"brand"`
}

// PriceCheckRequest is the inbound payload for both price-check endpoints.
// At least one identification signal must be present.
type PriceCheckRequest struct {
	Input       string       `json:"input"`
	ScrapedData *ScrapedData `json:"scrapedData,omitempty"`
	Screenshot  string       `json:"screenshot,omitempty"`
}
