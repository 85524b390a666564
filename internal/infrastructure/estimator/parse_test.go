package estimator

import (
	"testing"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = domain.PriceBounds{Min: 5, Max: 50000}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			"bare array",
			`[{"store":"Walmart","price":25.9}]`,
			`[{"store":"Walmart","price":25.9}]`,
		},
		{
			"array inside prose",
			`Claro, aqui tienes: [{"store":"Soriana","price":19.9}] Espero que ayude.`,
			`[{"store":"Soriana","price":19.9}]`,
		},
		{
			"nested arrays",
			`[[1,2],[3]]`,
			`[[1,2],[3]]`,
		},
		{
			"bracket inside a string value",
			`[{"store":"Tienda [MX]","price":10}]`,
			`[{"store":"Tienda [MX]","price":10}]`,
		},
		{
			"escaped quote inside a string value",
			`[{"store":"La \"Comer\"","price":12}]`,
			`[{"store":"La \"Comer\"","price":12}]`,
		},
		{
			"unterminated array",
			`[{"store":"Walmart"`,
			"",
		},
		{
			"no array at all",
			"No encontre precios para ese producto.",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONArray(tt.text))
		})
	}
}

func TestParseStorePrices(t *testing.T) {
	t.Run("parses numeric and string prices", func(t *testing.T) {
		text := `[{"store":"Walmart Mexico","price":25.9,"url":"https://w.mx/p/1"},{"store":"Soriana","price":"$1,234.50"}]`

		offers := ParseStorePrices(text, "perplexity", false, testBounds)

		require.Len(t, offers, 2)
		assert.Equal(t, "Walmart Mexico", offers[0].Store)
		assert.Equal(t, 25.9, offers[0].Price)
		assert.Equal(t, "https://w.mx/p/1", offers[0].URL)
		assert.Equal(t, "perplexity", offers[0].Source)
		assert.False(t, offers[0].Estimated)
		assert.Equal(t, 1234.5, offers[1].Price)
	})

	t.Run("drops rows without a store or with implausible prices", func(t *testing.T) {
		text := `[{"store":"","price":20},{"store":"Walmart","price":2},{"store":"Soriana","price":999999},{"store":"HEB","price":30}]`

		offers := ParseStorePrices(text, "gemini", true, testBounds)

		require.Len(t, offers, 1)
		assert.Equal(t, "HEB", offers[0].Store)
		assert.True(t, offers[0].Estimated)
	})

	t.Run("returns nothing for malformed replies", func(t *testing.T) {
		assert.Nil(t, ParseStorePrices(`[{"store": broken`, "gemini", true, testBounds))
		assert.Nil(t, ParseStorePrices("sin json", "gemini", true, testBounds))
	})
}

func TestFallbackStorePrices(t *testing.T) {
	t.Run("sweeps store and price pairs out of prose", func(t *testing.T) {
		text := "Encontre estos precios:\n" +
			"Amazon Mexico: $25.90 MXN\n" +
			"Walmart $123.45\n" +
			"Mercado Libre: 349 pesos\n" +
			"Farmacias del Ahorro: $87.50"

		offers := FallbackStorePrices(text, "gemini", true, testBounds)

		byStore := make(map[string]float64)
		for _, o := range offers {
			byStore[o.Store] = o.Price
		}
		assert.Equal(t, 25.9, byStore["Amazon Mexico"])
		assert.Equal(t, 123.45, byStore["Walmart"])
		assert.Equal(t, float64(349), byStore["Mercado Libre"])
		assert.Equal(t, 87.5, byStore["Farmacias del Ahorro"])
	})

	t.Run("applies the plausibility bounds", func(t *testing.T) {
		offers := FallbackStorePrices("Walmart: $2.00 y Soriana: $99999999", "gemini", true, testBounds)
		assert.Empty(t, offers)
	})
}

func TestPricesFromReply(t *testing.T) {
	t.Run("prefers the JSON array", func(t *testing.T) {
		text := `[{"store":"Soriana","price":19.9}] y ademas Walmart: $25.00`

		offers := PricesFromReply(text, "gemini", true, testBounds)

		require.Len(t, offers, 1)
		assert.Equal(t, "Soriana", offers[0].Store)
	})

	t.Run("honors an explicit empty array", func(t *testing.T) {
		offers := PricesFromReply("No encontre nada: []", "gemini", true, testBounds)
		assert.Nil(t, offers)
	})

	t.Run("falls back to the prose sweep", func(t *testing.T) {
		offers := PricesFromReply("El precio en Walmart Mexico: $45.00 aproximadamente", "gemini", true, testBounds)

		require.Len(t, offers, 1)
		assert.Equal(t, float64(45), offers[0].Price)
	})
}

func TestRowPrice(t *testing.T) {
	assert.Equal(t, 25.9, rowPrice(25.9))
	assert.Equal(t, 1234.5, rowPrice("$1,234.50"))
	assert.Equal(t, 19.9, rowPrice(" 19.90 "))
	assert.Equal(t, float64(0), rowPrice("gratis"))
	assert.Equal(t, float64(0), rowPrice(nil))
}

func TestPromptProductLines(t *testing.T) {
	t.Run("barcode leads when present", func(t *testing.T) {
		lines := promptProductLines(&domain.ProductQuery{
			Name:  "Coca Cola 600ml",
			UPC:   "7501055333073",
			Brand: "Coca Cola",
		})

		assert.Contains(t, lines, "Busqueda: 7501055333073\n")
		assert.Contains(t, lines, "UPC: 7501055333073\n")
		assert.Contains(t, lines, "Producto: Coca Cola 600ml\n")
		assert.Contains(t, lines, "Marca: Coca Cola\n")
	})

	t.Run("long names are truncated in the term line", func(t *testing.T) {
		long := ""
		for i := 0; i < 10; i++ {
			long += "nombrelargo"
		}
		lines := promptProductLines(&domain.ProductQuery{Name: long})

		assert.Contains(t, lines, "Busqueda: "+long[:60]+"\n")
		assert.Contains(t, lines, "Producto: "+long+"\n")
	})
}
