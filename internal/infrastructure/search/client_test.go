package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("user", "pass", "https://realtime.example.com")

	assert.NotNil(t, client)
	assert.Equal(t, "user", client.username)
	assert.Equal(t, "pass", client.password)
	assert.Equal(t, "https://realtime.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestSetDebug(t *testing.T) {
	client := NewClient("user", "pass", "https://realtime.example.com")

	assert.False(t, client.debug)
	client.SetDebug(true)
	assert.True(t, client.debug)
	client.SetDebug(false)
	assert.False(t, client.debug)
}

func nestedSearchBody(organic, shopping []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"results": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"results": map[string]interface{}{
						"organic":  organic,
						"shopping": shopping,
					},
				},
			},
		},
	}
}

func TestSearchStores_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		assert.Equal(t, "/v1/queries", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "google_search", payload["source"])
		assert.Equal(t, "7501055333073 precio mexico", payload["query"])
		assert.Equal(t, "com.mx", payload["domain"])
		assert.Equal(t, "es-mx", payload["locale"])
		assert.Equal(t, "Mexico", payload["geo_location"])
		assert.Equal(t, true, payload["parse"])
		assert.Equal(t, float64(2), payload["pages"])

		body := nestedSearchBody(
			[]map[string]interface{}{
				{"url": "https://www.walmart.com.mx/ip/coca-cola/1", "title": "Coca Cola 600ml"},
				{"url": "https://www.example.com/not-a-store", "title": "irrelevant"},
			},
			[]map[string]interface{}{
				{"url": "https://www.soriana.com/p/coca-cola", "title": "Coca Cola", "price": 21.5},
			},
		)
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "7501055333073 precio mexico")

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Walmart Mexico", candidates[0].Store)
	assert.Equal(t, domain.OriginSearch, candidates[0].Origin)
	assert.Equal(t, "Soriana", candidates[1].Store)
	assert.Equal(t, "21.5", candidates[1].PriceHint)
}

func TestSearchStores_FlatOrganicLayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"organic": []map[string]interface{}{
							{"url": "https://www.chedraui.com.mx/p/1", "title": "Coca Cola"},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "coca cola")

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Chedraui", candidates[0].Store)
}

func TestSearchStores_DeduplicatesURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := nestedSearchBody(
			[]map[string]interface{}{
				{"url": "https://www.soriana.com/p/1", "title": "Coca Cola"},
				{"url": "https://www.soriana.com/p/1", "title": "Coca Cola otra vez"},
			},
			[]map[string]interface{}{
				{"url": "https://www.soriana.com/p/1", "title": "Coca Cola", "price": "19.90"},
			},
		)
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "coca cola")

	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestSearchStores_NoCredentials(t *testing.T) {
	client := NewClient("", "", "https://realtime.example.com")

	candidates, err := client.SearchStores(context.Background(), "coca cola")

	assert.Nil(t, candidates)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestSearchStores_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "coca cola")

	assert.Nil(t, candidates)
	assert.ErrorIs(t, err, domain.ErrProviderError)
	assert.Equal(t, 3, attempts)
}

func TestSearchStores_BadRequestNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	_, err := client.SearchStores(context.Background(), "coca cola")

	assert.ErrorIs(t, err, domain.ErrProviderError)
	assert.Equal(t, 1, attempts)
}

func TestSearchStores_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "coca cola")

	assert.Nil(t, candidates)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestSearchStores_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient("user", "pass", server.URL)
	candidates, err := client.SearchStores(context.Background(), "coca cola")

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestHintString(t *testing.T) {
	assert.Equal(t, "", hintString(nil))
	assert.Equal(t, "$21.50", hintString("$21.50"))
	assert.Equal(t, "21.5", hintString(21.5))
	assert.Equal(t, "350", hintString(float64(350)))
}
