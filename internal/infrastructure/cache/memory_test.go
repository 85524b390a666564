package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		value   interface{}
		ttl     time.Duration
		wantErr bool
	}{
		{
			name:    "store and retrieve a resolved barcode",
			key:     "catalog:upc:cocacola600ml",
			value:   "7501055333073",
			ttl:     24 * time.Hour,
			wantErr: false,
		},
		{
			name: "store and retrieve a struct",
			key:  "catalog:product:cocacola600ml",
			value: map[string]interface{}{
				"upc":  "7501055333073",
				"name": "Coca Cola 600ml",
			},
			ttl:     1 * time.Minute,
			wantErr: false,
		},
		{
			name:    "store with short TTL",
			key:     "catalog:upc:expiring",
			value:   "expires-soon",
			ttl:     1 * time.Millisecond,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cache.Set(ctx, tt.key, tt.value, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			// For the short TTL case, wait until the entry has expired.
			if tt.ttl < 10*time.Millisecond {
				time.Sleep(10 * time.Millisecond)
				_, err := cache.Get(ctx, tt.key)
				if err != domain.ErrCacheMiss {
					t.Errorf("Expected cache miss after expiration, got error = %v", err)
				}
				return
			}

			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}

			if tt.name == "store and retrieve a resolved barcode" {
				if got != tt.value {
					t.Errorf("Get() = %v, want %v", got, tt.value)
				}
			}
		})
	}
}

// Stored strings must come back as strings so callers can type-assert a
// cached barcode without decoding.
func TestMemoryCache_StringRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	err := cache.Set(ctx, "catalog:upc:ensure", "7501055310209", 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "catalog:upc:ensure")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	upc, ok := got.(string)
	if !ok {
		t.Fatalf("Get() returned %T, want string", got)
	}
	if upc != "7501055310209" {
		t.Errorf("Get() = %q, want %q", upc, "7501055310209")
	}
}

// Structs are stored through a JSON round trip, so they read back as generic
// maps the same way a Redis-backed cache would return them.
func TestMemoryCache_StructRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	type product struct {
		UPC  string `json:"upc"`
		Name string `json:"name"`
	}

	err := cache.Set(ctx, "catalog:product:test", product{UPC: "7501055333073", Name: "Coca Cola 600ml"}, 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "catalog:product:test")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("Get() returned %T, want map[string]interface{}", got)
	}
	if m["upc"] != "7501055333073" {
		t.Errorf("upc = %v, want 7501055333073", m["upc"])
	}
	if m["name"] != "Coca Cola 600ml" {
		t.Errorf("name = %v, want Coca Cola 600ml", m["name"])
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "catalog:upc:never-stored")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	key := "catalog:upc:deleted"
	err := cache.Set(ctx, key, "7501055333073", 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, err = cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() before delete error = %v", err)
	}

	err = cache.Delete(ctx, key)
	if err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	_, err = cache.Get(ctx, key)
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	key := "catalog:upc:exists"

	exists, err := cache.Exists(ctx, key)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("Exists() = true, want false for missing key")
	}

	err = cache.Set(ctx, key, "7501055333073", 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	exists, err = cache.Exists(ctx, key)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if !exists {
		t.Errorf("Exists() = false, want true after setting value")
	}

	shortKey := "catalog:upc:short-ttl"
	err = cache.Set(ctx, shortKey, "7501055333073", 1*time.Millisecond)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	exists, err = cache.Exists(ctx, shortKey)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("Exists() = true, want false after expiration")
	}
}

func TestMemoryCache_Size(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 for empty cache", size)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("catalog:upc:item-%d", i)
		err := cache.Set(ctx, key, i, 1*time.Minute)
		if err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d, want 5", size)
	}

	err := cache.Delete(ctx, "catalog:upc:item-0")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if size := cache.Size(); size != 4 {
		t.Errorf("Size() = %d, want 4 after delete", size)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("catalog:upc:item-%d", i)
		err := cache.Set(ctx, key, i, 1*time.Minute)
		if err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if size := cache.Size(); size != 5 {
		t.Fatalf("Size() = %d, want 5 before clear", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("catalog:upc:item-%d", i)
		_, err := cache.Get(ctx, key)
		if err != domain.ErrCacheMiss {
			t.Errorf("Get(%s) after clear error = %v, want %v", key, err, domain.ErrCacheMiss)
		}
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("catalog:upc:worker-%d", id)
			err := cache.Set(ctx, key, id, 1*time.Minute)
			if err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			_, err = cache.Get(ctx, key)
			if err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
