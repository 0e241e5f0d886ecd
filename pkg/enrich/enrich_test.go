package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cratewright/cratewright/pkg/cache"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c := New(cache.NewNullCache(), time.Hour)
	c.baseURL = serverURL
	return c
}

func TestClientFetch(t *testing.T) {
	var resp crateResponse
	resp.Crate.Name = "serde"
	resp.Crate.MaxVersion = "1.0.0"
	resp.Crate.Description = "A serialization framework"
	resp.Crate.License = "MIT"
	resp.Crate.Repository = "https://github.com/serde-rs/serde"
	resp.Crate.Downloads = 1000000

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent header")
		}
		switch r.URL.Path {
		case "/crates/serde":
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	info, err := c.Fetch(context.Background(), "serde")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if info.Name != "serde" || info.Version != "1.0.0" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Description != "A serialization framework" {
		t.Errorf("unexpected description: %q", info.Description)
	}
}

func TestClientFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	if _, err := c.Fetch(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent crate")
	}
}

func TestClientFetchUsesCache(t *testing.T) {
	var resp crateResponse
	resp.Crate.Name = "itoa"
	resp.Crate.MaxVersion = "1.0.6"

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	c := New(fc, time.Hour)
	c.baseURL = server.URL

	ctx := context.Background()
	if _, err := c.Fetch(ctx, "itoa"); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if _, err := c.Fetch(ctx, "itoa"); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 live HTTP call, got %d", calls)
	}
}
