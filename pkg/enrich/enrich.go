// Package enrich optionally annotates resolved registry-sourced crates with
// metadata fetched from crates.io. It has no effect on the emitted Nix
// expression's semantics — the caller decides whether to surface enriched
// info as comments alongside the derivation pkg/nixgen already produced.
//
// Grounded on crates.io's response shape as used by the original
// crates.io client (Name/Version/Description/License/Repository/Downloads
// from /api/v1/crates/<name>), re-derived here as a small net/http client
// wired directly to pkg/cache rather than through the shared integrations
// client, since that client's constructor signature had already drifted out
// of sync with its own crates.io wrapper before this transformation.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cratewright/cratewright/pkg/cache"
	"github.com/cratewright/cratewright/pkg/observability"
)

// CrateInfo holds the subset of crates.io metadata worth surfacing in a
// debug annotation. Zero values (empty strings, zero Downloads) mean the
// field was absent from the API response, not that the fetch failed.
type CrateInfo struct {
	Name        string
	Version     string
	Description string
	License     string
	Repository  string
	Downloads   int
}

const (
	baseURL   = "https://crates.io/api/v1"
	userAgent = "cratewright (https://github.com/cratewright/cratewright)"
)

// Client fetches crate metadata from crates.io, caching responses so a
// repeated `cratewright emit --enrich` over an unchanged workspace doesn't
// refetch every dependency.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	baseURL string
}

// New creates a Client backed by c. Pass [cache.NewNullCache] to disable
// caching entirely.
func New(c cache.Cache, ttl time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   c,
		keyer:   cache.NewDefaultKeyer(),
		ttl:     ttl,
		baseURL: baseURL,
	}
}

// Fetch retrieves metadata for a single crate name, using the cache when
// available and falling back to a live HTTP request on a miss.
func (c *Client) Fetch(ctx context.Context, name string) (*CrateInfo, error) {
	key := c.keyer.HTTPKey("crates.io:", name)

	if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "crates.io")
		var info CrateInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return &info, nil
		}
	} else {
		observability.Cache().OnCacheMiss(ctx, "crates.io")
	}

	info, err := c.fetchLive(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
		observability.Cache().OnCacheSet(ctx, "crates.io", len(data))
	}
	return info, nil
}

func (c *Client) fetchLive(ctx context.Context, name string) (*CrateInfo, error) {
	url := fmt.Sprintf("%s/crates/%s", c.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	observability.HTTP().OnRequest(ctx, http.MethodGet, "crates.io", req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, http.MethodGet, "crates.io", req.URL.Path, err)
		return nil, fmt.Errorf("fetching %s from crates.io: %w", name, err)
	}
	defer resp.Body.Close()

	observability.HTTP().OnResponse(ctx, http.MethodGet, "crates.io", req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("crate %s not found on crates.io", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crates.io returned %s for %s", resp.Status, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data crateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding crates.io response for %s: %w", name, err)
	}

	return &CrateInfo{
		Name:        data.Crate.Name,
		Version:     data.Crate.MaxVersion,
		Description: data.Crate.Description,
		License:     data.Crate.License,
		Repository:  data.Crate.Repository,
		Downloads:   data.Crate.Downloads,
	}, nil
}

type crateResponse struct {
	Crate struct {
		Name        string `json:"name"`
		MaxVersion  string `json:"max_version"`
		Description string `json:"description"`
		License     string `json:"license"`
		Repository  string `json:"repository"`
		Downloads   int    `json:"downloads"`
	} `json:"crate"`
}
