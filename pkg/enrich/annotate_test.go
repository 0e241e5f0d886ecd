package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cratewright/cratewright/pkg/cache"
	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/cargoid"
	"github.com/cratewright/cratewright/pkg/resolve"
)

func registryID(name, version string) cargoid.PackageId {
	return cargoid.PackageId{Name: name, Version: version, Source: cargoid.Source{Kind: cargoid.Registry}}
}

func localID(name, version, path string) cargoid.PackageId {
	return cargoid.PackageId{Name: name, Version: version, Source: cargoid.Source{Kind: cargoid.Local, Path: path}}
}

func node(id cargoid.PackageId) *resolve.Node {
	pkg := &cargo.Package{ID: id, Edition: "2021"}
	return &resolve.Node{Key: resolve.NodeKey{ID: id}, Package: pkg}
}

func TestAnnotateSkipsLocalAndDedupesRegistry(t *testing.T) {
	var itoaResp crateResponse
	itoaResp.Crate.Name = "itoa"
	itoaResp.Crate.MaxVersion = "1.0.6"
	itoaResp.Crate.Description = "Fast integer formatting"
	itoaResp.Crate.License = "MIT OR Apache-2.0"

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(itoaResp)
	}))
	defer server.Close()

	c := New(cache.NewNullCache(), time.Hour)
	c.baseURL = server.URL

	root := node(localID("app", "0.1.0", "/ws"))
	itoa := node(registryID("itoa", "1.0.6"))
	itoaAgain := node(registryID("itoa", "1.0.6"))

	g := &resolve.Graph{
		Root: root.Key,
		Nodes: map[resolve.NodeKey]*resolve.Node{
			root.Key:      root,
			itoa.Key:      itoa,
			itoaAgain.Key: itoaAgain,
		},
	}

	annotations, errs := Annotate(context.Background(), c, g)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if calls != 1 {
		t.Errorf("expected 1 HTTP call for deduped registry package, got %d", calls)
	}
	if _, ok := annotations[root.Key.ID.String()]; ok {
		t.Error("local package should not be annotated")
	}
	note, ok := annotations[itoa.Key.ID.String()]
	if !ok {
		t.Fatal("expected annotation for registry package")
	}
	if note != "Fast integer formatting (MIT OR Apache-2.0)" {
		t.Errorf("unexpected note: %q", note)
	}
}

func TestAnnotateCollectsPerCrateErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(cache.NewNullCache(), time.Hour)
	c.baseURL = server.URL

	missing := node(registryID("nonexistent", "0.0.1"))
	g := &resolve.Graph{
		Root:  missing.Key,
		Nodes: map[resolve.NodeKey]*resolve.Node{missing.Key: missing},
	}

	annotations, errs := Annotate(context.Background(), c, g)
	if len(annotations) != 0 {
		t.Errorf("expected no annotations, got %v", annotations)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}
