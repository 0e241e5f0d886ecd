package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	r := NoopResolverHooks{}
	r.OnResolveStart(ctx, "parent", 12)
	r.OnResolveComplete(ctx, "parent", 12, time.Second, nil)
	r.OnWarning(ctx, "PlatformCfgUnparseable", "targets", "cfg(whatever())")

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "crate-metadata")
	c.OnCacheMiss(ctx, "crate-metadata")
	c.OnCacheSet(ctx, "crate-metadata", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "crates.io", "/api/v1/crates/serde")
	h.OnResponse(ctx, "GET", "crates.io", "/api/v1/crates/serde", 200, time.Second)
	h.OnError(ctx, "GET", "crates.io", "/api/v1/crates/serde", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Resolver().(NoopResolverHooks); !ok {
		t.Error("Resolver() should return NoopResolverHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customResolver := &testResolverHooks{}
	SetResolverHooks(customResolver)
	if Resolver() != customResolver {
		t.Error("SetResolverHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Resolver().(NoopResolverHooks); !ok {
		t.Error("Reset() should restore NoopResolverHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testResolverHooks{}
	SetResolverHooks(custom)

	SetResolverHooks(nil)

	if Resolver() != custom {
		t.Error("SetResolverHooks(nil) should be ignored")
	}

	Reset()
}

type testResolverHooks struct{ NoopResolverHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
