package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// simpleFixture lays out a single-crate project with one normal dependency
// (itoa) and one build dependency (arbitrary).
func simpleFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "simple"
version = "0.1.0"
edition = "2021"

[dependencies]
itoa = "1.0.6"

[build-dependencies]
arbitrary = "1.3.0"
`)

	writeFile(t, filepath.Join(dir, "Cargo.lock"), `
[[package]]
name = "simple"
version = "0.1.0"
dependencies = ["itoa", "arbitrary"]

[[package]]
name = "itoa"
version = "1.0.6"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "453ad9f582a441959e5f0d088b02ce04cfe8d51a8eaf077f12ac6d3e94164ca6"

[[package]]
name = "arbitrary"
version = "1.3.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "e2d098ff73c1ca148721f37baad5ea6a465a13f9573aba8641fbbbae8164a54e"
`)

	writeFile(t, filepath.Join(dir, "vendor", "itoa-1.0.6", "Cargo.toml"), `
[package]
name = "itoa"
version = "1.0.6"
edition = "2018"
`)

	writeFile(t, filepath.Join(dir, "vendor", "arbitrary-1.3.0", "Cargo.toml"), `
[package]
name = "arbitrary"
version = "1.3.0"
edition = "2018"
`)

	return dir
}

func TestEmitCommandWritesToStdoutEquivalent(t *testing.T) {
	dir := simpleFixture(t)
	out := filepath.Join(t.TempDir(), "default.nix")

	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"emit", dir, "--out", out})

	if err := root.Execute(); err != nil {
		t.Fatalf("emit command: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading %s: %v", out, err)
	}

	nix := string(data)
	if !strings.Contains(nix, "simple") {
		t.Errorf("emitted Nix missing root package name:\n%s", nix)
	}
	if !strings.Contains(nix, "itoa") {
		t.Errorf("emitted Nix missing itoa dependency:\n%s", nix)
	}
}

// TestEmitCommandReusesResolveCacheAcrossRuns runs emit twice against the
// same unchanged workspace, with the on-disk cache isolated to a temp
// directory. The first run must populate the cache and the second run
// must produce byte-identical output. A third run, made after every cache
// entry has been overwritten with invalid data, must still succeed by
// falling back to a fresh resolve.
func TestEmitCommandReusesResolveCacheAcrossRuns(t *testing.T) {
	dir := simpleFixture(t)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	run := func(out string) string {
		c := New(&bytes.Buffer{}, LogInfo)
		root := c.RootCommand()
		root.SetArgs([]string{"emit", dir, "--out", out})
		if err := root.Execute(); err != nil {
			t.Fatalf("emit command: %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("reading %s: %v", out, err)
		}
		return string(data)
	}

	first := run(filepath.Join(t.TempDir(), "first.nix"))
	dirForCache, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if entries, err := os.ReadDir(dirForCache); err != nil || len(entries) == 0 {
		t.Fatalf("expected the first run to populate the resolve cache under %s, got entries=%v err=%v", dirForCache, entries, err)
	}

	second := run(filepath.Join(t.TempDir(), "second.nix"))
	if first != second {
		t.Fatalf("second run's output differs from the first:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}

	if err := corruptAllCacheEntries(dirForCache); err != nil {
		t.Fatalf("corrupting cache entries: %v", err)
	}

	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"emit", dir, "--out", filepath.Join(t.TempDir(), "third.nix")})
	if err := root.Execute(); err != nil {
		t.Fatalf("emit command with a corrupted resolve cache entry should fall back to a fresh resolve, got error: %v", err)
	}
}

// corruptAllCacheEntries overwrites every cache file with invalid JSON, so
// FileCache.Get discards the entry and reports a miss instead of a clean
// hit.
func corruptAllCacheEntries(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.WriteFile(path, []byte("not json"), 0o644)
	})
}

func TestEmitCommandRejectsUnknownWorkspace(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"emit", filepath.Join(t.TempDir(), "does-not-exist")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing workspace, got nil")
	}
}
