package cargo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
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

// simpleFixture lays out a single-crate project with one normal
// dependency (itoa) and one build dependency (arbitrary), mirroring the
// shape of nbuild-core's "simple" test fixture.
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

[features]
no-panic = ["dep:no-panic"]
`)

	writeFile(t, filepath.Join(dir, "vendor", "arbitrary-1.3.0", "Cargo.toml"), `
[package]
name = "arbitrary"
version = "1.3.0"
edition = "2018"

[features]
derive = ["derive_arbitrary"]
derive_arbitrary = ["dep:derive_arbitrary"]
`)

	return dir
}

func TestLoadSimplePackage(t *testing.T) {
	dir := simpleFixture(t)

	graph, warnings, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}

	if graph.Root.Name != "simple" {
		t.Fatalf("Root = %+v, want simple", graph.Root)
	}
	if len(graph.WorkspaceMembers) != 1 || graph.WorkspaceMembers[0] != graph.Root {
		t.Fatalf("WorkspaceMembers = %+v, want just root", graph.WorkspaceMembers)
	}

	root := graph.Packages[graph.Root]
	if root == nil {
		t.Fatal("root package missing from graph")
	}
	if root.Edition != "2021" {
		t.Errorf("root.Edition = %q, want 2021", root.Edition)
	}
	if len(root.DependencyEdges) != 2 {
		t.Fatalf("DependencyEdges = %+v, want 2", root.DependencyEdges)
	}

	var normal, build *Edge
	for i := range root.DependencyEdges {
		e := &root.DependencyEdges[i]
		switch e.Kind {
		case Normal:
			normal = e
		case Build:
			build = e
		}
	}
	if normal == nil || normal.Target.Name != "itoa" {
		t.Errorf("normal edge = %+v, want itoa", normal)
	}
	if build == nil || build.Target.Name != "arbitrary" {
		t.Errorf("build edge = %+v, want arbitrary", build)
	}

	itoaID := normal.Target
	itoa := graph.Packages[itoaID]
	if itoa == nil {
		t.Fatal("itoa package missing from graph")
	}
	if itoa.Edition != "2018" {
		t.Errorf("itoa.Edition = %q, want 2018", itoa.Edition)
	}
	if got := itoa.DeclaredFeatures["no-panic"]; len(got) != 1 || got[0] != "dep:no-panic" {
		t.Errorf("itoa features = %+v", itoa.DeclaredFeatures)
	}
	if itoa.RegistrySha == "" {
		t.Error("itoa.RegistrySha should be populated from the lockfile checksum")
	}
}

// workspaceFixture lays out a two-member workspace where the parent
// depends on a renamed crate, mirroring nbuild-core's "workspace" fixture.
func workspaceFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[workspace]
members = ["parent", "rename"]
`)

	writeFile(t, filepath.Join(dir, "parent", "Cargo.toml"), `
[package]
name = "parent"
version = "0.1.0"
edition = "2021"

[features]
default = ["one"]
one = ["new_name"]
new_name = ["dep:new_name"]

[dependencies]
new_name = { package = "rename", version = "0.1.0", optional = true, default-features = false, features = ["one"] }
`)

	writeFile(t, filepath.Join(dir, "rename", "Cargo.toml"), `
[package]
name = "rename"
version = "0.1.0"
edition = "2021"
`)

	writeFile(t, filepath.Join(dir, "Cargo.lock"), `
[[package]]
name = "parent"
version = "0.1.0"
dependencies = ["rename"]

[[package]]
name = "rename"
version = "0.1.0"
`)

	return dir
}

func TestLoadWorkspaceRename(t *testing.T) {
	dir := workspaceFixture(t)

	graph, _, err := Load(filepath.Join(dir, "parent"), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(graph.WorkspaceMembers) != 2 {
		t.Fatalf("WorkspaceMembers = %+v, want 2", graph.WorkspaceMembers)
	}

	parent := graph.Packages[graph.Root]
	if parent == nil {
		t.Fatal("parent missing from graph")
	}
	if len(parent.DependencyEdges) != 1 {
		t.Fatalf("DependencyEdges = %+v, want 1", parent.DependencyEdges)
	}

	edge := parent.DependencyEdges[0]
	if edge.Target.Name != "rename" {
		t.Errorf("edge.Target.Name = %q, want rename", edge.Target.Name)
	}
	if edge.Rename != "new_name" {
		t.Errorf("edge.Rename = %q, want new_name", edge.Rename)
	}
	if !edge.Optional {
		t.Error("edge.Optional = false, want true")
	}
	if edge.UsesDefaultFeatures {
		t.Error("edge.UsesDefaultFeatures = true, want false (default-features = false)")
	}
	if len(edge.ExplicitFeatures) != 1 || edge.ExplicitFeatures[0] != "one" {
		t.Errorf("edge.ExplicitFeatures = %+v, want [one]", edge.ExplicitFeatures)
	}
	if edge.Target.Source.Kind != cargoid.Local {
		t.Errorf("edge.Target.Source.Kind = %v, want Local", edge.Target.Source.Kind)
	}
	if edge.Target.Source.Path == "" {
		t.Error("renamed dependency should resolve to the local rename/ member")
	}
}

func TestLoadMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Load(dir, Options{})
	if !cargoerrors.Is(err, cargoerrors.ManifestNotFound) {
		t.Fatalf("err = %v, want ManifestNotFound", err)
	}
}

func TestLoadMissingLockfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "simple"
version = "0.1.0"
`)
	_, _, err := Load(dir, Options{})
	if !cargoerrors.Is(err, cargoerrors.LockfileOutOfSync) {
		t.Fatalf("err = %v, want LockfileOutOfSync", err)
	}
}

func TestBuildScriptPathDefaultAndDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.rs"), "fn main() {}")

	if got := buildScriptPath(dir, nil); got != "build.rs" {
		t.Errorf("buildScriptPath(nil) = %q, want build.rs", got)
	}
	if got := buildScriptPath(dir, false); got != "" {
		t.Errorf("buildScriptPath(false) = %q, want \"\"", got)
	}
	if got := buildScriptPath(dir, "custom/build.rs"); got != "custom/build.rs" {
		t.Errorf("buildScriptPath(custom) = %q, want custom/build.rs", got)
	}

	empty := t.TempDir()
	if got := buildScriptPath(empty, nil); got != "" {
		t.Errorf("buildScriptPath(no file) = %q, want \"\"", got)
	}
}

func TestWithImplicitOptionalFeatures(t *testing.T) {
	edges := []Edge{
		{Target: cargoid.PackageId{Name: "serde"}, Optional: true},
		{Target: cargoid.PackageId{Name: "rename-target"}, Rename: "new_name", Optional: true},
		{Target: cargoid.PackageId{Name: "explicit"}, Optional: true},
		{Target: cargoid.PackageId{Name: "required"}, Optional: false},
	}
	declared := map[string][]string{
		"turbo": {"dep:explicit"},
	}

	got := withImplicitOptionalFeatures(declared, edges)

	if v, ok := got["serde"]; !ok || len(v) != 1 || v[0] != "dep:serde" {
		t.Errorf("serde implicit feature = %+v, want [dep:serde]", v)
	}
	if v, ok := got["new_name"]; !ok || len(v) != 1 || v[0] != "dep:new_name" {
		t.Errorf("new_name implicit feature = %+v, want [dep:new_name]", v)
	}
	if _, ok := got["explicit"]; ok {
		t.Error("explicit should not get a synthesized feature: dep:explicit is already used elsewhere")
	}
	if _, ok := got["required"]; ok {
		t.Error("non-optional dependency should not get an implicit feature")
	}
	if v := got["turbo"]; len(v) != 1 || v[0] != "dep:explicit" {
		t.Errorf("existing declared feature should be preserved, got %+v", v)
	}
}

func TestResolveLockDependencyAmbiguous(t *testing.T) {
	ids := map[string]map[string]cargoid.PackageId{
		"itoa": {
			"1.0.6": {Name: "itoa", Version: "1.0.6"},
			"0.4.8": {Name: "itoa", Version: "0.4.8"},
		},
	}

	if _, ok := resolveLockDependency(ids, "itoa", ""); ok {
		t.Error("ambiguous name+empty-version lookup should fail when more than one version is locked")
	}
	if id, ok := resolveLockDependency(ids, "itoa", "0.4.8"); !ok || id.Version != "0.4.8" {
		t.Errorf("resolveLockDependency(itoa, 0.4.8) = %+v, %v", id, ok)
	}
}

// orderedFixture declares dependencies deliberately out of alphabetical
// order, in both [dependencies] and a [target.'cfg(...)'.dependencies]
// table, so edge order can only come from the manifest's own declaration
// order, never from sorting the names.
func orderedFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "orderly"
version = "0.1.0"
edition = "2021"

[dependencies]
zebra = "1.0.0"
apple = "1.0.0"
mango = "1.0.0"

[target.'cfg(unix)'.dependencies]
walrus = "1.0.0"
narwhal = "1.0.0"
`)

	writeFile(t, filepath.Join(dir, "Cargo.lock"), `
[[package]]
name = "orderly"
version = "0.1.0"
dependencies = ["zebra", "apple", "mango", "walrus", "narwhal"]

[[package]]
name = "zebra"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "apple"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "mango"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "walrus"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "narwhal"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
`)

	return dir
}

func TestDeclaredDependenciesPreserveManifestOrder(t *testing.T) {
	dir := orderedFixture(t)

	graph, _, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	root := graph.Packages[graph.Root]
	if root == nil {
		t.Fatal("root package missing from graph")
	}

	var got []string
	for _, e := range root.DependencyEdges {
		got = append(got, e.Target.Name)
	}
	want := []string{"zebra", "apple", "mango", "walrus", "narwhal"}
	if len(got) != len(want) {
		t.Fatalf("DependencyEdges order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DependencyEdges[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}
