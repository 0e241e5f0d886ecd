package cargo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
)

// manifest mirrors the subset of Cargo.toml this adapter understands.
type manifest struct {
	// keys holds the document's keys in declaration order, as reported by
	// toml.Decode's MetaData. It is populated by loadManifest, not by the
	// toml decoder itself, and lets declaredDependencies recover the
	// ordering toml.Unmarshal's map-based result would otherwise lose.
	keys []toml.Key

	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Edition string `toml:"edition"`
		Links   string `toml:"links"`
		Build   any    `toml:"build"` // bool (false disables) or string path
	} `toml:"package"`

	Lib struct {
		Path     string `toml:"path"`
		ProcMacro bool  `toml:"proc-macro"`
	} `toml:"lib"`

	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`

	Features map[string][]string `toml:"features"`

	Dependencies      map[string]dependencySpec `toml:"dependencies"`
	BuildDependencies map[string]dependencySpec `toml:"build-dependencies"`
	DevDependencies   map[string]dependencySpec `toml:"dev-dependencies"`

	Target map[string]struct {
		Dependencies      map[string]dependencySpec `toml:"dependencies"`
		BuildDependencies map[string]dependencySpec `toml:"build-dependencies"`
		DevDependencies   map[string]dependencySpec `toml:"dev-dependencies"`
	} `toml:"target"`
}

// dependencySpec captures the two forms a Cargo dependency line can take:
//
//	serde = "1.0"
//	serde = { version = "1.0", features = ["derive"], optional = true }
type dependencySpec struct {
	Version             string
	Path                string
	Package             string // rename source: `package = "real-name"`
	Optional            bool
	DefaultFeatures     bool
	DefaultFeaturesSet  bool // whether default-features was explicit in the manifest
	Features            []string
}

// UnmarshalTOML implements toml.Unmarshaler, handling both the bare
// version-string shorthand and the full inline-table form.
func (d *dependencySpec) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		d.Version = v
		d.DefaultFeatures = true
		return nil
	case map[string]any:
		d.DefaultFeatures = true
		if version, ok := v["version"].(string); ok {
			d.Version = version
		}
		if path, ok := v["path"].(string); ok {
			d.Path = path
		}
		if pkg, ok := v["package"].(string); ok {
			d.Package = pkg
		}
		if optional, ok := v["optional"].(bool); ok {
			d.Optional = optional
		}
		if def, ok := v["default-features"].(bool); ok {
			d.DefaultFeatures = def
			d.DefaultFeaturesSet = true
		}
		if features, ok := v["features"].([]any); ok {
			for _, f := range features {
				if s, ok := f.(string); ok {
					d.Features = append(d.Features, s)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("cargo: unsupported dependency specification of type %T", data)
	}
}

// loadManifest parses the Cargo.toml at dir/Cargo.toml.
func loadManifest(dir string) (*manifest, error) {
	path := filepath.Join(dir, "Cargo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cargoerrors.Wrap(cargoerrors.ManifestNotFound, err, "read %s", path)
	}

	var m manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, cargoerrors.Wrap(cargoerrors.ManifestNotFound, err, "parse %s", path)
	}
	m.keys = meta.Keys()
	return &m, nil
}

// declaredDependencies flattens a manifest's direct and target-specific
// dependency tables into one ordered list, tagging each with its kind and
// platform predicate. Order within each table, and the order target
// predicates themselves first appear in, both follow m.keys — the
// declaration order toml.Decode's MetaData records — per spec.md §4.3/§4.5's
// requirement that edge order mirrors the manifest.
func declaredDependencies(m *manifest) []rawDependency {
	var out []rawDependency

	appendAll := func(specs map[string]dependencySpec, kind EdgeKind, predicate string, path ...string) {
		for _, name := range orderedKeys(m.keys, path) {
			if spec, ok := specs[name]; ok {
				out = append(out, rawDependency{name: name, spec: spec, kind: kind, predicate: predicate})
			}
		}
	}

	appendAll(m.Dependencies, Normal, "", "dependencies")
	appendAll(m.BuildDependencies, Build, "", "build-dependencies")
	appendAll(m.DevDependencies, Dev, "", "dev-dependencies")

	for _, key := range orderedTargetKeys(m.keys) {
		t := m.Target[key]
		predicate := stripCfg(key)
		appendAll(t.Dependencies, Normal, predicate, "target", key, "dependencies")
		appendAll(t.BuildDependencies, Build, predicate, "target", key, "build-dependencies")
		appendAll(t.DevDependencies, Dev, predicate, "target", key, "dev-dependencies")
	}

	return out
}

// orderedKeys returns the immediate child names declared under the dotted
// table path (e.g. []string{"dependencies"} or
// []string{"target", "cfg(unix)", "dependencies"}), in the order they were
// written in the manifest.
func orderedKeys(keys []toml.Key, path []string) []string {
	var names []string
	for _, k := range keys {
		if len(k) != len(path)+1 {
			continue
		}
		if matchesPath(k, path) {
			names = append(names, k[len(path)])
		}
	}
	return names
}

// orderedTargetKeys returns the distinct `[target.'...']` keys in the order
// they first appear in the manifest. A predicate table typically contributes
// three keys (dependencies/build-dependencies/dev-dependencies); only the
// first occurrence fixes its position.
func orderedTargetKeys(keys []toml.Key) []string {
	seen := make(map[string]bool)
	var names []string
	for _, k := range keys {
		if len(k) >= 2 && k[0] == "target" && !seen[k[1]] {
			seen[k[1]] = true
			names = append(names, k[1])
		}
	}
	return names
}

func matchesPath(k toml.Key, path []string) bool {
	for i, p := range path {
		if k[i] != p {
			return false
		}
	}
	return true
}

// rawDependency is a flattened, not-yet-resolved manifest dependency line.
type rawDependency struct {
	name      string
	spec      dependencySpec
	kind      EdgeKind
	predicate string
}

// stripCfg extracts the predicate body from a `cfg(...)` target key,
// returning "" if it is not a cfg(...) expression (e.g. an explicit
// target triple, which this adapter does not evaluate — such
// target-specific deps carry no predicate and are always included).
func stripCfg(key string) string {
	const prefix = "cfg("
	if len(key) > len(prefix)+1 && key[:len(prefix)] == prefix && key[len(key)-1] == ')' {
		return key[len(prefix) : len(key)-1]
	}
	return ""
}
