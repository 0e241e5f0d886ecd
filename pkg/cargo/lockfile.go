package cargo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
)

// lockfile mirrors Cargo.lock's [[package]] table array.
type lockfile struct {
	Package []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// loadLockfile parses the Cargo.lock at dir/Cargo.lock.
func loadLockfile(dir string) (*lockfile, error) {
	path := filepath.Join(dir, "Cargo.lock")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cargoerrors.Wrap(cargoerrors.LockfileOutOfSync, err, "read %s", path)
	}

	var lf lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, cargoerrors.Wrap(cargoerrors.LockfileOutOfSync, err, "parse %s", path)
	}
	return &lf, nil
}

// parseLockSource turns a Cargo.lock `source` string into a cargoid.Source. An
// empty source string means the package is a path dependency or
// workspace member; its Local path is filled in separately once the
// workspace layout is known.
func parseLockSource(raw string) cargoid.Source {
	switch {
	case raw == "":
		return cargoid.Source{Kind: cargoid.Local}
	case strings.HasPrefix(raw, "registry+"):
		return cargoid.Source{Kind: cargoid.Registry, RegistryURL: strings.TrimPrefix(raw, "registry+")}
	case strings.HasPrefix(raw, "git+"):
		rest := strings.TrimPrefix(raw, "git+")
		url, rev := rest, ""
		if i := strings.Index(rest, "#"); i >= 0 {
			url, rev = rest[:i], rest[i+1:]
		}
		return cargoid.Source{Kind: cargoid.Git, GitURL: url, GitRev: rev}
	default:
		return cargoid.Source{Kind: cargoid.Registry, RegistryURL: raw}
	}
}

// lockDependencyName parses one entry of a lock package's `dependencies`
// list, which Cargo renders as "name", "name version", or
// "name version (source)" — the longer forms disambiguate when more than
// one version of the same crate is locked.
func lockDependencyName(entry string) (name, version string) {
	fields := strings.Fields(entry)
	switch len(fields) {
	case 1:
		return fields[0], ""
	default:
		version = fields[1]
		if i := strings.Index(version, "("); i >= 0 {
			version = version[:i]
		}
		return fields[0], strings.TrimSpace(version)
	}
}
