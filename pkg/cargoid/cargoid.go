// Package cargoid models crate identity: the canonical (name, version,
// source) triple that uniquely names a package within a lockfile, and the
// derivation key each identity maps to in emitted Nix output.
package cargoid

import "strings"

// SourceKind distinguishes where a package's code comes from.
type SourceKind int

const (
	// Local means the package is a path dependency or workspace member;
	// its source lives on disk at Source.Path.
	Local SourceKind = iota
	// Registry means the package is fetched from a crates.io-compatible
	// registry; Source.RegistryURL names it.
	Registry
	// Git means the package is fetched from a git repository pinned to
	// a specific revision.
	Git
)

func (k SourceKind) String() string {
	switch k {
	case Local:
		return "local"
	case Registry:
		return "registry"
	case Git:
		return "git"
	default:
		return "unknown"
	}
}

// Source describes where a package's code comes from. Exactly the fields
// relevant to Kind are meaningful; the rest are zero.
type Source struct {
	Kind SourceKind

	// Path is the absolute path on disk, set when Kind == Local.
	Path string

	// RegistryURL is the registry index URL, set when Kind == Registry.
	// The lockfile adapter stores the text after "registry+" in the
	// lockfile's source string, so crates.io packages carry crates.io's
	// index URL here, not the empty string.
	RegistryURL string

	// GitURL and GitRev identify a git dependency, set when Kind == Git.
	GitURL string
	GitRev string
}

// PackageId is the canonical identity of a package: a (name, version,
// source) triple. Equality is structural and PackageIds are unique within
// a single lockfile — the same name+version may appear with two different
// sources only if Cargo itself would treat them as distinct packages,
// which does not occur for a single resolved lockfile.
type PackageId struct {
	Name    string
	Version string
	Source  Source
}

func (id PackageId) String() string {
	return id.Name + "@" + id.Version
}

// DerivationKey computes the stable Nix attribute name for id:
// sanitize(name) + "_" + sanitize(version), where sanitize replaces every
// non-identifier character with "_". The workspace root is emitted under
// its unsuffixed name by the caller (pkg/nixgen); DerivationKey always
// produces the suffixed form.
func DerivationKey(id PackageId) string {
	return sanitize(id.Name) + "_" + sanitize(id.Version)
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
