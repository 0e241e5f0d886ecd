package resolve

import "strings"

// token classifies one entry of a declared feature's activation-token
// list (spec.md §4.4). Grounded on
// original_source/nbuild-core/src/models/cargo/visitor.rs's
// unpack_features/unpack_optionals_features, but split into an explicit
// classification step so the weak (`foo?/bar`) form can be tracked
// separately instead of being silently dropped (see DESIGN.md's Open
// Question resolution on `foo?/bar`).
type tokenKind int

const (
	tokenLocalFeature tokenKind = iota
	tokenActivateDep            // "dep:foo"
	tokenDepFeature              // "foo/bar"
	tokenWeakDepFeature          // "foo?/bar"
)

type token struct {
	kind tokenKind
	dep  string // populated for tokenActivateDep, tokenDepFeature, tokenWeakDepFeature
	feat string // populated for tokenDepFeature, tokenWeakDepFeature
	raw  string
}

func classifyToken(raw string) token {
	if dep, ok := strings.CutPrefix(raw, "dep:"); ok {
		return token{kind: tokenActivateDep, dep: dep, raw: raw}
	}
	if dep, feat, ok := strings.Cut(raw, "?/"); ok {
		return token{kind: tokenWeakDepFeature, dep: dep, feat: feat, raw: raw}
	}
	if dep, feat, ok := strings.Cut(raw, "/"); ok {
		return token{kind: tokenDepFeature, dep: dep, feat: feat, raw: raw}
	}
	return token{kind: tokenLocalFeature, raw: raw}
}
