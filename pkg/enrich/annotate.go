package enrich

import (
	"context"
	"fmt"

	"github.com/cratewright/cratewright/pkg/cargoid"
	"github.com/cratewright/cratewright/pkg/resolve"
)

// Annotate fetches metadata for every registry-sourced package in g and
// returns a map suitable for [nixgen.Options.Annotations], keyed by
// cargoid.PackageId.String(). Local and git-sourced packages are skipped —
// crates.io has nothing to say about them. A fetch failure for one crate is
// recorded in the returned error slice and does not stop the others.
func Annotate(ctx context.Context, c *Client, g *resolve.Graph) (map[string]string, []error) {
	annotations := make(map[string]string)
	var errs []error

	seen := map[cargoid.PackageId]bool{}
	for _, n := range g.Nodes {
		id := n.Package.ID
		if id.Source.Kind != cargoid.Registry || seen[id] {
			continue
		}
		seen[id] = true

		info, err := c.Fetch(ctx, id.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("enrich %s: %w", id, err))
			continue
		}
		annotations[id.String()] = formatNote(info)
	}
	return annotations, errs
}

func formatNote(info *CrateInfo) string {
	if info.Description == "" {
		return info.License
	}
	if info.License == "" {
		return info.Description
	}
	return fmt.Sprintf("%s (%s)", info.Description, info.License)
}
