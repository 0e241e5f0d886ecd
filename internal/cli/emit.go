package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cratewright/cratewright/pkg/cache"
	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/enrich"
	"github.com/cratewright/cratewright/pkg/nixgen"
	"github.com/cratewright/cratewright/pkg/observability"
	"github.com/cratewright/cratewright/pkg/resolve"
)

func (c *CLI) emitCommand() *cobra.Command {
	var (
		features          []string
		noDefaultFeatures bool
		vendorDir         string
		crateBin          bool
		enrichFlag        bool
		noCache           bool
		cacheTTL          time.Duration
		out               string
	)

	cmd := &cobra.Command{
		Use:   "emit [workspace]",
		Short: "Resolve a Cargo workspace's features and emit a Nix build expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			ctx := cmd.Context()

			unresolved, loadWarnings, err := cargo.Load(dir, cargo.Options{VendorDir: vendorDir}.WithDefaults())
			if err != nil {
				return fmt.Errorf("loading workspace: %w", err)
			}
			for _, w := range loadWarnings {
				c.Logger.Warn(w.Detail, "code", w.Code, "package", w.Package)
			}

			resolveOpts := resolve.Options{
				RequestedFeatures: features,
				NoDefaultFeatures: noDefaultFeatures,
			}.WithDefaults()

			resolved, resolveWarnings, err := c.resolveWithCache(ctx, unresolved, resolveOpts, noCache, cacheTTL)
			if err != nil {
				return fmt.Errorf("resolving features: %w", err)
			}
			for _, w := range resolveWarnings {
				c.Logger.Warn(w.Detail, "code", w.Code, "package", w.Package)
				observability.Resolver().OnWarning(ctx, w.Code, w.Package.String(), w.Detail)
			}

			emitOpts := nixgen.Options{EmitCrateBin: crateBin}
			if enrichFlag {
				annotations, errs := c.enrichAnnotations(ctx, resolved, noCache, cacheTTL)
				for _, e := range errs {
					c.Logger.Warn("enrich", "error", e)
				}
				emitOpts.Annotations = annotations
			}

			w := os.Stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("opening %s: %w", out, err)
				}
				defer f.Close()
				return nixgen.Emit(resolved, f, emitOpts)
			}
			return nixgen.Emit(resolved, w, emitOpts)
		},
	}

	cmd.Flags().StringSliceVar(&features, "features", nil, "comma-separated features to activate on the workspace root")
	cmd.Flags().BoolVar(&noDefaultFeatures, "no-default-features", false, "disable the workspace root's default feature")
	cmd.Flags().StringVar(&vendorDir, "vendor-dir", "vendor", "directory holding a cargo-vendor layout for non-workspace dependency manifests")
	cmd.Flags().BoolVar(&crateBin, "crate-bin", false, "emit crateBin = []; on every non-root derivation")
	cmd.Flags().BoolVar(&enrichFlag, "enrich", false, "annotate registry-sourced derivations with a crates.io description/license comment")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the on-disk cache for resolved graphs and crates.io lookups")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 24*time.Hour, "TTL for cached crates.io lookups")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, or - for stdout")

	return cmd
}

// resolveWithCache runs the fixed-point resolver, or returns a cached
// result keyed off the workspace's own content — not file mtimes or
// paths — so a cache hit is correct even if the workspace was moved or
// checked out fresh, matching matzehuels-stacktower's
// pkg/pipeline.Runner.ParseWithCacheInfo: compute the key, check the
// cache, and on a miss do the real work before populating it. Warnings
// are never cached; they're cheap to recompute and a stale warning list
// would be actively misleading.
func (c *CLI) resolveWithCache(ctx context.Context, unresolved *cargo.Graph, opts resolve.Options, noCache bool, ttl time.Duration) (*resolve.Graph, []resolve.Warning, error) {
	backend, err := newCache(noCache)
	if err != nil {
		return nil, nil, err
	}
	defer backend.Close()

	workspaceHash := cargo.ContentHash(unresolved)
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "ws:"+workspaceHash+":")

	t := opts.Target
	key := keyer.ResolveKey(workspaceHash, cache.ResolveKeyOpts{
		RequestedFeatures: opts.RequestedFeatures,
		NoDefaultFeatures: opts.NoDefaultFeatures,
		Target:            fmt.Sprintf("%s-%s-%s-%s", t.Arch, t.OS, t.Family, t.Env),
	})

	if data, hit, err := backend.Get(ctx, key); err == nil && hit {
		resolved, err := resolve.UnmarshalGraph(data, unresolved)
		if err == nil {
			c.Logger.Debug("resolve cache hit", "key", key)
			return resolved, nil, nil
		}
		c.Logger.Warn("discarding unreadable cached resolve graph", "error", err)
	}

	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, unresolved.Root.Name, len(unresolved.Packages))
	resolved, warnings, err := resolve.Resolve(unresolved, opts)
	observability.Resolver().OnResolveComplete(ctx, unresolved.Root.Name, len(resolved.Nodes), time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	if data, err := resolve.MarshalGraph(resolved); err == nil {
		if err := backend.Set(ctx, key, data, ttl); err != nil {
			c.Logger.Warn("caching resolve graph", "error", err)
		}
	} else {
		c.Logger.Warn("marshaling resolve graph for cache", "error", err)
	}

	return resolved, warnings, nil
}

func (c *CLI) enrichAnnotations(ctx context.Context, g *resolve.Graph, noCache bool, ttl time.Duration) (map[string]string, []error) {
	backend, err := newCache(noCache)
	if err != nil {
		return nil, []error{err}
	}
	defer backend.Close()

	client := enrich.New(backend, ttl)
	return enrich.Annotate(ctx, client, g)
}
