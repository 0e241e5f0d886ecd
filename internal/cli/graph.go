package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/render/depgraph"
	"github.com/cratewright/cratewright/pkg/render/nodelink"
	"github.com/cratewright/cratewright/pkg/resolve"
)

func (c *CLI) graphCommand() *cobra.Command {
	var (
		format            string
		detailed          bool
		out               string
		features          []string
		noDefaultFeatures bool
	)

	cmd := &cobra.Command{
		Use:   "graph [workspace]",
		Short: "Render the resolved dependency graph for debugging (dot, svg, pdf, png)",
		Long:  "graph is a debug aid: it never feeds back into `emit`. It resolves the same feature graph and draws it as a node-link diagram.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			unresolved, _, err := cargo.Load(dir, cargo.Options{}.WithDefaults())
			if err != nil {
				return fmt.Errorf("loading workspace: %w", err)
			}
			resolved, _, err := resolve.Resolve(unresolved, resolve.Options{
				RequestedFeatures: features,
				NoDefaultFeatures: noDefaultFeatures,
			}.WithDefaults())
			if err != nil {
				return fmt.Errorf("resolving features: %w", err)
			}

			g, err := depgraph.Build(resolved)
			if err != nil {
				return fmt.Errorf("building debug graph: %w", err)
			}
			dot := nodelink.ToDOT(g, nodelink.Options{Detailed: detailed})

			data, err := renderFormat(dot, format)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot, svg, pdf, png")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include row and metadata in node labels")
	cmd.Flags().StringSliceVar(&features, "features", nil, "comma-separated features to activate on the workspace root")
	cmd.Flags().BoolVar(&noDefaultFeatures, "no-default-features", false, "disable the workspace root's default feature")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, or - for stdout")

	return cmd
}

func renderFormat(dot, format string) ([]byte, error) {
	switch format {
	case "dot":
		return []byte(dot), nil
	case "svg":
		return nodelink.RenderSVG(dot)
	case "pdf":
		return nodelink.RenderPDF(dot)
	case "png":
		return nodelink.RenderPNG(dot, 2.0)
	default:
		return nil, fmt.Errorf("unknown format %q (want dot, svg, pdf, or png)", format)
	}
}
