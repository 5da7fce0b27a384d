package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/weft/pkg/cache"
	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/render"
	"github.com/matzehuels/weft/pkg/wire"
)

var graphFormats = []string{"dot", "svg", "png", "pdf"}

// graphOptions collects the flags of the graph command.
type graphOptions struct {
	format   string
	output   string
	detailed bool
	fromJSON bool
	scale    float64
	noCache  bool
}

// graphCommand creates the graph command for visualizing part tables.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph [input]",
		Short: "Visualize a wire line as a part graph",
		Long: `Visualize a wire line as a node-link diagram.

Every part of the table becomes a node and every reference an edge, which
makes shared parts and cycles directly visible. With --json the input is a
plain JSON document that is encoded first.

Rendered svg, png, and pdf artifacts are cached under the user cache
directory. The png and pdf formats require librsvg (rsvg-convert) on the
PATH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(opts.format) {
				return fmt.Errorf("unknown format %q (want %s)", opts.format, strings.Join(graphFormats, ", "))
			}
			data, err := readInput(args)
			if err != nil {
				return err
			}
			return c.runGraph(cmd.Context(), data, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", c.Config.Graph.Format, "output format: dot, svg, png, pdf")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", c.Config.Graph.Detailed, "include literal values in node labels")
	cmd.Flags().BoolVar(&opts.fromJSON, "json", false, "treat input as plain JSON and encode it first")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2.0, "png resolution scale")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the rendered artifact cache")
	return cmd
}

func (c *CLI) runGraph(ctx context.Context, data []byte, opts graphOptions) error {
	table, err := c.graphTable(data, opts.fromJSON)
	if err != nil {
		return err
	}
	c.Logger.Debug("building graph", "parts", len(table.Parts), "format", opts.format)

	dot := render.ToDOT(table, render.Options{Detailed: opts.detailed})
	if opts.format == "dot" {
		return writeOutput(opts.output, []byte(dot))
	}

	spinner := newSpinner(fmt.Sprintf("Rendering %s...", opts.format))
	spinner.Start()
	out, err := c.renderCached(ctx, dot, opts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return err
	}
	spinner.Stop()

	if err := writeOutput(opts.output, out); err != nil {
		return err
	}
	if opts.output != "" {
		printSuccess("Rendered %d parts", len(table.Parts))
		printFile(opts.output)
	}
	return nil
}

// renderCached renders the DOT source, memoizing the result keyed by the
// source and the render options.
func (c *CLI) renderCached(ctx context.Context, dot string, opts graphOptions) ([]byte, error) {
	backend, err := newCache(opts.noCache)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer backend.Close()

	key := cache.ArtifactKey([]byte(dot), opts.format, opts.scale)
	if data, hit, err := backend.Get(ctx, key); err == nil && hit {
		c.Logger.Debug("artifact cache hit", "format", opts.format)
		return data, nil
	}

	out, err := renderFormat(dot, opts.format, opts.scale)
	if err != nil {
		return nil, err
	}
	if err := backend.Set(ctx, key, out, 0); err != nil {
		c.Logger.Debug("artifact cache write failed", "err", err)
	}
	return out, nil
}

func (c *CLI) graphTable(data []byte, jsonInput bool) (*wire.Table, error) {
	if !jsonInput {
		return parseDocument(data)
	}
	v, err := fromJSON(data)
	if err != nil {
		return nil, err
	}
	return codec.Flatten(v, nil)
}

func renderFormat(dot, format string, scale float64) ([]byte, error) {
	svg, err := render.RenderSVG(dot)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	switch format {
	case "svg":
		return svg, nil
	case "png":
		return render.ToPNG(svg, scale)
	case "pdf":
		return render.ToPDF(svg)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func validFormat(format string) bool {
	for _, f := range graphFormats {
		if f == format {
			return true
		}
	}
	return false
}
