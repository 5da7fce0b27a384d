package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/weft/pkg/wire"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes literal values and tag arguments in node labels.
	// When false, only the part id and shape are shown.
	Detailed bool
}

// maxLiteralLabel truncates long strings in detailed labels.
const maxLiteralLabel = 24

// ToDOT converts a table to Graphviz DOT format. Every part becomes a node
// and every reference an edge, labelled with the key or index it came from.
// Sentinel references render as diamond-shaped leaves.
func ToDOT(t *wire.Table, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph parts {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if t.IsSentinel() {
		fmt.Fprintf(&buf, "  %q [shape=diamond, label=%q];\n", "root", sentinelLabel(t.Root))
		buf.WriteString("}\n")
		return buf.String()
	}

	sentinels := map[wire.Ref]bool{}
	for id, p := range t.Parts {
		label := fmtLabel(wire.Ref(id), p, opts.Detailed)
		attrs := fmtAttrs(p, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeID(wire.Ref(id)), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for id, p := range t.Parts {
		for _, e := range partEdges(p) {
			if e.to.IsSentinel() {
				sentinels[e.to] = true
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", nodeID(wire.Ref(id)), nodeID(e.to), e.label)
		}
	}

	if len(sentinels) > 0 {
		buf.WriteString("\n")
		for r := wire.RefAbsent; r >= wire.RefNegZero; r-- {
			if sentinels[r] {
				fmt.Fprintf(&buf, "  %q [shape=diamond, label=%q];\n", nodeID(r), sentinelLabel(r))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

type edge struct {
	to    wire.Ref
	label string
}

func partEdges(p wire.Part) []edge {
	switch pt := p.(type) {
	case wire.Refs:
		edges := make([]edge, len(pt))
		for i, r := range pt {
			edges[i] = edge{to: r, label: strconv.Itoa(i)}
		}
		return edges
	case wire.Fields:
		edges := make([]edge, len(pt))
		for i, f := range pt {
			edges[i] = edge{to: f.Ref, label: f.Key}
		}
		return edges
	case wire.Tagged:
		var edges []edge
		for i, a := range pt.Args {
			if r, ok := a.(wire.Ref); ok {
				edges = append(edges, edge{to: r, label: strconv.Itoa(i)})
			}
		}
		return edges
	default:
		return nil
	}
}

func nodeID(r wire.Ref) string {
	return strconv.Itoa(int(r))
}

func sentinelLabel(r wire.Ref) string {
	switch r {
	case wire.RefAbsent:
		return "absent"
	case wire.RefHole:
		return "hole"
	case wire.RefNaN:
		return "NaN"
	case wire.RefPosInf:
		return "+Inf"
	case wire.RefNegInf:
		return "-Inf"
	case wire.RefNegZero:
		return "-0"
	default:
		return fmt.Sprintf("sentinel(%d)", r)
	}
}

func fmtLabel(id wire.Ref, p wire.Part, detailed bool) string {
	head := fmt.Sprintf("#%d", id)
	switch pt := p.(type) {
	case wire.Refs:
		return fmt.Sprintf("%s list(%d)", head, len(pt))
	case wire.Fields:
		return fmt.Sprintf("%s record(%d)", head, len(pt))
	case wire.Tagged:
		if !detailed {
			return fmt.Sprintf("%s %s", head, pt.Tag)
		}
		return fmt.Sprintf("%s %s\n%s", head, pt.Tag, fmtArgs(pt.Args))
	default:
		if !detailed {
			return fmt.Sprintf("%s literal", head)
		}
		return fmt.Sprintf("%s %s", head, fmtLiteral(p))
	}
}

func fmtAttrs(p wire.Part, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if _, ok := p.(wire.Tagged); ok {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

func fmtArgs(args []any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if r, ok := a.(wire.Ref); ok {
			parts = append(parts, fmt.Sprintf("->%d", r))
			continue
		}
		parts = append(parts, fmtLiteral(a))
	}
	return strings.Join(parts, ", ")
}

func fmtLiteral(v any) string {
	s := fmt.Sprintf("%v", v)
	if v == nil {
		s = "null"
	}
	if len(s) > maxLiteralLabel {
		s = s[:maxLiteralLabel] + "…"
	}
	return s
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
