// Package refgraph draws the object graph of a raw wire tree with Graphviz.
//
// Every tagged record becomes a node. A record holding another record draws a
// solid edge labeled with the property name. An ID record stored under a
// record's "id" property makes that record the owner of the reference; every
// other occurrence of the same reference draws a dashed edge to the owner.
// References without an owner point at a dashed placeholder node.
//
//	tree, err := serial.Inspect(ctx, data)
//	dot := refgraph.ToDOT(tree, refgraph.Options{Detailed: true})
//	svg, err := refgraph.RenderSVG(ctx, dot)
package refgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Options configures graph generation.
type Options struct {
	// Detailed adds scalar properties to node labels.
	Detailed bool
}

type node struct {
	id    string
	label string
}

type edge struct {
	from, to string
	label    string
	ref      bool
}

type reference struct {
	from  string
	ref   int64
	label string
}

type builder struct {
	opts   Options
	nodes  []node
	edges  []edge
	owners map[int64]string
	refs   []reference
}

// ToDOT converts a raw wire tree, as returned by serial.Inspect, to Graphviz
// DOT source.
func ToDOT(tree any, opts Options) string {
	b := &builder{opts: opts, owners: make(map[int64]string)}
	b.walk(tree, "", "")

	var placeholders []node
	for _, r := range b.refs {
		to, ok := b.owners[r.ref]
		if !ok {
			to = fmt.Sprintf("ref%d", r.ref)
			b.owners[r.ref] = to
			placeholders = append(placeholders, node{id: to, label: fmt.Sprintf("ID #%d", r.ref)})
		}
		b.edges = append(b.edges, edge{from: r.from, to: to, label: r.label, ref: true})
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range b.nodes {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", n.id, n.label)
	}
	for _, n := range placeholders {
		fmt.Fprintf(&buf, "  %q [label=%q, shape=ellipse, style=\"dashed\"];\n", n.id, n.label)
	}

	buf.WriteString("\n")
	for _, e := range b.edges {
		attrs := []string{fmt.Sprintf("label=%q", e.label)}
		if e.ref {
			attrs = append(attrs, "style=dashed", "color=grey40")
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.from, e.to, strings.Join(attrs, ", "))
	}
	buf.WriteString("}\n")
	return buf.String()
}

// walk visits v, which hangs off the record parent under label.
func (b *builder) walk(v any, parent, label string) {
	switch v := v.(type) {
	case *wire.Record:
		if v.Type == wire.TagID {
			b.reference(v, parent, label)
			return
		}
		b.record(v, parent, label)
	case []any:
		for i, item := range v {
			b.walk(item, parent, fmt.Sprintf("%s[%d]", label, i))
		}
	case *wire.Props:
		for _, kv := range v.Order {
			b.walk(kv.Value, parent, join(label, kv.Key))
		}
	case *wire.Map:
		for _, e := range v.Entries {
			b.walk(e.Value, parent, fmt.Sprintf("%s[%v]", label, e.Key))
		}
	}
}

func (b *builder) record(r *wire.Record, parent, label string) {
	id := fmt.Sprintf("n%d", len(b.nodes)+1)
	b.nodes = append(b.nodes, node{id: id})
	idx := len(b.nodes) - 1

	lines := []string{r.Type}
	if r.Props != nil {
		for _, kv := range r.Props.Order {
			if ref, ok := idRef(kv.Value); ok && kv.Key == "id" {
				if _, taken := b.owners[ref]; !taken {
					b.owners[ref] = id
					lines[0] = fmt.Sprintf("%s #%d", r.Type, ref)
					continue
				}
			}
			if b.opts.Detailed && isScalar(kv.Value) {
				lines = append(lines, fmt.Sprintf("%s: %v", kv.Key, kv.Value))
			}
			b.walk(kv.Value, id, kv.Key)
		}
	}
	b.nodes[idx].label = strings.Join(lines, "\n")
	if parent != "" {
		b.edges = append(b.edges, edge{from: parent, to: id, label: label})
	}
}

func (b *builder) reference(r *wire.Record, parent, label string) {
	ref, ok := idRef(r)
	if !ok || parent == "" {
		return
	}
	b.refs = append(b.refs, reference{from: parent, ref: ref, label: label})
}

func idRef(v any) (int64, bool) {
	r, ok := v.(*wire.Record)
	if !ok || r.Type != wire.TagID {
		return 0, false
	}
	raw, ok := r.Get("ref")
	if !ok {
		return 0, false
	}
	ref, err := wire.As[int64](raw)
	return ref, err == nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, int64, uint64, float64, string:
		return true
	}
	return false
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one that
// scales in browsers.
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

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
