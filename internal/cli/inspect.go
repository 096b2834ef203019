package cli

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/render"
	"github.com/matzehuels/shapeserial/pkg/render/refgraph"
	"github.com/matzehuels/shapeserial/pkg/serial"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	from     string
	graph    string // dot, svg, pdf or png
	output   string
	detailed bool
	scale    float64
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a document without instantiating it",
		Long: `Inspect parses a document into its raw record tree and reports the record
types and references it contains. Nothing is instantiated, so unregistered
types are listed rather than rejected.

With --graph the reference graph is rendered instead: records as boxes,
containment as solid edges and references as dashed edges.`,
		Example: `  shapeserial inspect diagram.json
  shapeserial inspect diagram.yaml --graph svg -o refs.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "input format (default: from file extension)")
	cmd.Flags().StringVar(&opts.graph, "graph", "", "render the reference graph: dot, svg, pdf, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include scalar properties in graph labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2, "png scale factor")

	return cmd
}

func (c *CLI) runInspect(cmd *cobra.Command, path string, opts inspectOpts) error {
	ctx := cmd.Context()

	data, err := readInput(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	from := c.formatFor(opts.from, path)
	base := append(c.cfg().SerialOptions(), serial.Format(from))

	tree, err := serial.Inspect(ctx, data, base...)
	if err != nil {
		return err
	}

	if opts.graph != "" {
		out, err := renderGraph(cmd, tree, opts)
		if err != nil {
			return err
		}
		if err := writeOutput(c.Out, opts.output, out); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write output")
		}
		if opts.output != "" && opts.output != "-" {
			printSuccess("Rendered reference graph")
			printFile(opts.output)
		}
		return nil
	}

	sum := summarize(tree)
	_, safeErr := serial.Deserialize(ctx, data, append(base, serial.Safe())...)
	sum.print(c.Out, path, from, safeErr == nil)
	if safeErr != nil {
		printWarning("not loadable in safe mode: %s", errors.UserMessage(safeErr))
		printNextStep("Load it anyway (trusted input only)", "shapeserial convert --trust "+path)
	}
	return nil
}

var graphOutputs = []string{"dot", "svg", "pdf", "png"}

func renderGraph(cmd *cobra.Command, tree any, opts inspectOpts) ([]byte, error) {
	if !slices.Contains(graphOutputs, opts.graph) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown graph output %q (use dot, svg, pdf or png)", opts.graph)
	}
	dot := refgraph.ToDOT(tree, refgraph.Options{Detailed: opts.detailed})
	if opts.graph == "dot" {
		return []byte(dot), nil
	}
	svg, err := refgraph.RenderSVG(cmd.Context(), dot)
	if err != nil {
		return nil, err
	}
	switch opts.graph {
	case "svg":
		return svg, nil
	case "pdf":
		return render.ToPDF(svg)
	default:
		return render.ToPNG(svg, opts.scale)
	}
}

// =============================================================================
// Summary
// =============================================================================

// summary counts the records of a raw tree by type. ID records are counted
// as references, keyed by their number.
type summary struct {
	types map[string]int
	refs  map[int64]int
	depth int
}

func summarize(tree any) *summary {
	s := &summary{types: make(map[string]int), refs: make(map[int64]int)}
	s.walk(tree, 0)
	return s
}

func (s *summary) walk(v any, depth int) {
	if depth > s.depth {
		s.depth = depth
	}
	switch v := v.(type) {
	case []any:
		for _, item := range v {
			s.walk(item, depth+1)
		}
	case *wire.Props:
		for _, kv := range v.Order {
			s.walk(kv.Value, depth+1)
		}
	case *wire.Map:
		for _, e := range v.Entries {
			s.walk(e.Key, depth+1)
			s.walk(e.Value, depth+1)
		}
	case *wire.Record:
		if v.Type == wire.TagID {
			if ref, ok := v.Get("ref"); ok {
				if n, ok := ref.(int64); ok {
					s.refs[n]++
				}
			}
			return
		}
		s.types[v.Type]++
		s.walk(v.Props, depth+1)
	}
}

func (s *summary) records() int {
	n := 0
	for _, c := range s.types {
		n += c
	}
	return n
}

func (s *summary) print(w io.Writer, path, format string, safe bool) {
	fmt.Fprintln(w, StyleTitle.Render(path))
	printKeyValue(w, "format", format)
	printKeyValue(w, "depth", fmt.Sprint(s.depth))

	tags := make([]string, 0, len(s.types))
	for t := range s.types {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		printKeyValue(w, t, StyleNumber.Render(fmt.Sprint(s.types[t])))
	}

	uses := 0
	for _, n := range s.refs {
		uses += n
	}
	if len(s.refs) > 0 {
		printKeyValue(w, "identities", fmt.Sprintf("%d (%d %s)", len(s.refs), uses, plural(uses, "reference")))
	}
	printStats(w, s.records(), uses, safe)
}
