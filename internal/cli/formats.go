package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/schema"
)

// formatsCommand lists the format engines and the registered types.
func (c *CLI) formatsCommand() *cobra.Command {
	var schemas bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List formats and registered types",
		Long: `List the available format engines and every registered type tag. Types
marked "restricted" are never instantiated in safe mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := c.Out
			def := c.cfg().Serial.Format
			fmt.Fprintln(w, StyleTitle.Render("Formats"))
			for _, name := range format.Names() {
				marker := ""
				if name == def {
					marker = StyleDim.Render(" (default)")
				}
				fmt.Fprintln(w, "  "+name+marker)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, StyleTitle.Render("Types"))
			reg := schema.Default()
			for _, t := range reg.Types() {
				status := styleSafe.Render("safe")
				if !reg.Allowed(t.Tag()) {
					status = styleTrusted.Render("restricted")
				}
				fmt.Fprintf(w, "  %-20s %s\n", t.Tag(), status)
				if schemas {
					printSchema(w, t)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schemas, "schemas", false, "show each type's effective schema")
	return cmd
}

// printSchema lists a type's effective properties under its Go type and
// inheritance.
func printSchema(w io.Writer, t *schema.Type) {
	line := "go " + t.GoType().String()
	if p := t.Parent(); p != nil {
		line += ", extends " + p.Tag()
	}
	if ex := t.Excluded(); len(ex) > 0 {
		line += ", excludes " + strings.Join(ex, ", ")
	}
	fmt.Fprintln(w, "      "+StyleDim.Render(line))
	fmt.Fprintln(w, indent(strings.Join(t.EffectiveSchema(), "\n"), "      "))
}
