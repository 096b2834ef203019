package cli

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/serial"
)

// convertOpts holds the command-line flags for the convert command.
type convertOpts struct {
	from     string // input format (default: from extension)
	to       string // output format (default: configured format)
	output   string // output file ("" or "-" for stdout)
	pretty   bool   // indented output
	trust    bool   // decode without the safe-mode allow-list
	validate bool   // decode only, write nothing
	strict   bool   // fail on references without an owner
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var opts convertOpts

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document between formats",
		Long: `Convert a serialized document to another format.

The input is decoded in safe mode unless --trust is given: a document naming a
type outside the allow-list is rejected before anything is instantiated. Use
"-" to read from stdin.`,
		Example: `  shapeserial convert diagram.json --to yaml
  shapeserial convert diagram.yaml --to cbor -o diagram.cbor
  cat doc.json | shapeserial convert - --validate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "input format (default: from file extension)")
	cmd.Flags().StringVar(&opts.to, "to", "", "output format (default: configured format)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indented output")
	cmd.Flags().BoolVar(&opts.trust, "trust", false, "decode any registered type (trusted input only)")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "only check that the document decodes")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on references without an owner")

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, path string, opts convertOpts) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)
	prog := logging.NewProgress(logger)

	data, err := readInput(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}

	from := c.formatFor(opts.from, path)
	loadOpts := append(c.cfg().SerialOptions(), serial.Format(from))
	if !opts.trust {
		loadOpts = append(loadOpts, serial.Safe())
	}
	if opts.strict {
		loadOpts = append(loadOpts, serial.StrictReferences())
	}

	v, err := serial.Deserialize(ctx, data, loadOpts...)
	if err != nil {
		return err
	}
	if opts.validate {
		printSuccess("%s is a valid %s document", path, from)
		return nil
	}

	to := c.formatFor(opts.to, opts.output)
	pretty := opts.pretty || c.cfg().Serial.Pretty
	out, err := serial.Serialize(ctx, v, append(c.cfg().SerialOptions(), serial.Format(to), serial.Pretty(pretty))...)
	if err != nil {
		return err
	}
	if err := writeOutput(c.Out, opts.output, out); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write output")
	}
	prog.Done("converted")

	if opts.output != "" && opts.output != "-" {
		printSuccess("Converted %s %s %s", from, iconArrow, to)
		printFile(opts.output)
		printDetail("%s %s %s", formatSize(len(data)), iconArrow, formatSize(len(out)))
	} else if !bytes.HasSuffix(out, []byte("\n")) && to != "cbor" {
		_, _ = c.Out.Write([]byte("\n"))
	}
	return nil
}
