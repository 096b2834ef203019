package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/serial"
	"github.com/matzehuels/shapeserial/pkg/store"
)

// storeCommand creates the store command with its subcommands.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored documents",
		Long: `Put, fetch and delete documents in the configured store (file, redis,
mongo or none). Documents are validated in safe mode before they are stored.`,
	}

	cmd.AddCommand(c.storePutCommand())
	cmd.AddCommand(c.storeGetCommand())
	cmd.AddCommand(c.storeDeleteCommand())
	cmd.AddCommand(c.storeListCommand())

	return cmd
}

func (c *CLI) storePutCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Validate and store a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, path := args[0], args[1]
			if err := errors.ValidateKey(key); err != nil {
				return err
			}
			data, err := readInput(path)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
			}
			f := c.formatFor(from, path)
			opts := append(c.cfg().SerialOptions(), serial.Format(f), serial.Safe())
			if _, err := serial.Deserialize(cmd.Context(), data, opts...); err != nil {
				return err
			}

			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			doc := &store.Document{Key: key, Format: f, Payload: data, UpdatedAt: time.Now().UTC()}
			if err := st.Put(cmd.Context(), doc); err != nil {
				return err
			}
			printSuccess("Stored %s (%s, %s)", key, f, formatSize(len(data)))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "input format (default: from file extension)")
	return cmd
}

func (c *CLI) storeGetCommand() *cobra.Command {
	var (
		to     string
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Fetch a stored document",
		Long: `Fetch a stored document. With --to the document is decoded in safe mode and
re-encoded in the requested format.

Without a key, an interactive list of stored documents is shown when the
terminal allows it.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				key, err = c.chooseKey(cmd, st)
				if err != nil || key == "" {
					return err
				}
			}

			doc, err := st.Get(ctx, key)
			if err != nil {
				return err
			}
			out := doc.Payload
			if to != "" && (to != doc.Format || pretty) {
				v, err := serial.Deserialize(ctx, doc.Payload, append(c.cfg().SerialOptions(), serial.Format(doc.Format), serial.Safe())...)
				if err != nil {
					return err
				}
				out, err = serial.Serialize(ctx, v, append(c.cfg().SerialOptions(), serial.Format(to), serial.Pretty(pretty))...)
				if err != nil {
					return err
				}
			}
			if err := writeOutput(c.Out, output, out); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "write output")
			}
			if output != "" && output != "-" {
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "re-encode in this format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indented output (with --to)")
	return cmd
}

func (c *CLI) storeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored document",
		Args:    cobra.ExactArgs(1),

		ValidArgsFunction: c.completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}

func (c *CLI) storeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored document keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			keys, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				printInfo("No documents stored")
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(c.Out, k)
			}
			return nil
		},
	}
}

// chooseKey lets the user pick a stored document. It fails when no terminal
// is attached, so scripts must name the key.
func (c *CLI) chooseKey(cmd *cobra.Command, st store.Store) (string, error) {
	if !interactive() {
		return "", errors.New(errors.ErrCodeInvalidInput, "no key given and no terminal to choose one")
	}
	keys, err := st.List(cmd.Context())
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		printInfo("No documents stored")
		return "", nil
	}
	key, err := pickDocument(keys)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "document picker")
	}
	if key == "" {
		printDetail("No selection made")
	}
	return key, nil
}
