package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/api"
)

// serveCommand starts the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion and document API over HTTP",
		Long: `Serve the HTTP API. Every request body is decoded in safe mode.

Routes:
  GET    /healthz
  GET    /v1/formats
  POST   /v1/convert?from=json&to=yaml
  PUT    /v1/documents/{key}?format=json
  GET    /v1/documents/{key}[?format=yaml]
  DELETE /v1/documents/{key}
  GET    /v1/documents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			srv := api.New(st,
				api.WithLogger(c.Logger),
				api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
				api.WithMaxDepth(cfg.Serial.MaxDepth),
			)
			printInfo("Serving on %s (store: %s)", addr, cfg.Store.Backend)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config)")
	return cmd
}
