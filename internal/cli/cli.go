// Package cli implements the shapeserial command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shapeserial/pkg/buildinfo"
	"github.com/matzehuels/shapeserial/pkg/config"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/store"

	// Registered document types.
	_ "github.com/matzehuels/shapeserial/pkg/diagram"
	_ "github.com/matzehuels/shapeserial/pkg/geom"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "shapeserial"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output. Defaults to stdout.
	Out io.Writer

	configPath string
	config     *config.Config
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: logging.New(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "shapeserial converts and stores serialized diagrams",
		Long: `shapeserial reads, converts and stores object graphs serialized as JSON,
JSONC, YAML or CBOR. Untrusted documents are decoded in safe mode: only
allow-listed types are ever instantiated.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/shapeserial/config.toml)")

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.formatsCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration and attaches the logger to the command
// context. --verbose wins over the configured level.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, c.Logger))
	return nil
}

// cfg returns the loaded configuration, or the defaults before setup ran.
func (c *CLI) cfg() *config.Config {
	if c.config == nil {
		c.config = config.Default()
	}
	return c.config
}

// =============================================================================
// Store Factory
// =============================================================================

// openStore opens the configured document store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.cfg().Store
	c.Logger.Debug("opening store", "backend", cfg.Backend)
	return store.Open(ctx, cfg)
}

// =============================================================================
// Format Helpers
// =============================================================================

var extFormats = map[string]string{
	".json":  "json",
	".jsonc": "jsonc",
	".yaml":  "yaml",
	".yml":   "yaml",
	".cbor":  "cbor",
}

// formatFor returns the explicit format, else the one implied by the file
// extension, else the configured default.
func (c *CLI) formatFor(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return c.cfg().Serial.Format
}

// readInput reads a file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes to a file, or to w for "" and "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
