// Package config loads shapeserial settings from a TOML file.
//
// A missing file is not an error: every setting has a default, and the file
// only needs the keys it changes.
//
//	[serial]
//	format = "yaml"
//	safe = true
//
//	[store]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "24h"
package config

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/serial"
)

const appName = "shapeserial"

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNull  = "null"
)

// Config is the full configuration.
type Config struct {
	Serial Serial `toml:"serial"`
	Log    Log    `toml:"log"`
	Store  Store  `toml:"store"`
	Server Server `toml:"server"`
}

// Serial holds the defaults for serialize and deserialize calls.
type Serial struct {
	Format           string `toml:"format"`
	Pretty           bool   `toml:"pretty"`
	Safe             bool   `toml:"safe"`
	MaxDepth         int    `toml:"max_depth"`
	StrictReferences bool   `toml:"strict_references"`
}

// Log configures the logger.
type Log struct {
	Level string `toml:"level"`
}

// Store selects and configures the document store.
type Store struct {
	Backend  string   `toml:"backend"`
	Dir      string   `toml:"dir"`
	Compress bool     `toml:"compress"`
	TTL      Duration `toml:"ttl"`

	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Server configures the HTTP service.
type Server struct {
	Addr         string `toml:"addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// Duration is a time.Duration written as a string such as "90s" or "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: Serial{Format: format.DefaultFormat},
		Log:    Log{Level: "info"},
		Store: Store{
			Backend:         BackendFile,
			Compress:        true,
			TTL:             Duration{Duration: 24 * time.Hour},
			RedisAddr:       "localhost:6379",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   appName,
			MongoCollection: "documents",
		},
		Server: Server{
			Addr:         ":8080",
			MaxBodyBytes: 4 << 20,
		},
	}
}

// Load reads the file at path on top of the defaults. An empty path means
// [Path]. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "locate config")
		}
		path = p
	}

	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns $XDG_CONFIG_HOME/shapeserial/config.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DataDir returns the default directory of the file store:
// $XDG_DATA_HOME/shapeserial or ~/.local/share/shapeserial.
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// Validate checks settings that decode fine but cannot work.
func (c *Config) Validate() error {
	if err := errors.ValidateFormatName(c.Serial.Format); err != nil {
		return err
	}
	if c.Serial.MaxDepth < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "serial.max_depth must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	backends := []string{BackendFile, BackendRedis, BackendMongo, BackendNull}
	if !slices.Contains(backends, c.Store.Backend) {
		return errors.New(errors.ErrCodeInvalidInput, "store.backend %q: want one of %v", c.Store.Backend, backends)
	}
	if c.Store.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "store.ttl must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.max_body_bytes must be positive")
	}
	return nil
}

// SerialOptions returns the [serial] section as call options.
func (c *Config) SerialOptions() []serial.Option {
	opts := []serial.Option{
		serial.Format(c.Serial.Format),
		serial.Pretty(c.Serial.Pretty),
		serial.MaxDepth(c.Serial.MaxDepth),
	}
	if c.Serial.Safe {
		opts = append(opts, serial.Safe())
	}
	if c.Serial.StrictReferences {
		opts = append(opts, serial.StrictReferences())
	}
	return opts
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
