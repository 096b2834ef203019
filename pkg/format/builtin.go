package format

import (
	"github.com/matzehuels/shapeserial/pkg/format/cborfmt"
	"github.com/matzehuels/shapeserial/pkg/format/jsonfmt"
	"github.com/matzehuels/shapeserial/pkg/format/yamlfmt"
)

// DefaultFormat is the default of a fresh registry.
const DefaultFormat = "json"

var (
	_ Engine     = (*jsonfmt.Engine)(nil)
	_ SafeTagger = (*jsonfmt.Engine)(nil)
	_ Engine     = (*yamlfmt.Engine)(nil)
	_ Engine     = (*cborfmt.Engine)(nil)
)

// Builtin returns a new registry holding every built-in engine, with
// [DefaultFormat] as its default.
func Builtin() *Registry {
	r := NewRegistry(DefaultFormat)
	for _, e := range []Engine{jsonfmt.New(), jsonfmt.NewJSONC(), yamlfmt.New(), cborfmt.New()} {
		// Built-in names are valid, Register cannot fail here.
		_ = r.Register(e.Name(), e)
	}
	return r
}

var defaultRegistry = Builtin()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register binds name to e in the process-wide registry.
func Register(name string, e Engine) error {
	return defaultRegistry.Register(name, e)
}

// EngineFor looks name up in the process-wide registry.
func EngineFor(name string) (Engine, error) {
	return defaultRegistry.EngineFor(name)
}

// SetDefault changes the process-wide default format.
func SetDefault(name string) error {
	return defaultRegistry.SetDefault(name)
}

// DefaultName returns the process-wide default format.
func DefaultName() string {
	return defaultRegistry.DefaultName()
}

// Names lists the formats of the process-wide registry.
func Names() []string {
	return defaultRegistry.Names()
}
