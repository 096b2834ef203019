// Package format defines the pluggable codec contract and the registry that
// selects a codec by name.
//
// An [Engine] renders a wire tree (see package wire) to bytes and parses bytes
// back into values. Engines never instantiate application types themselves:
// while parsing they hand every tag to a [wire.Builder], which is where the
// safe-mode gate and the type registry live.
//
// # Built-in engines
//
//   - json: tagged {"@type", "@properties"} envelope
//   - jsonc: json input with comments and trailing commas
//   - yaml: local tags (!geom.Point), aliases rejected
//   - cbor: CBOR tag 27 records
//
// # Default format
//
// The process-wide registry carries one mutable default used whenever a
// caller does not name a format:
//
//	format.SetDefault("yaml")
//	engine, _ := format.EngineFor("") // yaml engine
package format

import (
	"io"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Engine is a stateless codec for one wire format.
type Engine interface {
	// Name returns the registry name, e.g. "json".
	Name() string

	// Dump renders tree to w. pretty selects an indented rendering where the
	// format has one; both renderings parse to the same tree.
	Dump(w io.Writer, tree any, pretty bool) error

	// Load parses one value from r. Records are reported to b; Load returns
	// whatever b built for the top-level value. On error nothing is returned.
	Load(r io.Reader, b wire.Builder) (any, error)
}

// SafeTagger is implemented by engines that own adapter records which are
// always safe to decode, such as a mapping adapter.
type SafeTagger interface {
	SafeTags() []string
}

// SafeTags returns e's adapter tags, if any.
func SafeTags(e Engine) []string {
	if st, ok := e.(SafeTagger); ok {
		return st.SafeTags()
	}
	return nil
}

// Registry maps names to engines and holds the default format name.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	def     string
}

// NewRegistry returns an empty registry whose default is def.
func NewRegistry(def string) *Registry {
	return &Registry{engines: make(map[string]Engine), def: def}
}

// Register binds name to e, replacing any previous binding.
func (r *Registry) Register(name string, e Engine) error {
	if err := errors.ValidateFormatName(name); err != nil {
		return err
	}
	if e == nil {
		return errors.New(errors.ErrCodeInvalidInput, "register %s: nil engine", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = e
	return nil
}

// EngineFor returns the engine registered under name. An empty name selects
// the default format.
func (r *Registry) EngineFor(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	e, ok := r.engines[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (available: %v)", name, r.namesLocked())
	}
	return e, nil
}

// SetDefault changes the default format. The name must be registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[name]; !ok {
		return errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (available: %v)", name, r.namesLocked())
	}
	r.def = name
	return nil
}

// DefaultName returns the current default format.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := lo.Keys(r.engines)
	slices.Sort(names)
	return names
}
