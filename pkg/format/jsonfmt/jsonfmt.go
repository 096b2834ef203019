// Package jsonfmt implements the json and jsonc format engines.
//
// Records use a two-key envelope whose first key is always "@type":
//
//	{"@type": "geom.Point", "@properties": {"x": 10.0, "y": 90.0}}
//
// JSON object keys are strings, so mappings whose keys are not all strings,
// and string mappings that happen to contain "@type", are wrapped in the Map
// adapter and unwrapped transparently on read:
//
//	{"@type": "Map", "@properties": {"entries": [[1, "one"], [2, "two"]]}}
//
// Byte slices use the Bytes adapter with base64 data. Whole floats keep a
// decimal point ("10.0") so they decode as floats, not integers.
//
// The jsonc engine writes plain JSON and accepts comments and trailing
// commas on input.
package jsonfmt

import (
	"io"

	"github.com/tidwall/jsonc"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

const (
	keyEntries = "entries"
	keyData    = "data"
)

// Engine is a JSON format engine.
type Engine struct {
	name     string
	comments bool
}

// New returns the json engine.
func New() *Engine {
	return &Engine{name: "json"}
}

// NewJSONC returns the jsonc engine.
func NewJSONC() *Engine {
	return &Engine{name: "jsonc", comments: true}
}

// Name implements format.Engine.
func (e *Engine) Name() string { return e.name }

// SafeTags implements format.SafeTagger.
func (e *Engine) SafeTags() []string {
	return []string{wire.TagMap, wire.TagBytes}
}

// Dump implements format.Engine.
func (e *Engine) Dump(w io.Writer, tree any, pretty bool) error {
	return dump(w, tree, pretty)
}

// Load implements format.Engine.
func (e *Engine) Load(r io.Reader, b wire.Builder) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodec, err, "read %s input", e.name)
	}
	if e.comments {
		data = jsonc.ToJSON(data)
	}
	return load(data, b)
}
