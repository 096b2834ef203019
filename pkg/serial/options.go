package serial

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/schema"
)

// Option configures one Serialize or Deserialize call.
type Option func(*options)

type options struct {
	format   string
	pretty   bool
	safe     bool
	excluded []string
	strict   bool
	maxDepth int

	// Session-wide; ignored when the call nests inside an existing session.
	schemas *schema.Registry
	formats *format.Registry
	logger  *log.Logger
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Format selects the format engine by name. The registry default is used
// when no format is given.
func Format(name string) Option {
	return func(o *options) { o.format = name }
}

// Pretty selects the indented rendering where the format has one.
func Pretty(pretty bool) Option {
	return func(o *options) { o.pretty = pretty }
}

// Safe restricts instantiation to the allow-list. A load nested in a safe
// load is always safe, whatever it asks for.
func Safe() Option {
	return func(o *options) { o.safe = true }
}

// Excluding drops the named properties of the top-level object, in addition
// to those its type excludes.
func Excluding(names ...string) Option {
	return func(o *options) { o.excluded = append(o.excluded, names...) }
}

// StrictReferences makes a load fail when an ID reference never gets an
// owner among the restored objects. By default such a reference silently
// yields a fresh placeholder ID.
func StrictReferences() Option {
	return func(o *options) { o.strict = true }
}

// MaxDepth bounds nesting on load and dump. Zero keeps the default.
func MaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

// WithRegistry uses r instead of schema.Default().
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) { o.schemas = r }
}

// WithFormats uses r instead of format.Default().
func WithFormats(r *format.Registry) Option {
	return func(o *options) { o.formats = r }
}

// WithLogger uses l instead of the logger carried by the context.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}
