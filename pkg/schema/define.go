package schema

import (
	"reflect"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Option configures a type while it is being defined.
type Option func(*definition) error

type definition struct {
	t *Type
}

// Declare appends own properties. Names already declared at this level are
// ignored.
func Declare(props ...Property) Option {
	return func(d *definition) error {
		for _, p := range props {
			if d.declared(p.Name) {
				continue
			}
			d.t.own = append(d.t.own, p)
		}
		return nil
	}
}

// DeclareFields declares exported struct fields as properties. A name matches
// a field's `serial` tag or, case-insensitively, its Go name. Fields are
// resolved here; a name without a field is a schema error.
func DeclareFields(names ...string) Option {
	return func(d *definition) error {
		for _, name := range names {
			if d.declared(name) {
				continue
			}
			p, err := fieldProperty(d.t.rtype, name)
			if err != nil {
				return errors.Wrap(errors.ErrCodeSchema, err, "define %s", d.t.tag)
			}
			d.t.own = append(d.t.own, p)
		}
		return nil
	}
}

// Exclude removes inherited properties from this type's schema.
func Exclude(names ...string) Option {
	return func(d *definition) error {
		for _, n := range names {
			if !containsName(d.t.excluded, n) {
				d.t.excluded = append(d.t.excluded, n)
			}
		}
		return nil
	}
}

// Add appends properties that exist only on this subtype. Only valid together
// with [Extends].
func Add(props ...Property) Option {
	return func(d *definition) error {
		for _, p := range props {
			if d.declared(p.Name) {
				continue
			}
			d.t.added = append(d.t.added, p)
		}
		return nil
	}
}

// AddFields is [Add] for exported struct fields, resolved like [DeclareFields].
func AddFields(names ...string) Option {
	return func(d *definition) error {
		for _, name := range names {
			if d.declared(name) {
				continue
			}
			p, err := fieldProperty(d.t.rtype, name)
			if err != nil {
				return errors.Wrap(errors.ErrCodeSchema, err, "define %s", d.t.tag)
			}
			d.t.added = append(d.t.added, p)
		}
		return nil
	}
}

// Extends makes the type inherit parent's effective schema. lift projects an
// instance onto the parent value it embeds.
func Extends[T, P any](parent *Type, lift func(*T) *P) Option {
	return func(d *definition) error {
		if parent == nil {
			return errors.New(errors.ErrCodeSchema, "define %s: nil parent", d.t.tag)
		}
		if d.t.rtype != reflect.TypeFor[T]() {
			return errors.New(errors.ErrCodeSchema, "define %s: Extends used with %s", d.t.tag, reflect.TypeFor[T]())
		}
		if parent.rtype != reflect.TypeFor[P]() {
			return errors.New(errors.ErrCodeSchema, "define %s: parent %s describes %s, not %s",
				d.t.tag, parent.tag, parent.rtype, reflect.TypeFor[P]())
		}
		if lift == nil {
			return errors.New(errors.ErrCodeSchema, "define %s: nil lift function", d.t.tag)
		}
		d.t.parent = parent
		d.t.lift = func(obj any) any { return lift(obj.(*T)) }
		return nil
	}
}

// Restricted keeps the type out of the safe allow-list. It can still be
// restored from trusted input.
func Restricted() Option {
	return func(d *definition) error {
		d.t.restricted = true
		return nil
	}
}

// Creator replaces the default factory, which allocates a zero value.
func Creator(f Factory) Option {
	return func(d *definition) error {
		if f == nil {
			return errors.New(errors.ErrCodeSchema, "define %s: nil factory", d.t.tag)
		}
		d.t.factory = f
		return nil
	}
}

func (d *definition) declared(name string) bool {
	for _, p := range d.t.own {
		if p.Name == name {
			return true
		}
	}
	for _, p := range d.t.added {
		if p.Name == name {
			return true
		}
	}
	return false
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Define builds the schema for T and registers it under tag in the default
// registry.
func Define[T any](tag string, opts ...Option) (*Type, error) {
	return DefineIn[T](Default(), tag, opts...)
}

// MustDefine is like [Define] but panics on error. It is meant for
// package-level variable initialization.
func MustDefine[T any](tag string, opts ...Option) *Type {
	t, err := Define[T](tag, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// DefineIn builds the schema for T and registers it in r. All schema errors
// are reported here, before any instance is serialized.
func DefineIn[T any](r *Registry, tag string, opts ...Option) (*Type, error) {
	if err := errors.ValidateTypeTag(tag); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchema, err, "define %s", tag)
	}
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return nil, errors.New(errors.ErrCodeSchema, "define %s: %s is not a struct type", tag, rt)
	}

	t := &Type{tag: tag, rtype: rt}
	t.factory = func(*wire.Props) (any, error) { return reflect.New(rt).Interface(), nil }

	d := &definition{t: t}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if err := t.seal(); err != nil {
		return nil, err
	}
	if err := r.Register(t); err != nil {
		return nil, err
	}
	return t, nil
}
