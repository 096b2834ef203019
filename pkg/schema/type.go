package schema

import (
	"reflect"
	"slices"

	"github.com/samber/lo"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Factory allocates an instance for a record about to be restored. props are
// the record's raw decoded properties; most factories ignore them.
type Factory func(props *wire.Props) (any, error)

// Type is the sealed schema of one serializable Go type. It is built by
// [Define] and never changes afterwards.
type Type struct {
	tag        string
	rtype      reflect.Type
	parent     *Type
	lift       func(any) any
	own        []Property
	added      []Property
	excluded   []string
	restricted bool
	factory    Factory

	bindings []Property
	index    map[string]int
}

// Tag returns the fully qualified type tag written on the wire.
func (t *Type) Tag() string { return t.tag }

// GoType returns the struct type this schema describes.
func (t *Type) GoType() reflect.Type { return t.rtype }

// Parent returns the schema this type extends, or nil for a root type.
func (t *Type) Parent() *Type { return t.parent }

// Restricted reports whether the type is kept out of the safe allow-list.
func (t *Type) Restricted() bool { return t.restricted }

// Excluded returns the names this level removes from its parent's schema.
func (t *Type) Excluded() []string { return slices.Clone(t.excluded) }

// EffectiveSchema returns the inheritance-merged property names in
// declaration order, ancestors first.
func (t *Type) EffectiveSchema() []string {
	return lo.Map(t.bindings, func(p Property, _ int) string { return p.Name })
}

// Bindings returns the effective properties, each accepting a pointer to
// this type.
func (t *Type) Bindings() []Property {
	return slices.Clone(t.bindings)
}

// Binding returns the effective property with the given name.
func (t *Type) Binding(name string) (Property, bool) {
	i, ok := t.index[name]
	if !ok {
		return Property{}, false
	}
	return t.bindings[i], true
}

// Has reports whether name is part of the effective schema.
func (t *Type) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// New allocates an instance for deserialization.
func (t *Type) New(props *wire.Props) (any, error) {
	obj, err := t.factory(props)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "create %s", t.tag)
	}
	return obj, nil
}

// IsA reports whether t is other or extends it.
func (t *Type) IsA(other *Type) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string { return t.tag }

// seal validates the level and computes the effective schema once.
//
// The merge walks root to leaf: each level appends its declared and added
// properties that are not yet present (a re-declaration replaces the
// inherited binding in place), then removes its excluded names.
func (t *Type) seal() error {
	ownNames := lo.Map(append(slices.Clone(t.own), t.added...), func(p Property, _ int) string { return p.Name })
	for _, p := range t.own {
		if err := p.validate(); err != nil {
			return errors.Wrap(errors.ErrCodeSchema, err, "%s", t.tag)
		}
	}
	for _, p := range t.added {
		if err := p.validate(); err != nil {
			return errors.Wrap(errors.ErrCodeSchema, err, "%s", t.tag)
		}
	}
	if conflict := lo.Filter(t.excluded, func(n string, _ int) bool { return lo.Contains(ownNames, n) }); len(conflict) > 0 {
		return errors.New(errors.ErrCodeSchema, "%s: property %q is both declared and excluded", t.tag, conflict[0])
	}
	if len(t.added) > 0 && t.parent == nil {
		return errors.New(errors.ErrCodeSchema, "%s: added properties require a parent type", t.tag)
	}

	var merged []Property
	if t.parent != nil {
		merged = lo.Map(t.parent.bindings, func(p Property, _ int) Property { return p.lifted(t.lift) })
	}
	for _, name := range t.excluded {
		if t.parent == nil || !t.parent.Has(name) {
			return errors.New(errors.ErrCodeSchema, "%s: excluded property %q is not inherited", t.tag, name)
		}
	}
	for _, p := range append(slices.Clone(t.own), t.added...) {
		if i := slices.IndexFunc(merged, func(m Property) bool { return m.Name == p.Name }); i >= 0 {
			merged[i] = p
			continue
		}
		merged = append(merged, p)
	}
	merged = lo.Filter(merged, func(p Property, _ int) bool { return !lo.Contains(t.excluded, p.Name) })

	t.bindings = merged
	t.index = make(map[string]int, len(merged))
	for i, p := range merged {
		t.index[p.Name] = i
	}
	return nil
}
