package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Property is one declared field of a serializable type, bound to explicit
// accessors. Get and Set receive the object as a pointer to the type the
// property was declared on.
type Property struct {
	Name string
	Get  func(obj any) any
	Set  func(obj any, value any) error
}

// Prop builds a typed property. Decoded values are converted to V with
// [wire.As] before set is called.
func Prop[T, V any](name string, get func(*T) V, set func(*T, V)) Property {
	p := Property{Name: name}
	if get != nil {
		p.Get = func(obj any) any { return get(obj.(*T)) }
	}
	if set != nil {
		p.Set = func(obj any, value any) error {
			v, err := wire.As[V](value)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "property %q", name)
			}
			set(obj.(*T), v)
			return nil
		}
	}
	return p
}

func (p Property) validate() error {
	if p.Name == "" {
		return errors.New(errors.ErrCodeSchema, "property with empty name")
	}
	if p.Get == nil || p.Set == nil {
		return errors.New(errors.ErrCodeSchema, "property %q has no getter/setter pair", p.Name)
	}
	return nil
}

// lifted rebinds p so that it accepts a subtype object, projecting it onto
// the declaring type with lift.
func (p Property) lifted(lift func(any) any) Property {
	get, set := p.Get, p.Set
	return Property{
		Name: p.Name,
		Get:  func(obj any) any { return get(lift(obj)) },
		Set:  func(obj any, value any) error { return set(lift(obj), value) },
	}
}

// fieldProperty resolves an exported struct field of rt, matched by its
// `serial` tag or case-insensitively by name. The field index is resolved
// once; accessors never look names up again.
func fieldProperty(rt reflect.Type, name string) (Property, error) {
	field, ok := findField(rt, name)
	if !ok {
		return Property{}, errors.New(errors.ErrCodeSchema, "%s has no field for property %q", rt, name)
	}
	index := field.Index
	return Property{
		Name: name,
		Get: func(obj any) any {
			return reflect.ValueOf(obj).Elem().FieldByIndex(index).Interface()
		},
		Set: func(obj any, value any) error {
			dst := reflect.ValueOf(obj).Elem().FieldByIndex(index)
			if err := wire.Assign(dst, value); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "property %q", name)
			}
			return nil
		},
	}, nil
}

func findField(rt reflect.Type, name string) (reflect.StructField, bool) {
	if rt.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for _, f := range reflect.VisibleFields(rt) {
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("serial"), ","); tag == name {
			return f, true
		}
	}
	for _, f := range reflect.VisibleFields(rt) {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func (p Property) String() string {
	return fmt.Sprintf("Property(%s)", p.Name)
}
