package wire

import (
	"reflect"

	"github.com/spf13/cast"

	"github.com/matzehuels/shapeserial/pkg/errors"
)

// As converts a decoded value into T. See [Assign] for the supported
// conversions.
func As[T any](v any) (T, error) {
	var out T
	err := Assign(reflect.ValueOf(&out).Elem(), v)
	return out, err
}

// Assign stores the decoded value src into the settable destination dst,
// converting between the wire representation and dst's Go type.
//
// Supported conversions:
//   - any value assignable to dst's type
//   - *T into a T destination and T into a *T destination
//   - numeric, boolean and string coercion through spf13/cast
//   - []any into slices and arrays, element by element
//   - *Props and *Map into Go maps, key and value by key and value
//
// A nil src stores dst's zero value.
func Assign(dst reflect.Value, src any) error {
	if !dst.CanSet() {
		return errors.New(errors.ErrCodeInternal, "assign: destination %s is not settable", dst.Type())
	}
	dt := dst.Type()
	if src == nil {
		dst.Set(reflect.Zero(dt))
		return nil
	}

	sv := reflect.ValueOf(src)
	st := sv.Type()
	switch {
	case st.AssignableTo(dt):
		dst.Set(sv)
		return nil
	case st.Kind() == reflect.Pointer && !sv.IsNil() && st.Elem().AssignableTo(dt):
		dst.Set(sv.Elem())
		return nil
	case dt.Kind() == reflect.Pointer && st.AssignableTo(dt.Elem()):
		p := reflect.New(dt.Elem())
		p.Elem().Set(sv)
		dst.Set(p)
		return nil
	}

	switch dt.Kind() {
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return mismatch(src, dt, err)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(src)
		if err != nil {
			return mismatch(src, dt, err)
		}
		if dst.OverflowInt(i) {
			return errors.New(errors.ErrCodeInvalidInput, "value %d overflows %s", i, dt)
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := cast.ToUint64E(src)
		if err != nil {
			return mismatch(src, dt, err)
		}
		if dst.OverflowUint(u) {
			return errors.New(errors.ErrCodeInvalidInput, "value %d overflows %s", u, dt)
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return mismatch(src, dt, err)
		}
		dst.SetFloat(f)
	case reflect.String:
		s, err := cast.ToStringE(src)
		if err != nil {
			return mismatch(src, dt, err)
		}
		dst.SetString(s)
	case reflect.Slice:
		items, ok := src.([]any)
		if !ok {
			return mismatch(src, dt, nil)
		}
		out := reflect.MakeSlice(dt, len(items), len(items))
		for i, item := range items {
			if err := Assign(out.Index(i), item); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "element %d", i)
			}
		}
		dst.Set(out)
	case reflect.Array:
		items, ok := src.([]any)
		if !ok || len(items) != dt.Len() {
			return mismatch(src, dt, nil)
		}
		out := reflect.New(dt).Elem()
		for i, item := range items {
			if err := Assign(out.Index(i), item); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "element %d", i)
			}
		}
		dst.Set(out)
	case reflect.Map:
		return assignMap(dst, src)
	case reflect.Pointer:
		p := reflect.New(dt.Elem())
		if err := Assign(p.Elem(), src); err != nil {
			return err
		}
		dst.Set(p)
	default:
		return mismatch(src, dt, nil)
	}
	return nil
}

func assignMap(dst reflect.Value, src any) error {
	dt := dst.Type()
	out := reflect.MakeMap(dt)
	put := func(k, v any) error {
		kv := reflect.New(dt.Key()).Elem()
		if err := Assign(kv, k); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "map key %v", k)
		}
		vv := reflect.New(dt.Elem()).Elem()
		if err := Assign(vv, v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "map value for key %v", k)
		}
		out.SetMapIndex(kv, vv)
		return nil
	}

	switch m := src.(type) {
	case *Props:
		for _, kv := range m.Order {
			if err := put(kv.Key, kv.Value); err != nil {
				return err
			}
		}
	case *Map:
		for _, e := range m.Entries {
			if err := put(e.Key, e.Value); err != nil {
				return err
			}
		}
	default:
		return mismatch(src, dt, nil)
	}
	dst.Set(out)
	return nil
}

func mismatch(src any, dt reflect.Type, cause error) error {
	if cause != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, cause, "cannot assign %T to %s", src, dt)
	}
	return errors.New(errors.ErrCodeInvalidInput, "cannot assign %T to %s", src, dt)
}
