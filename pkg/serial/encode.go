package serial

import (
	"reflect"
	"slices"
	"strings"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// encode turns a Go value into a wire tree. ok is false when the value is
// serialize-disabled and must be left out.
func (s *Session) encode(f *frame, v any, excluded []string) (out any, ok bool, err error) {
	if isNil(v) {
		return nil, true, nil
	}
	if d, isDisabler := v.(Disabler); isDisabler && d.SerializeDisabled() {
		return nil, false, nil
	}

	f.depth++
	defer func() { f.depth-- }()
	if f.maxDepth > 0 && f.depth > f.maxDepth {
		return nil, false, errors.New(errors.ErrCodeDepthExceeded, "nesting depth exceeds limit %d", f.maxDepth)
	}

	switch v := v.(type) {
	case *identity.ID:
		return &wire.Record{Type: wire.TagID, Props: wire.PropsOf("ref", f.refs.Ref(v))}, true, nil
	case *wire.Record:
		props, err := s.encodeProps(f, v.Props)
		if err != nil {
			return nil, false, err
		}
		return &wire.Record{Type: v.Type, Props: props}, true, nil
	case *wire.Props:
		props, err := s.encodeProps(f, v)
		return props, err == nil, err
	case *wire.Map:
		m := &wire.Map{}
		for _, e := range v.Entries {
			if err := s.encodeEntry(f, m, e.Key, e.Value); err != nil {
				return nil, false, err
			}
		}
		return m, true, nil
	case []byte:
		return slices.Clone(v), true, nil
	}

	if t, found := s.schemas.TypeOf(v); found {
		rec, err := s.encodeObject(f, v, t.Tag(), excluded)
		return rec, err == nil, err
	}
	return s.encodeValue(f, reflect.ValueOf(v))
}

// encodeObject writes a declared-schema object as a tagged record.
func (s *Session) encodeObject(f *frame, v any, tag string, excluded []string) (*wire.Record, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	} else {
		key := visit{typ: rv.Type(), ptr: rv.Pointer()}
		if f.active[key] {
			return nil, errors.New(errors.ErrCodeCycle, "%s reached again while being encoded; use an identity reference", tag)
		}
		f.active[key] = true
		defer delete(f.active, key)
	}
	obj := rv.Interface()

	raw := wire.NewProps()
	var err error
	if fs, ok := obj.(ForSerializer); ok {
		err = fs.ForSerialize(s, raw, excluded...)
	} else {
		err = s.WriteProperties(obj, raw, excluded...)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "serialize %s", tag)
	}
	props, err := s.encodeProps(f, raw)
	if err != nil {
		return nil, err
	}
	return &wire.Record{Type: tag, Props: props}, nil
}

func (s *Session) encodeProps(f *frame, raw *wire.Props) (*wire.Props, error) {
	props := wire.NewProps()
	if raw == nil {
		return props, nil
	}
	for _, kv := range raw.Order {
		out, ok, err := s.encode(f, kv.Value, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			props.Add(kv.Key, out)
		}
	}
	return props, nil
}

func (s *Session) encodeEntry(f *frame, m *wire.Map, key, value any) error {
	k, ok, err := s.encode(f, key, nil)
	if err != nil || !ok {
		return err
	}
	val, ok, err := s.encode(f, value, nil)
	if err != nil || !ok {
		return err
	}
	m.Add(k, val)
	return nil
}

// encodeValue handles everything without a schema by its kind.
func (s *Session) encodeValue(f *frame, rv reflect.Value) (any, bool, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true, nil
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return slices.Clone(rv.Bytes()), true, nil
		}
		return s.encodeList(f, rv)
	case reflect.Array:
		return s.encodeList(f, rv)
	case reflect.Map:
		return s.encodeMap(f, rv)
	case reflect.Pointer, reflect.Interface:
		if rv.Kind() == reflect.Pointer {
			key := visit{typ: rv.Type(), ptr: rv.Pointer()}
			if f.active[key] {
				return nil, false, errors.New(errors.ErrCodeCycle, "%s reached again while being encoded", rv.Type())
			}
			f.active[key] = true
			defer delete(f.active, key)
		}
		return s.encode(f, rv.Elem().Interface(), nil)
	default:
		return nil, false, errors.New(errors.ErrCodeUnsupported, "type %s is not serializable", rv.Type())
	}
}

// encodeList drops disabled elements.
func (s *Session) encodeList(f *frame, rv reflect.Value) (any, bool, error) {
	items := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out, ok, err := s.encode(f, rv.Index(i).Interface(), nil)
		if err != nil {
			return nil, false, err
		}
		if ok {
			items = append(items, out)
		}
	}
	return items, true, nil
}

// encodeMap renders Go maps with sorted keys. String-keyed maps become
// property containers, everything else a wire.Map.
func (s *Session) encodeMap(f *frame, rv reflect.Value) (any, bool, error) {
	keys := rv.MapKeys()
	if rv.Type().Key().Kind() == reflect.String {
		slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })
		props := wire.NewProps()
		for _, k := range keys {
			out, ok, err := s.encode(f, rv.MapIndex(k).Interface(), nil)
			if err != nil {
				return nil, false, err
			}
			if ok {
				props.Add(k.String(), out)
			}
		}
		return props, true, nil
	}

	m := &wire.Map{}
	for _, k := range keys {
		if err := s.encodeEntry(f, m, k.Interface(), rv.MapIndex(k).Interface()); err != nil {
			return nil, false, err
		}
	}
	m.SortEntries()
	return m, true, nil
}

// isNil reports whether v is nil or a typed nil pointer, map, slice or func.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
