package jsonfmt

import (
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

type decoder struct {
	iter  *jsoniter.Iterator
	b     wire.Builder
	depth int
	err   error
}

func load(data []byte, b wire.Builder) (any, error) {
	iter := compactAPI.BorrowIterator(data)
	defer compactAPI.ReturnIterator(iter)

	d := &decoder{iter: iter, b: b}
	v := d.value()
	if err := d.failure(); err != nil {
		return nil, err
	}
	if next := iter.WhatIsNext(); next != jsoniter.InvalidValue {
		return nil, errors.New(errors.ErrCodeCodec, "json: trailing data after top-level value")
	}
	return v, nil
}

// failure returns the first error: builder and structural errors keep their
// own codes, parser errors are wrapped as CODEC.
func (d *decoder) failure() error {
	if d.err != nil {
		return d.err
	}
	if d.iter.Error != nil {
		return errors.Wrap(errors.ErrCodeCodec, d.iter.Error, "parse json")
	}
	return nil
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) failed() bool {
	return d.err != nil || d.iter.Error != nil
}

func (d *decoder) enter() bool {
	d.depth++
	if err := wire.CheckDepth(d.b, d.depth); err != nil {
		d.fail(err)
		return false
	}
	return true
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) value() any {
	if d.failed() {
		return nil
	}
	switch d.iter.WhatIsNext() {
	case jsoniter.NilValue:
		d.iter.ReadNil()
		return nil
	case jsoniter.BoolValue:
		return d.iter.ReadBool()
	case jsoniter.StringValue:
		return d.iter.ReadString()
	case jsoniter.NumberValue:
		return d.number()
	case jsoniter.ArrayValue:
		return d.array()
	case jsoniter.ObjectValue:
		return d.object()
	default:
		d.iter.ReportError("read value", "unexpected token")
		return nil
	}
}

// number decodes integers as int64 (uint64 above MaxInt64) and everything
// with a fraction or exponent as float64.
func (d *decoder) number() any {
	num := string(d.iter.ReadNumber())
	if d.iter.Error == io.EOF && d.depth == 0 && num != "" {
		// A top-level number may end the input.
		d.iter.Error = nil
	}
	if d.failed() {
		return nil
	}
	if !strings.ContainsAny(num, ".eE") {
		if i, err := strconv.ParseInt(num, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(num, 10, 64); err == nil {
			return u
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		d.fail(errors.Wrap(errors.ErrCodeCodec, err, "json: bad number %q", num))
		return nil
	}
	return f
}

func (d *decoder) array() any {
	if !d.enter() {
		return nil
	}
	defer d.leave()
	items := []any{}
	for d.iter.ReadArray() {
		items = append(items, d.value())
		if d.failed() {
			return nil
		}
	}
	return items
}

// object decodes a plain mapping or, when the first key is "@type", a tagged
// record. The tag is admitted before any property is parsed.
func (d *decoder) object() any {
	if !d.enter() {
		return nil
	}
	defer d.leave()

	var (
		tag      string
		tagged   bool
		props    *wire.Props
		plain    = wire.NewProps()
		first    = true
		sawProps bool
	)
	d.iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
		defer func() { first = false }()
		switch {
		case first && key == wire.KeyType:
			tag = iter.ReadString()
			if d.failed() {
				return false
			}
			tagged = true
			if isAdapter(tag) {
				return true
			}
			if err := d.b.Admit(tag); err != nil {
				d.fail(err)
				return false
			}
		case tagged && key == wire.KeyProperties && !sawProps:
			sawProps = true
			if iter.WhatIsNext() != jsoniter.ObjectValue {
				d.fail(errors.New(errors.ErrCodeCodec, "json: %s of %q must be an object", wire.KeyProperties, tag))
				return false
			}
			p, ok := d.object().(*wire.Props)
			if !ok {
				if !d.failed() {
					d.fail(errors.New(errors.ErrCodeCodec, "json: %s of %q must be a plain object", wire.KeyProperties, tag))
				}
				return false
			}
			props = p
		case tagged:
			d.fail(errors.New(errors.ErrCodeCodec, "json: unexpected key %q in %q record", key, tag))
			return false
		case key == wire.KeyType:
			d.fail(errors.New(errors.ErrCodeCodec, "json: reserved key %q must come first", key))
			return false
		default:
			plain.Add(key, d.value())
		}
		return !d.failed()
	})
	if d.failed() {
		return nil
	}
	if !tagged {
		return plain
	}
	if props == nil {
		props = wire.NewProps()
	}
	return d.record(tag, props)
}

func (d *decoder) record(tag string, props *wire.Props) any {
	switch tag {
	case wire.TagMap:
		return d.mapAdapter(props)
	case wire.TagBytes:
		return d.bytesAdapter(props)
	}
	v, err := d.b.Build(tag, props)
	if err != nil {
		d.fail(err)
		return nil
	}
	return v
}

// mapAdapter unwraps {"entries": [[k, v], ...]}. String-keyed entries come
// back as *wire.Props, everything else as *wire.Map.
func (d *decoder) mapAdapter(props *wire.Props) any {
	raw, _ := props.ValueByKeyTry(keyEntries)
	list, ok := raw.([]any)
	if !ok && raw != nil {
		d.fail(errors.New(errors.ErrCodeCodec, "json: Map entries must be an array"))
		return nil
	}
	m := &wire.Map{}
	for i, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			d.fail(errors.New(errors.ErrCodeCodec, "json: Map entry %d is not a [key, value] pair", i))
			return nil
		}
		m.Add(pair[0], pair[1])
	}
	if p, ok := m.ToProps(); ok && m.Len() > 0 {
		return p
	}
	return m
}

func (d *decoder) bytesAdapter(props *wire.Props) any {
	raw, _ := props.ValueByKeyTry(keyData)
	s, ok := raw.(string)
	if !ok {
		d.fail(errors.New(errors.ErrCodeCodec, "json: Bytes data must be a string"))
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		d.fail(errors.Wrap(errors.ErrCodeCodec, err, "json: Bytes data"))
		return nil
	}
	return data
}

func isAdapter(tag string) bool {
	return tag == wire.TagMap || tag == wire.TagBytes
}
