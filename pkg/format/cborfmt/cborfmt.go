// Package cborfmt implements the cbor format engine.
//
// Records are written as CBOR tag 27 (a typed object with constructor
// arguments) around a two-element array:
//
//	27([ "geom.Point", {"x": 10.0, "y": 90.0} ])
//
// Mappings keep their insertion order on the wire and on load, and may use
// any wire value as a key. The pretty flag has no effect.
//
// Loading walks the item structure itself so that a record's type name is
// handed to the builder's gate before any of its properties are decoded.
// Scalars are decoded by fxamacker/cbor. Tags other than 27 are refused as
// disallowed classes; indefinite-length items are rejected.
package cborfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// TagRecord is the CBOR tag number used for records.
const TagRecord = 27

const (
	majorArray = 4
	majorMap   = 5
	majorTag   = 6
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{}.EncMode()
	if err != nil {
		panic("cborfmt: encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,
		TagsMd:      cbor.TagsForbidden,
	}.DecMode()
	if err != nil {
		panic("cborfmt: decoder initialization failed: " + err.Error())
	}
}

// Engine is the cbor format engine.
type Engine struct{}

// New returns the cbor engine.
func New() *Engine {
	return &Engine{}
}

// Name implements format.Engine.
func (e *Engine) Name() string { return "cbor" }

// Dump implements format.Engine.
func (e *Engine) Dump(w io.Writer, tree any, _ bool) error {
	v, err := toCBOR(tree)
	if err != nil {
		return err
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "encode cbor")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "write cbor")
	}
	return nil
}

// Load implements format.Engine.
func (e *Engine) Load(r io.Reader, b wire.Builder) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodec, err, "read cbor input")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeCodec, "parse cbor: empty input")
	}
	d := &decoder{b: b}
	v, rest, err := d.item(data)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.New(errors.ErrCodeCodec, "parse cbor: %d trailing bytes", len(rest))
	}
	return v, nil
}

// ===== Encoding =====

// orderedMap marshals its entries in order. Keys may be any CBOR value.
type orderedMap []wire.Entry

// MarshalCBOR implements cbor.Marshaler.
func (m orderedMap) MarshalCBOR() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(appendHead(nil, majorMap, uint64(len(m))))
	for _, e := range m {
		for _, part := range []any{e.Key, e.Value} {
			data, err := encMode.Marshal(part)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
	}
	return buf.Bytes(), nil
}

func toCBOR(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, int64, uint64, float64, string, []byte:
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			c, err := toCBOR(item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case *wire.Props:
		return propsToCBOR(v)
	case *wire.Map:
		m := make(orderedMap, 0, v.Len())
		for _, e := range v.Entries {
			k, err := toCBOR(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := toCBOR(e.Value)
			if err != nil {
				return nil, err
			}
			m = append(m, wire.Entry{Key: k, Value: val})
		}
		return m, nil
	case *wire.Record:
		props, err := propsToCBOR(v.Props)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagRecord, Content: []any{v.Type, props}}, nil
	default:
		return nil, errors.New(errors.ErrCodeCodec, "cbor: unsupported wire value %T", v)
	}
}

func propsToCBOR(p *wire.Props) (orderedMap, error) {
	m := orderedMap{}
	if p == nil {
		return m, nil
	}
	for _, kv := range p.Order {
		val, err := toCBOR(kv.Value)
		if err != nil {
			return nil, err
		}
		m = append(m, wire.Entry{Key: kv.Key, Value: val})
	}
	return m, nil
}

// appendHead appends a definite-length item head (RFC 8949 section 3).
func appendHead(buf []byte, major byte, arg uint64) []byte {
	mt := major << 5
	switch {
	case arg < 24:
		return append(buf, mt|byte(arg))
	case arg <= math.MaxUint8:
		return append(buf, mt|24, byte(arg))
	case arg <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(buf, mt|25), uint16(arg))
	case arg <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(buf, mt|26), uint32(arg))
	default:
		return binary.BigEndian.AppendUint64(append(buf, mt|27), arg)
	}
}

// ===== Decoding =====

type decoder struct {
	b     wire.Builder
	depth int
}

// readHead parses a definite-length item head and returns the major type,
// its argument and the bytes that follow it.
func readHead(data []byte) (major byte, arg uint64, rest []byte, err error) {
	if len(data) == 0 {
		return 0, 0, nil, errors.Wrap(errors.ErrCodeCodec, io.ErrUnexpectedEOF, "parse cbor")
	}
	major, info := data[0]>>5, data[0]&0x1f
	data = data[1:]
	var size int
	switch {
	case info < 24:
		return major, uint64(info), data, nil
	case info == 24:
		size = 1
	case info == 25:
		size = 2
	case info == 26:
		size = 4
	case info == 27:
		size = 8
	default:
		return 0, 0, nil, errors.New(errors.ErrCodeCodec, "parse cbor: indefinite-length or reserved item (info %d)", info)
	}
	if len(data) < size {
		return 0, 0, nil, errors.Wrap(errors.ErrCodeCodec, io.ErrUnexpectedEOF, "parse cbor")
	}
	switch size {
	case 1:
		arg = uint64(data[0])
	case 2:
		arg = uint64(binary.BigEndian.Uint16(data))
	case 4:
		arg = uint64(binary.BigEndian.Uint32(data))
	case 8:
		arg = binary.BigEndian.Uint64(data)
	}
	return major, arg, data[size:], nil
}

func (d *decoder) item(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, errors.Wrap(errors.ErrCodeCodec, io.ErrUnexpectedEOF, "parse cbor")
	}
	switch data[0] >> 5 {
	case majorArray:
		return d.array(data)
	case majorMap:
		return d.mapping(data)
	case majorTag:
		return d.tagged(data)
	default:
		return d.scalar(data)
	}
}

func (d *decoder) scalar(data []byte) (any, []byte, error) {
	var v any
	rest, err := decMode.UnmarshalFirst(data, &v)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCodec, err, "parse cbor")
	}
	switch x := v.(type) {
	case nil, bool, int64, float64, string, []byte:
		return x, rest, nil
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), rest, nil
		}
		return x, rest, nil
	default:
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: unsupported value %T", v)
	}
}

func (d *decoder) enter() error {
	d.depth++
	return wire.CheckDepth(d.b, d.depth)
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) array(data []byte) (any, []byte, error) {
	_, n, rest, err := readHead(data)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: array length %d exceeds input", n)
	}
	if err := d.enter(); err != nil {
		return nil, nil, err
	}
	defer d.leave()
	items := make([]any, 0, n)
	for i := uint64(0); i < n; i++ {
		var v any
		v, rest, err = d.item(rest)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, v)
	}
	return items, rest, nil
}

// mapping returns *wire.Props when every key is a text string, *wire.Map
// otherwise.
func (d *decoder) mapping(data []byte) (any, []byte, error) {
	_, n, rest, err := readHead(data)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest))/2 {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: map length %d exceeds input", n)
	}
	if err := d.enter(); err != nil {
		return nil, nil, err
	}
	defer d.leave()
	m := &wire.Map{}
	for i := uint64(0); i < n; i++ {
		var k, v any
		if k, rest, err = d.item(rest); err != nil {
			return nil, nil, err
		}
		if v, rest, err = d.item(rest); err != nil {
			return nil, nil, err
		}
		m.Add(k, v)
	}
	if p, ok := m.ToProps(); ok {
		return p, rest, nil
	}
	return m, rest, nil
}

// tagged decodes a record. The type name is admitted before the property
// map is decoded.
func (d *decoder) tagged(data []byte) (any, []byte, error) {
	_, num, rest, err := readHead(data)
	if err != nil {
		return nil, nil, err
	}
	if num != TagRecord {
		return nil, nil, errors.Disallowed(fmt.Sprintf("cbor:%d", num))
	}

	major, n, rest, err := readHead(rest)
	if err != nil {
		return nil, nil, err
	}
	if major != majorArray || n != 2 {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: record must be a [type, properties] array")
	}
	var tagVal any
	if tagVal, rest, err = d.scalar(rest); err != nil {
		return nil, nil, err
	}
	tag, ok := tagVal.(string)
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: record type must be a text string")
	}
	if err := d.b.Admit(tag); err != nil {
		return nil, nil, err
	}
	if len(rest) == 0 || rest[0]>>5 != majorMap {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: properties of %q must be a map", tag)
	}
	var pv any
	if pv, rest, err = d.mapping(rest); err != nil {
		return nil, nil, err
	}
	props, ok := pv.(*wire.Props)
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeCodec, "parse cbor: properties of %q must have text keys", tag)
	}
	v, err := d.b.Build(tag, props)
	if err != nil {
		return nil, nil, err
	}
	return v, rest, nil
}
