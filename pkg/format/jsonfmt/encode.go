package jsonfmt

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

var (
	compactAPI = jsoniter.Config{EscapeHTML: false}.Froze()
	prettyAPI  = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()
)

func dump(w io.Writer, tree any, pretty bool) error {
	api := compactAPI
	if pretty {
		api = prettyAPI
	}
	stream := jsoniter.NewStream(api, w, 4096)
	enc := &encoder{stream: stream}
	if err := enc.value(tree); err != nil {
		return err
	}
	if pretty {
		stream.WriteRaw("\n")
	}
	if err := stream.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "write json")
	}
	if stream.Error != nil {
		return errors.Wrap(errors.ErrCodeCodec, stream.Error, "write json")
	}
	return nil
}

type encoder struct {
	stream *jsoniter.Stream
}

func (e *encoder) value(v any) error {
	s := e.stream
	switch v := v.(type) {
	case nil:
		s.WriteNil()
	case bool:
		s.WriteBool(v)
	case int64:
		s.WriteInt64(v)
	case uint64:
		s.WriteUint64(v)
	case float64:
		return e.float(v)
	case string:
		s.WriteString(v)
	case []byte:
		return e.envelope(wire.TagBytes, func() error {
			s.WriteObjectStart()
			s.WriteObjectField(keyData)
			s.WriteString(base64.StdEncoding.EncodeToString(v))
			s.WriteObjectEnd()
			return nil
		})
	case []any:
		return e.array(v)
	case *wire.Props:
		if _, reserved := v.ValueByKeyTry(wire.KeyType); reserved {
			return e.mapAdapter(propsEntries(v))
		}
		return e.props(v)
	case *wire.Map:
		return e.mapAdapter(v.Entries)
	case *wire.Record:
		return e.envelope(v.Type, func() error { return e.props(v.Props) })
	default:
		return errors.New(errors.ErrCodeCodec, "json: unsupported wire value %T", v)
	}
	return nil
}

// float keeps a decimal point on whole numbers so they decode as floats.
func (e *encoder) float(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New(errors.ErrCodeCodec, "json: cannot encode %v", f)
	}
	buf := strconv.AppendFloat(nil, f, 'g', -1, 64)
	if isIntegral(buf) {
		buf = append(buf, '.', '0')
	}
	e.stream.WriteRaw(string(buf))
	return nil
}

func isIntegral(num []byte) bool {
	for _, c := range num {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

func (e *encoder) array(items []any) error {
	s := e.stream
	if len(items) == 0 {
		s.WriteEmptyArray()
		return nil
	}
	s.WriteArrayStart()
	for i, item := range items {
		if i > 0 {
			s.WriteMore()
		}
		if err := e.value(item); err != nil {
			return err
		}
	}
	s.WriteArrayEnd()
	return nil
}

func (e *encoder) props(p *wire.Props) error {
	s := e.stream
	if p == nil || p.Len() == 0 {
		s.WriteEmptyObject()
		return nil
	}
	s.WriteObjectStart()
	for i, kv := range p.Order {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteObjectField(kv.Key)
		if err := e.value(kv.Value); err != nil {
			return err
		}
	}
	s.WriteObjectEnd()
	return nil
}

func (e *encoder) envelope(tag string, body func() error) error {
	s := e.stream
	s.WriteObjectStart()
	s.WriteObjectField(wire.KeyType)
	s.WriteString(tag)
	s.WriteMore()
	s.WriteObjectField(wire.KeyProperties)
	if err := body(); err != nil {
		return err
	}
	s.WriteObjectEnd()
	return nil
}

// mapAdapter writes {"@type":"Map","@properties":{"entries":[[k,v],...]}}.
func (e *encoder) mapAdapter(entries []wire.Entry) error {
	s := e.stream
	return e.envelope(wire.TagMap, func() error {
		s.WriteObjectStart()
		s.WriteObjectField(keyEntries)
		if len(entries) == 0 {
			s.WriteEmptyArray()
		} else {
			s.WriteArrayStart()
			for i, entry := range entries {
				if i > 0 {
					s.WriteMore()
				}
				if err := e.array([]any{entry.Key, entry.Value}); err != nil {
					return err
				}
			}
			s.WriteArrayEnd()
		}
		s.WriteObjectEnd()
		return nil
	})
}

func propsEntries(p *wire.Props) []wire.Entry {
	entries := make([]wire.Entry, 0, p.Len())
	for _, kv := range p.Order {
		entries = append(entries, wire.Entry{Key: kv.Key, Value: kv.Value})
	}
	return entries
}
