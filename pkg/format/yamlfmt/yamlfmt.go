// Package yamlfmt implements the yaml format engine on top of the yaml.v3
// node API.
//
// Records are mappings carrying a local tag:
//
//	!geom.Point {x: 10.0, y: 90.0}
//
// Decoding is restricted. Core tags (!!str, !!int, !!map, ...) decode to
// plain values; a local tag is handed to the builder's gate before its
// mapping is read; any other tag is refused as a disallowed class. Anchors
// and aliases are rejected outright: object identity is carried only by ID
// records, exactly as in the other engines.
package yamlfmt

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

const (
	tagNull   = "!!null"
	tagBool   = "!!bool"
	tagInt    = "!!int"
	tagFloat  = "!!float"
	tagStr    = "!!str"
	tagBinary = "!!binary"
	tagTime   = "!!timestamp"
	tagSeq    = "!!seq"
	tagMap    = "!!map"
	tagMerge  = "!!merge"
)

// Engine is the yaml format engine.
type Engine struct{}

// New returns the yaml engine.
func New() *Engine {
	return &Engine{}
}

// Name implements format.Engine.
func (e *Engine) Name() string { return "yaml" }

// Dump implements format.Engine. A compact dump uses flow style.
func (e *Engine) Dump(w io.Writer, tree any, pretty bool) error {
	node, err := encode(tree)
	if err != nil {
		return err
	}
	if !pretty && (node.Kind == yaml.MappingNode || node.Kind == yaml.SequenceNode) {
		node.Style |= yaml.FlowStyle
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "write yaml")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "write yaml")
	}
	return nil
}

// Load implements format.Engine. Only the first document is read; a second
// document is an error.
func (e *Engine) Load(r io.Reader, b wire.Builder) (any, error) {
	dec := yaml.NewDecoder(r)
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrCodeCodec, "parse yaml: empty document")
		}
		return nil, errors.Wrap(errors.ErrCodeCodec, err, "parse yaml")
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err != io.EOF {
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "parse yaml")
		}
		return nil, errors.New(errors.ErrCodeCodec, "parse yaml: more than one document")
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	d := &decoder{b: b}
	v, err := d.value(root)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ===== Encoding =====

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func encode(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case nil:
		return scalar(tagNull, "null"), nil
	case bool:
		return scalar(tagBool, strconv.FormatBool(v)), nil
	case int64:
		return scalar(tagInt, strconv.FormatInt(v, 10)), nil
	case uint64:
		return scalar(tagInt, strconv.FormatUint(v, 10)), nil
	case float64:
		return scalar(tagFloat, formatFloat(v)), nil
	case string:
		return scalar(tagStr, v), nil
	case []byte:
		return scalar(tagBinary, base64.StdEncoding.EncodeToString(v)), nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
		for _, item := range v {
			child, err := encode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case *wire.Props:
		return encodeProps(v, tagMap)
	case *wire.Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
		for _, e := range v.Entries {
			k, err := encode(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := encode(e.Value)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, k, val)
		}
		return node, nil
	case *wire.Record:
		return encodeProps(v.Props, "!"+v.Type)
	default:
		return nil, errors.New(errors.ErrCodeCodec, "yaml: unsupported wire value %T", v)
	}
}

func encodeProps(p *wire.Props, tag string) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: tag}
	if p == nil {
		return node, nil
	}
	for _, kv := range p.Order {
		val, err := encode(kv.Value)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, scalar(tagStr, kv.Key), val)
	}
	return node, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ===== Decoding =====

type decoder struct {
	b     wire.Builder
	depth int
}

func (d *decoder) enter() error {
	d.depth++
	return wire.CheckDepth(d.b, d.depth)
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) value(n *yaml.Node) (any, error) {
	if n.Kind == yaml.AliasNode {
		return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: aliases are disabled", n.Line)
	}
	if n.Anchor != "" {
		return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: anchors are disabled", n.Line)
	}

	tag := n.ShortTag()
	if local, ok := localTag(tag); ok {
		return d.record(n, local)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n, tag)
	case yaml.SequenceNode:
		if tag != tagSeq {
			return nil, errors.Disallowed(tag)
		}
		return d.sequence(n)
	case yaml.MappingNode:
		if tag != tagMap {
			return nil, errors.Disallowed(tag)
		}
		return d.mapping(n)
	default:
		return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: unexpected node kind %v", n.Line, n.Kind)
	}
}

// localTag reports whether tag is a local "!name" tag and returns name.
func localTag(tag string) (string, bool) {
	if strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!") {
		return tag[1:], true
	}
	return "", false
}

func (d *decoder) scalar(n *yaml.Node, tag string) (any, error) {
	switch tag {
	case tagNull:
		return nil, nil
	case tagStr, tagTime:
		return n.Value, nil
	case tagBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "yaml")
		}
		return b, nil
	case tagInt:
		var i int64
		if err := n.Decode(&i); err == nil {
			return i, nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "yaml")
		}
		return u, nil
	case tagFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "yaml")
		}
		return f, nil
	case tagBinary:
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "yaml: line %d: binary", n.Line)
		}
		return data, nil
	default:
		return nil, errors.Disallowed(tag)
	}
}

func (d *decoder) sequence(n *yaml.Node) (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()
	items := make([]any, 0, len(n.Content))
	for _, child := range n.Content {
		v, err := d.value(child)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// mapping returns *wire.Props when every key is a string, *wire.Map otherwise.
func (d *decoder) mapping(n *yaml.Node) (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()
	m := &wire.Map{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].ShortTag() == tagMerge {
			return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: merge keys are disabled", n.Content[i].Line)
		}
		k, err := d.value(n.Content[i])
		if err != nil {
			return nil, err
		}
		v, err := d.value(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Add(k, v)
	}
	if p, ok := m.ToProps(); ok {
		return p, nil
	}
	return m, nil
}

// record admits tag before looking at the node's content.
func (d *decoder) record(n *yaml.Node, tag string) (any, error) {
	if err := d.b.Admit(tag); err != nil {
		return nil, err
	}
	var props *wire.Props
	switch {
	case n.Kind == yaml.MappingNode:
		v, err := d.mapping(n)
		if err != nil {
			return nil, err
		}
		p, ok := v.(*wire.Props)
		if !ok {
			return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: properties of !%s must have string keys", n.Line, tag)
		}
		props = p
	case n.Kind == yaml.ScalarNode && n.Value == "":
		props = wire.NewProps()
	default:
		return nil, errors.New(errors.ErrCodeCodec, "yaml: line %d: !%s must tag a mapping", n.Line, tag)
	}
	return d.b.Build(tag, props)
}
