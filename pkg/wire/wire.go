package wire

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"cogentcore.org/core/base/ordmap"
)

// Built-in tags understood by every engine.
const (
	// TagID marks an identity reference record.
	TagID = "ID"

	// TagMap marks the adapter used by text formats for mappings with
	// non-string keys.
	TagMap = "Map"

	// TagBytes marks the adapter used by formats without a native binary type.
	TagBytes = "Bytes"
)

// Envelope keys used by formats that spell records as plain mappings.
const (
	KeyType       = "@type"
	KeyProperties = "@properties"
)

// DefaultMaxDepth bounds nesting on load unless a caller overrides it.
const DefaultMaxDepth = 512

// Props is an ordered string-keyed property container.
type Props = ordmap.Map[string, any]

// NewProps returns an empty property container.
func NewProps() *Props {
	return ordmap.New[string, any]()
}

// PropsOf builds a property container from alternating key/value arguments.
// It panics on an odd argument count or a non-string key; it is meant for
// literals in code and tests.
func PropsOf(kv ...any) *Props {
	if len(kv)%2 != 0 {
		panic("wire.PropsOf: odd number of arguments")
	}
	p := NewProps()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("wire.PropsOf: key %v is not a string", kv[i]))
		}
		p.Add(k, kv[i+1])
	}
	return p
}

// Record is a tagged object: the wire envelope of every declared-schema value.
type Record struct {
	Type  string
	Props *Props
}

// NewRecord returns a record with an empty property container.
func NewRecord(tag string) *Record {
	return &Record{Type: tag, Props: NewProps()}
}

// Get returns the named property.
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.Props == nil {
		return nil, false
	}
	return r.Props.ValueByKeyTry(name)
}

func (r *Record) String() string {
	return fmt.Sprintf("%s%v", r.Type, r.Props)
}

// Entry is one key/value pair of a [Map].
type Entry struct {
	Key   any
	Value any
}

// Map is an insertion-ordered mapping whose keys are not all strings.
type Map struct {
	Entries []Entry
}

// Add appends an entry.
func (m *Map) Add(key, value any) {
	m.Entries = append(m.Entries, Entry{Key: key, Value: value})
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Lookup returns the value of the first entry whose key equals key.
// Keys are compared with == when comparable.
func (m *Map) Lookup(key any) (any, bool) {
	for _, e := range m.Entries {
		if comparableEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// SortEntries orders entries by key. Numbers and strings compare by value;
// other keys, and keys of different types, by their textual form. Encoders
// use it to give unordered Go maps a deterministic rendering.
func (m *Map) SortEntries() {
	slices.SortStableFunc(m.Entries, func(a, b Entry) int {
		return compareKeys(a.Key, b.Key)
	})
}

func compareKeys(a, b any) int {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// StringKeys reports whether every key of m is a string.
func (m *Map) StringKeys() bool {
	for _, e := range m.Entries {
		if _, ok := e.Key.(string); !ok {
			return false
		}
	}
	return true
}

// ToProps converts a string-keyed Map into a property container.
// The boolean result is false if some key is not a string.
func (m *Map) ToProps() (*Props, bool) {
	p := NewProps()
	for _, e := range m.Entries {
		k, ok := e.Key.(string)
		if !ok {
			return nil, false
		}
		p.Add(k, e.Value)
	}
	return p, true
}
