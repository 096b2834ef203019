// Package identity provides surrogate identity tokens for shared and cyclic
// references inside one serialized object graph.
//
// An [ID] is an opaque token owned by one logical object. Objects that point
// at another object store that object's ID instead of embedding it, and the
// engine writes the ID as a reference record:
//
//	{"@type": "ID", "@properties": {"ref": 3}}
//
// Reference keys are per pass: a [RefTable] numbers IDs while dumping, and a
// [RestorationMap] maps the numbers back to exactly one ID per key while
// loading. Neither value carries meaning across passes.
package identity

import (
	"fmt"
	"maps"
	"slices"
)

// ID is an opaque identity token. Two IDs are equal only if they are the
// same pointer.
type ID struct {
	// Non-zero size, so distinct allocations never share an address.
	_ byte
}

// New returns a fresh identity.
func New() *ID {
	return &ID{}
}

func (id *ID) String() string {
	return fmt.Sprintf("ID(%p)", id)
}

// Owner is implemented by objects that own an identity.
type Owner interface {
	Identity() *ID
}

// RefTable assigns sequential reference keys to IDs during one dump.
// Keys start at 1.
type RefTable struct {
	refs map[*ID]int64
	next int64
}

// NewRefTable returns an empty table.
func NewRefTable() *RefTable {
	return &RefTable{refs: make(map[*ID]int64), next: 1}
}

// Ref returns the key for id, assigning the next one on first use.
func (t *RefTable) Ref(id *ID) int64 {
	if ref, ok := t.refs[id]; ok {
		return ref
	}
	ref := t.next
	t.refs[id] = ref
	t.next++
	return ref
}

// Len returns the number of distinct IDs seen.
func (t *RefTable) Len() int {
	return len(t.refs)
}

// RestorationMap resolves reference keys to IDs during one load. Each key
// resolves to exactly one ID for the map's lifetime.
type RestorationMap struct {
	ids   map[int64]*ID
	order []int64
	owned map[*ID]any
}

// NewRestorationMap returns an empty map.
func NewRestorationMap() *RestorationMap {
	return &RestorationMap{
		ids:   make(map[int64]*ID),
		owned: make(map[*ID]any),
	}
}

// Resolve returns the ID recorded for ref. An unseen key creates and records
// a new ID; the reference may be a forward reference to an owner that has not
// been restored yet, or it may never get an owner at all (see [RestorationMap.Unowned]).
func (m *RestorationMap) Resolve(ref int64) (id *ID, created bool) {
	if id, ok := m.ids[ref]; ok {
		return id, false
	}
	id = New()
	m.ids[ref] = id
	m.order = append(m.order, ref)
	return id, true
}

// Lookup returns the ID recorded for ref without creating one.
func (m *RestorationMap) Lookup(ref int64) (*ID, bool) {
	id, ok := m.ids[ref]
	return id, ok
}

// Claim records obj as the owner of id.
func (m *RestorationMap) Claim(id *ID, obj any) {
	if id == nil {
		return
	}
	m.owned[id] = obj
}

// Owner returns the restored object that owns id.
func (m *RestorationMap) Owner(id *ID) (any, bool) {
	obj, ok := m.owned[id]
	return obj, ok
}

// Len returns the number of distinct reference keys seen.
func (m *RestorationMap) Len() int {
	return len(m.ids)
}

// Unowned returns, in first-seen order, the keys whose ID no restored
// object claimed.
func (m *RestorationMap) Unowned() []int64 {
	var refs []int64
	for _, ref := range m.order {
		if _, ok := m.owned[m.ids[ref]]; !ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Refs returns every key seen, sorted.
func (m *RestorationMap) Refs() []int64 {
	return slices.Sorted(maps.Keys(m.ids))
}
