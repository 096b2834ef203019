package schema

import (
	"reflect"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// builtinTags are instantiable in every mode. ID records never allocate an
// application type: they resolve through the session's restoration map.
var builtinTags = []string{wire.TagID}

// reservedTags cannot be claimed by application types.
var reservedTags = []string{wire.TagID, wire.TagMap, wire.TagBytes}

// Registry maps type tags and Go types to their schemas. It is the only place
// the decoder consults to turn a tag into a factory.
type Registry struct {
	mu        sync.RWMutex
	byTag     map[string]*Type
	byGo      map[reflect.Type]*Type
	permitted map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byTag:     make(map[string]*Type),
		byGo:      make(map[reflect.Type]*Type),
		permitted: make(map[string]struct{}),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by [Define].
func Default() *Registry {
	return defaultRegistry
}

// Register adds a sealed type. Tags and Go types are unique per registry.
func (r *Registry) Register(t *Type) error {
	if t == nil || t.index == nil {
		return errors.New(errors.ErrCodeSchema, "register: type is not sealed")
	}
	if lo.Contains(reservedTags, t.tag) {
		return errors.New(errors.ErrCodeSchema, "register: tag %q is reserved", t.tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byTag[t.tag]; ok {
		return errors.New(errors.ErrCodeSchema, "register: tag %q already bound to %s", t.tag, existing.rtype)
	}
	if existing, ok := r.byGo[t.rtype]; ok {
		return errors.New(errors.ErrCodeSchema, "register: %s already registered as %q", t.rtype, existing.tag)
	}
	r.byTag[t.tag] = t
	r.byGo[t.rtype] = t
	return nil
}

// Lookup returns the type registered under tag.
func (r *Registry) Lookup(tag string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byTag[tag]
	return t, ok
}

// TypeOf returns the schema for v's dynamic type. Both T and *T resolve to
// the schema defined for T.
func (r *Registry) TypeOf(v any) (*Type, bool) {
	if v == nil {
		return nil, false
	}
	return r.ForGoType(reflect.TypeOf(v))
}

// ForGoType returns the schema for rt, dereferencing one pointer level.
func (r *Registry) ForGoType(rt reflect.Type) (*Type, bool) {
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byGo[rt]
	return t, ok
}

// Permit adds tags to the safe allow-list without registering a type. Codecs
// use it for their own adapter records.
func (r *Registry) Permit(tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tags {
		r.permitted[tag] = struct{}{}
	}
}

// Allowed reports whether tag may be instantiated from untrusted input: a
// built-in tag, a permitted tag, or a registered type that is not restricted.
func (r *Registry) Allowed(tag string) bool {
	if lo.Contains(builtinTags, tag) {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.permitted[tag]; ok {
		return true
	}
	t, ok := r.byTag[tag]
	return ok && !t.restricted
}

// AllowList returns the sorted safe allow-list.
func (r *Registry) AllowList() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := slices.Clone(builtinTags)
	tags = append(tags, lo.Keys(r.permitted)...)
	for tag, t := range r.byTag {
		if !t.restricted {
			tags = append(tags, tag)
		}
	}
	tags = lo.Uniq(tags)
	slices.Sort(tags)
	return tags
}

// Tags returns every registered tag, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := lo.Keys(r.byTag)
	slices.Sort(tags)
	return tags
}

// Types returns every registered type ordered by tag.
func (r *Registry) Types() []*Type {
	tags := r.Tags()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(tags, func(tag string, _ int) *Type { return r.byTag[tag] })
}
