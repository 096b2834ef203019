package serial

import (
	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/observability"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// loader is the wire.Builder of one load frame. It is the only place a tag
// turns into an instance.
type loader struct {
	s *Session
	f *frame
}

var _ wire.Builder = (*loader)(nil)

// Admit implements wire.Builder. In safe mode only allow-listed tags and the
// engine's own adapter tags pass; otherwise any registered tag does.
func (l *loader) Admit(tag string) error {
	if tag == wire.TagID {
		return nil
	}
	if l.f.safe && !l.s.schemas.Allowed(tag) && !containsString(l.f.safeTags, tag) {
		l.s.logger.Warn("disallowed class", "tag", tag, "format", l.f.format)
		observability.Serial().OnDisallowed(l.s.ctx, l.f.format, tag)
		return errors.Disallowed(tag)
	}
	if _, ok := l.s.schemas.Lookup(tag); !ok {
		return errors.New(errors.ErrCodeUnknownType, "no type registered for tag %q", tag)
	}
	return nil
}

// Build implements wire.Builder.
func (l *loader) Build(tag string, props *wire.Props) (any, error) {
	if tag == wire.TagID {
		return l.reference(props)
	}
	t, ok := l.s.schemas.Lookup(tag)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownType, "no type registered for tag %q", tag)
	}

	obj, err := t.New(props)
	if err != nil {
		return nil, err
	}
	if fs, ok := obj.(FromSerializer); ok {
		err = fs.FromSerialized(l.s, props)
	} else {
		err = l.s.ReadProperties(obj, props)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "restore %s", tag)
	}

	if o, ok := obj.(Owner); ok {
		l.f.restore.Claim(o.Identity(), obj)
	}
	l.f.restored = append(l.f.restored, obj)
	return obj, nil
}

// MaxDepth implements wire.Builder.
func (l *loader) MaxDepth() int {
	return l.f.maxDepth
}

// reference resolves an ID record through the frame's restoration map: every
// record with the same key yields the same *identity.ID.
func (l *loader) reference(props *wire.Props) (*identity.ID, error) {
	raw, ok := props.ValueByKeyTry("ref")
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedReference, "ID record without ref")
	}
	ref, err := wire.As[int64](raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedReference, err, "ID ref %v", raw)
	}
	id, created := l.f.restore.Resolve(ref)
	if created {
		l.s.logger.Debug("reference resolved", "ref", ref)
	}
	return id, nil
}

// finish runs the finalize hooks of the frame's restored objects, in
// restoration order, then checks for references without an owner.
func (l *loader) finish(strict bool) error {
	for _, obj := range l.f.restored {
		fin, ok := obj.(Finalizer)
		if !ok {
			continue
		}
		if err := fin.FinalizeFromSerialized(l.s); err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.ErrCodeInvalidInput
			}
			return errors.Wrap(code, err, "finalize %T", obj)
		}
	}

	unowned := l.f.restore.Unowned()
	for _, ref := range unowned {
		l.s.logger.Debug("placeholder identity without owner", "ref", ref)
	}
	if strict && len(unowned) > 0 {
		return errors.New(errors.ErrCodeMalformedReference, "references without owner: %v", unowned)
	}
	return nil
}
