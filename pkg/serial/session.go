package serial

import (
	"context"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/schema"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// Session is the state of one top-level Serialize or Deserialize call and
// every call nested inside its hooks.
//
// A session keeps two stacks: one frame per dump or load in progress (the
// reference table or restoration map of that pass), and the trust level of
// every load in progress. Both are pushed on entry and popped on every exit
// path, so a failed nested call never leaves state behind.
//
// A Session belongs to the goroutine that created it and must not be shared.
// Concurrent callers each get their own session.
type Session struct {
	id      string
	ctx     context.Context
	schemas *schema.Registry
	formats *format.Registry
	logger  *log.Logger

	frames []*frame
	safe   []bool
}

type sessionKey struct{}

// NewSession creates a session. Only the session-wide options (WithRegistry,
// WithFormats, WithLogger) are used.
func NewSession(ctx context.Context, opts ...Option) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	o := collect(opts)
	s := &Session{
		id:      uuid.NewString(),
		schemas: o.schemas,
		formats: o.formats,
		logger:  o.logger,
	}
	if s.schemas == nil {
		s.schemas = schema.Default()
	}
	if s.formats == nil {
		s.formats = format.Default()
	}
	if s.logger == nil {
		s.logger = logging.FromContext(ctx)
	}
	s.logger = s.logger.With("session", s.id[:8])
	s.ctx = context.WithValue(ctx, sessionKey{}, s)
	return s
}

// FromContext returns the session carried by ctx, or nil.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// sessionFor joins the session in ctx or starts a new one.
func sessionFor(ctx context.Context, opts []Option) *Session {
	if s := FromContext(ctx); s != nil {
		return s
	}
	return NewSession(ctx, opts...)
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Context returns a context carrying the session. Package-level calls made
// with it join the session.
func (s *Session) Context() context.Context { return s.ctx }

// Logger returns the session logger.
func (s *Session) Logger() *log.Logger { return s.logger }

// Registry returns the schema registry the session decodes with.
func (s *Session) Registry() *schema.Registry { return s.schemas }

// Formats returns the format registry the session uses.
func (s *Session) Formats() *format.Registry { return s.formats }

// Safe reports whether the innermost load in progress is safe.
func (s *Session) Safe() bool {
	return len(s.safe) > 0 && s.safe[len(s.safe)-1]
}

// Depth returns the number of dumps and loads in progress.
func (s *Session) Depth() int { return len(s.frames) }

// ===== Frames =====

type frameKind int

const (
	dumpFrame frameKind = iota
	loadFrame
)

type visit struct {
	typ reflect.Type
	ptr uintptr
}

type frame struct {
	kind     frameKind
	format   string
	maxDepth int
	depth    int

	// dump
	refs   *identity.RefTable
	active map[visit]bool

	// load
	restore  *identity.RestorationMap
	restored []any
	safe     bool
	safeTags []string
}

func (s *Session) push(f *frame) {
	s.frames = append(s.frames, f)
	if f.kind == loadFrame {
		s.safe = append(s.safe, f.safe)
	}
	s.logger.Debug("frame pushed", "depth", len(s.frames), "format", f.format, "safe", f.safe)
}

func (s *Session) pop(f *frame) {
	s.frames = s.frames[:len(s.frames)-1]
	if f.kind == loadFrame {
		s.safe = s.safe[:len(s.safe)-1]
	}
	s.logger.Debug("frame popped", "depth", len(s.frames))
}

// innermost returns the innermost frame of the given kind.
func (s *Session) innermost(kind frameKind) *frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].kind == kind {
			return s.frames[i]
		}
	}
	return nil
}

// Owner returns the object restored by the innermost load that owns id.
// Finalizers use it to turn references back into objects.
func (s *Session) Owner(id *identity.ID) (any, bool) {
	f := s.innermost(loadFrame)
	if f == nil || id == nil {
		return nil, false
	}
	return f.restore.Owner(id)
}

// ===== Default property hooks =====

// WriteProperties puts the effective schema of obj into props, skipping
// excluded names. It is the default [ForSerializer] behavior.
func (s *Session) WriteProperties(obj any, props *wire.Props, excluded ...string) error {
	t, ok := s.schemas.TypeOf(obj)
	if !ok {
		return errors.New(errors.ErrCodeUnsupported, "%T has no schema", obj)
	}
	for _, b := range t.Bindings() {
		if containsString(excluded, b.Name) {
			continue
		}
		props.Add(b.Name, b.Get(obj))
	}
	return nil
}

// ReadProperties assigns every effective-schema property found in props.
// Missing keys are left alone and unknown keys are ignored, so a property a
// type excludes is never assigned. It is the default [FromSerializer]
// behavior.
func (s *Session) ReadProperties(obj any, props *wire.Props) error {
	t, ok := s.schemas.TypeOf(obj)
	if !ok {
		return errors.New(errors.ErrCodeUnsupported, "%T has no schema", obj)
	}
	for _, b := range t.Bindings() {
		v, ok := props.ValueByKeyTry(b.Name)
		if !ok {
			continue
		}
		if err := b.Set(obj, v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s.%s", t.Tag(), b.Name)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
