package serial

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/format"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/observability"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// =============================================================================
// Package-level entry points
// =============================================================================

// Serialize renders v in the selected format. A context that already carries
// a session (see [Session.Context]) joins it; otherwise a new session starts.
func Serialize(ctx context.Context, v any, opts ...Option) ([]byte, error) {
	return sessionFor(ctx, opts).Serialize(v, opts...)
}

// SerializeTo renders v to w.
func SerializeTo(ctx context.Context, w io.Writer, v any, opts ...Option) error {
	return sessionFor(ctx, opts).SerializeTo(w, v, opts...)
}

// Deserialize restores an object graph from data. Use [DeserializeSafe] for
// anything that did not come from a trusted source.
func Deserialize(ctx context.Context, data []byte, opts ...Option) (any, error) {
	return sessionFor(ctx, opts).Deserialize(data, opts...)
}

// DeserializeFrom restores an object graph read from r.
func DeserializeFrom(ctx context.Context, r io.Reader, opts ...Option) (any, error) {
	return sessionFor(ctx, opts).DeserializeFrom(r, opts...)
}

// DeserializeSafe restores an object graph from untrusted data. Only
// allow-listed types are instantiated; any other tag fails with a
// DISALLOWED_CLASS error and nothing is returned.
func DeserializeSafe(ctx context.Context, data []byte, opts ...Option) (any, error) {
	return Deserialize(ctx, data, append(opts, Safe())...)
}

// DeserializeAs restores an object graph and converts the top-level value
// to T. A restored *T converts to T.
func DeserializeAs[T any](ctx context.Context, data []byte, opts ...Option) (T, error) {
	var zero T
	v, err := Deserialize(ctx, data, opts...)
	if err != nil {
		return zero, err
	}
	out, err := wire.As[T](v)
	if err != nil {
		return zero, errors.Wrap(errors.ErrCodeInvalidInput, err, "top-level value")
	}
	return out, nil
}

// Inspect parses data into a raw wire tree without instantiating anything.
// Tagged values come back as *wire.Record, references as ID records.
func Inspect(ctx context.Context, data []byte, opts ...Option) (any, error) {
	s := sessionFor(ctx, opts)
	o := collect(opts)
	engine, err := s.formats.EngineFor(o.format)
	if err != nil {
		return nil, err
	}
	return engine.Load(bytes.NewReader(data), &wire.RecordBuilder{Depth: o.maxDepth})
}

// =============================================================================
// Session calls
// =============================================================================

// Serialize renders v within the session. The dump gets its own reference
// table; identities are numbered from 1.
func (s *Session) Serialize(v any, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.SerializeTo(&buf, v, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTo renders v to w within the session. Nothing is written when
// encoding fails.
func (s *Session) SerializeTo(w io.Writer, v any, opts ...Option) (err error) {
	o := collect(opts)
	engine, err := s.formats.EngineFor(o.format)
	if err != nil {
		return err
	}

	start := time.Now()
	observability.Serial().OnDumpStart(s.ctx, engine.Name())
	var buf bytes.Buffer
	defer func() {
		observability.Serial().OnDumpComplete(s.ctx, engine.Name(), buf.Len(), time.Since(start), err)
	}()

	f := &frame{
		kind:     dumpFrame,
		format:   engine.Name(),
		maxDepth: depthLimit(o.maxDepth),
		refs:     identity.NewRefTable(),
		active:   make(map[visit]bool),
	}
	s.push(f)
	defer s.pop(f)

	tree, ok, err := s.encode(f, v, o.excluded)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "top-level %T is serialize-disabled", v)
	}
	if err := engine.Dump(&buf, tree, o.pretty); err != nil {
		return err
	}
	s.logger.Debug("dump complete", "format", engine.Name(), "bytes", buf.Len(), "refs", f.refs.Len())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(errors.ErrCodeCodec, err, "write %s output", engine.Name())
	}
	return nil
}

// Deserialize restores an object graph within the session.
func (s *Session) Deserialize(data []byte, opts ...Option) (any, error) {
	return s.DeserializeFrom(bytes.NewReader(data), opts...)
}

// DeserializeFrom restores an object graph read from r within the session.
//
// The load gets a fresh restoration map, so references never resolve across
// loads. Its trust level is the caller's request tightened by the enclosing
// load: inside a safe load every nested load is safe.
func (s *Session) DeserializeFrom(r io.Reader, opts ...Option) (v any, err error) {
	o := collect(opts)
	engine, err := s.formats.EngineFor(o.format)
	if err != nil {
		return nil, err
	}

	f := &frame{
		kind:     loadFrame,
		format:   engine.Name(),
		maxDepth: depthLimit(o.maxDepth),
		restore:  identity.NewRestorationMap(),
		safe:     o.safe || s.Safe(),
		safeTags: format.SafeTags(engine),
	}

	start := time.Now()
	observability.Serial().OnLoadStart(s.ctx, engine.Name(), f.safe)
	defer func() {
		observability.Serial().OnLoadComplete(s.ctx, engine.Name(), len(f.restored), time.Since(start), err)
	}()

	s.push(f)
	defer s.pop(f)

	l := &loader{s: s, f: f}
	v, err = engine.Load(r, l)
	if err != nil {
		return nil, err
	}
	if err := l.finish(o.strict); err != nil {
		return nil, err
	}
	s.logger.Debug("load complete", "format", engine.Name(), "objects", len(f.restored), "refs", f.restore.Len())
	return v, nil
}

func depthLimit(n int) int {
	if n > 0 {
		return n
	}
	return wire.DefaultMaxDepth
}
