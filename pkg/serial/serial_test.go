package serial

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/observability"
	"github.com/matzehuels/shapeserial/pkg/schema"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// =============================================================================
// Test types
// =============================================================================

type point struct {
	X, Y float64
}

type node struct {
	ID   *identity.ID
	Name string
}

func (n *node) Identity() *identity.ID { return n.ID }

type link struct {
	Src    *identity.ID
	Target *node
}

func (l *link) FinalizeFromSerialized(s *Session) error {
	obj, ok := s.Owner(l.Src)
	if !ok {
		return fmt.Errorf("no owner for %v", l.Src)
	}
	l.Target = obj.(*node)
	return nil
}

type base struct {
	A int
	B string
	C float64
}

type derived struct {
	base
	D float64
}

type secret struct {
	Value string
}

type chain struct {
	Next *chain
}

type handle struct{}

func (*handle) SerializeDisabled() bool { return true }

type holder struct {
	Name    string
	Handle  *handle
	Handles []any
}

// envelope carries a serialized payload and restores it through the session
// while its own load is in progress.
type envelope struct {
	Payload string
	Safe    bool
	Inner   any
	Depth   int
}

func (e *envelope) FromSerialized(s *Session, props *wire.Props) error {
	if err := s.ReadProperties(e, props); err != nil {
		return err
	}
	e.Depth = s.Depth()
	var opts []Option
	if e.Safe {
		opts = append(opts, Safe())
	}
	inner, err := s.Deserialize([]byte(e.Payload), opts...)
	if err != nil {
		return err
	}
	e.Inner = inner
	return nil
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	must := func(_ *schema.Type, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(schema.DefineIn[point](r, "test.Point", schema.DeclareFields("x", "y")))
	must(schema.DefineIn[node](r, "test.Node", schema.DeclareFields("id", "name")))
	must(schema.DefineIn[link](r, "test.Link", schema.DeclareFields("src")))
	c, err := schema.DefineIn[base](r, "test.C", schema.DeclareFields("a", "b", "c"))
	must(c, err)
	must(schema.DefineIn[derived](r, "test.D",
		schema.Extends(c, func(d *derived) *base { return &d.base }),
		schema.Exclude("c"),
		schema.AddFields("d"),
	))
	must(schema.DefineIn[secret](r, "test.Secret", schema.DeclareFields("value"), schema.Restricted()))
	must(schema.DefineIn[chain](r, "test.Chain", schema.DeclareFields("next")))
	must(schema.DefineIn[holder](r, "test.Holder", schema.DeclareFields("name", "handle", "handles")))
	must(schema.DefineIn[envelope](r, "test.Envelope", schema.DeclareFields("payload", "safe")))
	return r
}

var formats = []string{"json", "jsonc", "yaml", "cbor"}

// =============================================================================
// Round trips
// =============================================================================

func TestPointJSON(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	data, err := Serialize(ctx, point{X: 10, Y: 90}, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"@type":"test.Point","@properties":{"x":10.0,"y":90.0}}`
	if string(data) != want {
		t.Errorf("Serialize() = %s, want %s", data, want)
	}

	got, err := DeserializeAs[point](ctx, data, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	if got != (point{X: 10, Y: 90}) {
		t.Errorf("DeserializeAs() = %+v", got)
	}
}

func TestTopLevelScalars(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		in   any
		want any
	}{
		{42, int64(42)},
		{int64(-3), int64(-3)},
		{10.5, 10.5},
		{10.0, 10.0},
		{"s", "s"},
		{true, true},
	}
	for _, name := range formats {
		for _, pretty := range []bool{false, true} {
			for _, tt := range tests {
				data, err := Serialize(ctx, tt.in, Format(name), Pretty(pretty))
				if err != nil {
					t.Fatalf("%s: Serialize(%v) error = %v", name, tt.in, err)
				}
				v, err := Deserialize(ctx, data, Format(name), Safe())
				if err != nil {
					t.Errorf("%s/pretty=%v: Deserialize(%q) error = %v", name, pretty, data, err)
					continue
				}
				if v != tt.want {
					t.Errorf("%s/pretty=%v: %v came back as %#v", name, pretty, tt.in, v)
				}
			}
		}
	}
}

func TestRoundTripAllFormats(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	in := &holder{Name: "h", Handles: []any{&point{X: 1.5, Y: -2}, "text", int64(7), true, nil}}

	for _, name := range formats {
		for _, pretty := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/pretty=%v", name, pretty), func(t *testing.T) {
				data, err := Serialize(ctx, in, WithRegistry(r), Format(name), Pretty(pretty))
				if err != nil {
					t.Fatal(err)
				}
				v, err := Deserialize(ctx, data, WithRegistry(r), Format(name))
				if err != nil {
					t.Fatalf("Deserialize() error = %v\n%s", err, data)
				}
				out, ok := v.(*holder)
				if !ok {
					t.Fatalf("Deserialize() = %T", v)
				}
				if out.Name != "h" || len(out.Handles) != 5 {
					t.Fatalf("holder = %+v", out)
				}
				if p, ok := out.Handles[0].(*point); !ok || *p != (point{X: 1.5, Y: -2}) {
					t.Errorf("Handles[0] = %#v", out.Handles[0])
				}
				if !reflect.DeepEqual(out.Handles[1:], []any{"text", int64(7), true, nil}) {
					t.Errorf("Handles[1:] = %#v", out.Handles[1:])
				}
			})
		}
	}
}

func TestIdentityPreserved(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	id := identity.New()
	a := &node{ID: id, Name: "a"}

	for _, name := range formats {
		t.Run(name, func(t *testing.T) {
			// The link comes first so its reference is resolved before the
			// owner is restored.
			data, err := Serialize(ctx, []any{&link{Src: id}, a, &link{Src: id}}, WithRegistry(r), Format(name))
			if err != nil {
				t.Fatal(err)
			}
			v, err := Deserialize(ctx, data, WithRegistry(r), Format(name), StrictReferences())
			if err != nil {
				t.Fatal(err)
			}
			list := v.([]any)
			first, owner, second := list[0].(*link), list[1].(*node), list[2].(*link)
			if owner.ID == nil || first.Src != owner.ID || second.Src != owner.ID {
				t.Errorf("references not shared: %p %p %p", first.Src, owner.ID, second.Src)
			}
			if owner.ID == id {
				t.Error("restored identity is the original pointer")
			}
			if first.Target != owner || second.Target != owner {
				t.Error("finalizers did not resolve the owner")
			}
		})
	}
}

func TestReferencesNumberedPerDump(t *testing.T) {
	r := testRegistry(t)
	s := NewSession(context.Background(), WithRegistry(r))
	id := identity.New()

	for range 2 {
		data, err := s.Serialize(&link{Src: id})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"ref":1`) {
			t.Errorf("Serialize() = %s, want ref 1", data)
		}
	}
}

// =============================================================================
// Schemas
// =============================================================================

func TestExclusionAndAddition(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	in := &derived{base: base{A: 1, B: "b", C: 3}, D: 4}

	data, err := Serialize(ctx, in, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	tree, err := Inspect(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	rec := tree.(*wire.Record)
	if got, want := rec.Props.Keys(), []string{"a", "b", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("properties = %v, want %v", got, want)
	}

	// c is not assigned even when the input carries it.
	data = []byte(`{"@type":"test.D","@properties":{"a":1,"b":"b","c":3.0,"d":4.0}}`)
	out, err := DeserializeAs[*derived](ctx, data, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	if out.A != 1 || out.B != "b" || out.C != 0 || out.D != 4 {
		t.Errorf("restored = %+v", out)
	}
}

func TestExcluding(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	data, err := Serialize(ctx, &point{X: 1, Y: 2}, WithRegistry(r), Excluding("y"))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"@type":"test.Point","@properties":{"x":1.0}}`; string(data) != want {
		t.Errorf("Serialize() = %s, want %s", data, want)
	}
}

func TestDisabledValuesOmitted(t *testing.T) {
	r := testRegistry(t)
	in := &holder{Name: "h", Handle: &handle{}, Handles: []any{&handle{}, int64(1), &handle{}}}

	data, err := Serialize(context.Background(), in, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"@type":"test.Holder","@properties":{"name":"h","handles":[1]}}`
	if string(data) != want {
		t.Errorf("Serialize() = %s, want %s", data, want)
	}

	_, err = Serialize(context.Background(), &handle{}, WithRegistry(r))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("top-level disabled value: err = %v, want INVALID_INPUT", err)
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestCycle(t *testing.T) {
	r := testRegistry(t)
	c := &chain{}
	c.Next = &chain{Next: c}

	_, err := Serialize(context.Background(), c, WithRegistry(r))
	if !errors.Is(err, errors.ErrCodeCycle) {
		t.Errorf("err = %v, want CYCLE", err)
	}

	// Reaching the same object twice without a cycle is fine.
	shared := &point{X: 1}
	if _, err := Serialize(context.Background(), []any{shared, shared}, WithRegistry(r)); err != nil {
		t.Errorf("shared value: %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	deep := []any{[]any{[]any{[]any{}}}}

	if _, err := Serialize(ctx, deep, WithRegistry(r), MaxDepth(3)); !errors.Is(err, errors.ErrCodeDepthExceeded) {
		t.Errorf("Serialize() err = %v, want DEPTH_EXCEEDED", err)
	}
	if _, err := Deserialize(ctx, []byte(`[[[[]]]]`), WithRegistry(r), MaxDepth(3)); !errors.Is(err, errors.ErrCodeDepthExceeded) {
		t.Errorf("Deserialize() err = %v, want DEPTH_EXCEEDED", err)
	}
}

func TestUnownedReferences(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	data := []byte(`[{"@type":"ID","@properties":{"ref":7}}]`)
	v, err := Deserialize(ctx, data, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.([]any)[0].(*identity.ID); !ok {
		t.Errorf("placeholder = %#v", v)
	}

	if _, err := Deserialize(ctx, data, WithRegistry(r), StrictReferences()); !errors.Is(err, errors.ErrCodeMalformedReference) {
		t.Errorf("strict: err = %v, want MALFORMED_REFERENCE", err)
	}

	bad := []byte(`{"@type":"ID","@properties":{"ref":"x"}}`)
	if _, err := Deserialize(ctx, bad, WithRegistry(r)); !errors.Is(err, errors.ErrCodeMalformedReference) {
		t.Errorf("bad ref: err = %v, want MALFORMED_REFERENCE", err)
	}
}

func TestUnknownType(t *testing.T) {
	r := testRegistry(t)
	data := []byte(`{"@type":"test.Missing","@properties":{}}`)

	_, err := Deserialize(context.Background(), data, WithRegistry(r))
	if !errors.Is(err, errors.ErrCodeUnknownType) {
		t.Errorf("trusted: err = %v, want UNKNOWN_TYPE", err)
	}
	_, err = DeserializeSafe(context.Background(), data, WithRegistry(r))
	if !errors.Is(err, errors.ErrCodeDisallowedClass) {
		t.Errorf("safe: err = %v, want DISALLOWED_CLASS", err)
	}
}

// =============================================================================
// Safe mode
// =============================================================================

type disallowRecorder struct {
	observability.NoopSerialHooks
	tags atomic.Int32
}

func (h *disallowRecorder) OnDisallowed(context.Context, string, string) { h.tags.Add(1) }

func TestSafeModeRejectsRestricted(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	hooks := &disallowRecorder{}
	observability.SetSerialHooks(hooks)
	defer observability.Reset()

	for _, name := range formats {
		t.Run(name, func(t *testing.T) {
			data, err := Serialize(ctx, []any{&point{}, &secret{Value: "x"}}, WithRegistry(r), Format(name))
			if err != nil {
				t.Fatal(err)
			}

			v, err := DeserializeSafe(ctx, data, WithRegistry(r), Format(name))
			if !errors.Is(err, errors.ErrCodeDisallowedClass) {
				t.Fatalf("err = %v, want DISALLOWED_CLASS", err)
			}
			if v != nil {
				t.Errorf("partial result %#v returned", v)
			}
			var dce *errors.DisallowedClassError
			if !errors.As(err, &dce) || dce.Tag != "test.Secret" {
				t.Errorf("err = %#v, want DisallowedClassError for test.Secret", err)
			}

			if _, err := Deserialize(ctx, data, WithRegistry(r), Format(name)); err != nil {
				t.Errorf("trusted load: %v", err)
			}
		})
	}
	if got := hooks.tags.Load(); got != int32(len(formats)) {
		t.Errorf("OnDisallowed called %d times, want %d", got, len(formats))
	}
}

func TestSafeModeAllowsAdapters(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	in := map[int64]any{1: []byte("raw"), 2: map[string]any{"@type": "not a record"}}

	data, err := Serialize(ctx, in, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	v, err := DeserializeSafe(ctx, data, WithRegistry(r))
	if err != nil {
		t.Fatalf("DeserializeSafe() error = %v\n%s", err, data)
	}
	m, ok := v.(*wire.Map)
	if !ok || m.Len() != 2 {
		t.Fatalf("result = %#v", v)
	}
	if raw, _ := m.Lookup(int64(1)); !reflect.DeepEqual(raw, []byte("raw")) {
		t.Errorf("bytes = %#v", raw)
	}
}

// =============================================================================
// Nesting
// =============================================================================

func payload(t *testing.T, r *schema.Registry, v any) string {
	t.Helper()
	data, err := Serialize(context.Background(), v, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNestedLoadIsIsolated(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	innerID := identity.New()
	inner := payload(t, r, []any{&node{ID: innerID, Name: "inner"}, &link{Src: innerID}})
	outerID := identity.New()
	data := []byte(payload(t, r, []any{
		&node{ID: outerID, Name: "outer"},
		&envelope{Payload: inner},
		&link{Src: outerID},
	}))

	s := NewSession(ctx, WithRegistry(r))
	v, err := s.Deserialize(data, StrictReferences())
	if err != nil {
		t.Fatal(err)
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d after load", s.Depth())
	}

	list := v.([]any)
	outerNode, env, outerLink := list[0].(*node), list[1].(*envelope), list[2].(*link)
	if env.Depth != 1 {
		t.Errorf("hook ran at depth %d, want 1", env.Depth)
	}
	innerList := env.Inner.([]any)
	innerNode, innerLink := innerList[0].(*node), innerList[1].(*link)

	if outerLink.Target != outerNode {
		t.Error("outer link not resolved to outer node")
	}
	if innerLink.Target != innerNode {
		t.Error("inner link not resolved to inner node")
	}
	// Both payloads number their only identity 1.
	if innerNode.ID == outerNode.ID {
		t.Error("nested load shared the outer restoration map")
	}
}

func TestNestedTrustOnlyTightens(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()
	restricted := payload(t, r, &secret{Value: "x"})

	tests := []struct {
		name      string
		outerSafe bool
		innerSafe bool
		wantErr   bool
	}{
		{"trusted in trusted", false, false, false},
		{"safe in trusted", false, true, true},
		{"trusted in safe", true, false, true},
		{"safe in safe", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(payload(t, r, &envelope{Payload: restricted, Safe: tt.innerSafe}))
			s := NewSession(ctx, WithRegistry(r))
			var opts []Option
			if tt.outerSafe {
				opts = append(opts, Safe())
			}
			_, err := s.Deserialize(data, opts...)
			if tt.wantErr && !errors.Is(err, errors.ErrCodeDisallowedClass) {
				t.Errorf("err = %v, want DISALLOWED_CLASS", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("err = %v", err)
			}
			if s.Depth() != 0 || s.Safe() {
				t.Errorf("stacks not restored: depth %d, safe %v", s.Depth(), s.Safe())
			}
		})
	}
}

func TestContextJoinsSession(t *testing.T) {
	r := testRegistry(t)
	s := NewSession(context.Background(), WithRegistry(r))
	if FromContext(s.Context()) != s {
		t.Fatal("session context does not carry the session")
	}
	// The joined session keeps its own registry.
	data, err := Serialize(s.Context(), &point{X: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "test.Point") {
		t.Errorf("Serialize() = %s", data)
	}
	if FromContext(context.Background()) != nil {
		t.Error("background context carries a session")
	}
}

// =============================================================================
// Concurrency
// =============================================================================

func TestConcurrentSessions(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	var g errgroup.Group
	for i := range 32 {
		g.Go(func() error {
			id := identity.New()
			in := []any{&node{ID: id, Name: fmt.Sprint(i)}, &link{Src: id}}
			opts := []Option{WithRegistry(r), Format(formats[i%len(formats)])}
			if i%2 == 0 {
				opts = append(opts, Safe())
			}
			data, err := Serialize(ctx, in, opts...)
			if err != nil {
				return err
			}
			v, err := Deserialize(ctx, data, opts...)
			if err != nil {
				return err
			}
			list := v.([]any)
			n, l := list[0].(*node), list[1].(*link)
			if n.Name != fmt.Sprint(i) || l.Target != n {
				return fmt.Errorf("goroutine %d restored %+v %+v", i, n, l)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
