package cborfmt

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

func point() *wire.Record {
	return &wire.Record{Type: "geom.Point", Props: wire.PropsOf("y", 90.0, "x", 10.0)}
}

func dumpBytes(t *testing.T, tree any) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := New().Dump(&buf, tree, false); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	return buf.Bytes()
}

func load(data []byte, b wire.Builder) (any, error) {
	return New().Load(bytes.NewReader(data), b)
}

func TestRoundTripKeepsOrder(t *testing.T) {
	m := &wire.Map{}
	m.Add(int64(2), "two")
	m.Add(int64(1), []any{"one"})
	tree := []any{
		point(),
		m,
		wire.PropsOf("z", int64(1), "a", int64(2)),
		[]byte{1, 2, 3},
		nil,
		true,
		"text",
		uint64(math.MaxUint64),
		int64(math.MinInt64),
		0.5,
	}

	got, err := load(dumpBytes(t, tree), &wire.RecordBuilder{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, tree) {
		t.Errorf("tree did not survive:\n got %#v\nwant %#v", got, tree)
	}
}

func TestRecordsUseTag27(t *testing.T) {
	data := dumpBytes(t, point())
	var raw cbor.Tag
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw.Number != TagRecord {
		t.Errorf("tag = %d, want %d", raw.Number, TagRecord)
	}
}

func TestLargeMapHead(t *testing.T) {
	p := wire.NewProps()
	for i := 0; i < 300; i++ {
		p.Add(string(rune('a'+i%26))+string(rune('0'+i/26)), int64(i))
	}
	got, err := load(dumpBytes(t, p), &wire.RecordBuilder{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Error("300-entry map did not survive")
	}
}

type gate struct {
	wire.RecordBuilder
	built int
}

func (g *gate) Admit(tag string) error {
	if tag != "geom.Point" {
		return errors.Disallowed(tag)
	}
	return nil
}

func (g *gate) Build(tag string, props *wire.Props) (any, error) {
	g.built++
	return g.RecordBuilder.Build(tag, props)
}

func TestLoadGate(t *testing.T) {
	inner := point()
	evil := &wire.Record{Type: "os.Process", Props: wire.PropsOf("inner", inner)}
	g := &gate{}

	v, err := load(dumpBytes(t, evil), g)
	if !errors.Is(err, errors.ErrCodeDisallowedClass) {
		t.Fatalf("Load() error = %v, want DISALLOWED_CLASS", err)
	}
	if v != nil || g.built != 0 {
		t.Errorf("Load() = %v, built %d records", v, g.built)
	}
}

func TestLoadErrors(t *testing.T) {
	foreign, err := cbor.Marshal(cbor.Tag{Number: 1, Content: int64(0)})
	if err != nil {
		t.Fatal(err)
	}
	full := dumpBytes(t, point())

	tests := []struct {
		name string
		data []byte
		code errors.Code
	}{
		{"empty", nil, errors.ErrCodeCodec},
		{"foreign tag", foreign, errors.ErrCodeDisallowedClass},
		{"truncated", full[:len(full)-3], errors.ErrCodeCodec},
		{"trailing", append(append([]byte{}, full...), 0x00), errors.ErrCodeCodec},
		{"indefinite array", []byte{0x9f, 0x01, 0xff}, errors.ErrCodeCodec},
		{"huge array length", []byte{0x9a, 0xff, 0xff, 0xff, 0xff}, errors.ErrCodeCodec},
		{"too deep", []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}, errors.ErrCodeDepthExceeded},
		{"record not array", []byte{0xd8, 0x1b, 0x01}, errors.ErrCodeCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := load(tt.data, &wire.RecordBuilder{Depth: 4})
			if !errors.Is(err, tt.code) {
				t.Errorf("Load() error = %v, want %s", err, tt.code)
			}
			if v != nil {
				t.Errorf("Load() returned partial value %#v", v)
			}
		})
	}
}
