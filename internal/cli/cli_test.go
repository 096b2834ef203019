package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/shapeserial/pkg/diagram"
	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/geom"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/serial"
)

const pointJSON = `{"@type":"geom.Point","@properties":{"x":10.0,"y":90.0}}`

// harness runs commands against a config file in a temp directory whose
// file store lives next to it.
type harness struct {
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	old := statusOut
	statusOut = io.Discard
	t.Cleanup(func() { statusOut = old })

	dir := t.TempDir()
	h := &harness{dir: dir, config: filepath.Join(dir, "config.toml")}
	cfg := "[store]\nbackend = \"file\"\ndir = \"" + filepath.ToSlash(filepath.Join(dir, "store")) + "\"\n"
	h.write(t, "config.toml", []byte(cfg))
	return h
}

func (h *harness) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.Logger = logging.Discard()
	c.Out = &out
	root := c.RootCommand()
	root.SetArgs(append(args, "--config", h.config))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"convert", "inspect", "formats", "store", "serve", "config", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("missing --verbose")
	}
}

func TestConvert(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "point.json", []byte(pointJSON))

	out, err := h.run(t, "convert", in, "--to", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if out != "!geom.Point {x: 10.0, y: 90.0}\n" {
		t.Errorf("yaml = %q", out)
	}

	yml := h.write(t, "point.yaml", []byte(out))
	out, err = h.run(t, "convert", yml, "--to", "json")
	if err != nil {
		t.Fatal(err)
	}
	if out != pointJSON+"\n" {
		t.Errorf("json = %q", out)
	}
}

func TestConvertToFile(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "point.json", []byte(pointJSON))
	dst := filepath.Join(h.dir, "point.cbor")

	out, err := h.run(t, "convert", in, "-o", dst)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing", out)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	p, err := serial.DeserializeAs[geom.Point](context.Background(), data, serial.Format("cbor"), serial.Safe())
	if err != nil {
		t.Fatal(err)
	}
	if p != (geom.Point{X: 10, Y: 90}) {
		t.Errorf("point = %v", p)
	}
}

func TestConvertSafety(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "evil.json", []byte(`{"@type":"evil.Payload","@properties":{}}`))

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"safe by default", nil, errors.ErrCodeDisallowedClass},
		{"trusted", []string{"--trust"}, errors.ErrCodeUnknownType},
		{"validate only", []string{"--validate"}, errors.ErrCodeDisallowedClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.run(t, append([]string{"convert", in}, tt.args...)...)
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if out != "" {
				t.Errorf("output %q on failure", out)
			}
		})
	}
}

func TestConvertValidate(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "point.json", []byte(pointJSON))
	out, err := h.run(t, "convert", in, "--validate")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("validate wrote %q", out)
	}
}

func TestFormatFor(t *testing.T) {
	c := New(io.Discard, LogInfo)
	tests := []struct {
		explicit, path, want string
	}{
		{"", "a.json", "json"},
		{"", "a.JSONC", "jsonc"},
		{"", "a.yml", "yaml"},
		{"", "a.yaml", "yaml"},
		{"", "a.cbor", "cbor"},
		{"", "a.txt", "json"},
		{"", "-", "json"},
		{"cbor", "a.json", "cbor"},
	}
	for _, tt := range tests {
		if got := c.formatFor(tt.explicit, tt.path); got != tt.want {
			t.Errorf("formatFor(%q, %q) = %q, want %q", tt.explicit, tt.path, got, tt.want)
		}
	}
}

func TestStoreCommands(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "point.json", []byte(pointJSON))

	if _, err := h.run(t, "store", "put", "points/a", in); err != nil {
		t.Fatal(err)
	}
	out, err := h.run(t, "store", "list")
	if err != nil {
		t.Fatal(err)
	}
	if out != "points/a\n" {
		t.Errorf("list = %q", out)
	}

	out, err = h.run(t, "store", "get", "points/a")
	if err != nil {
		t.Fatal(err)
	}
	if out != pointJSON {
		t.Errorf("get = %q", out)
	}
	out, err = h.run(t, "store", "get", "points/a", "--to", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if out != "!geom.Point {x: 10.0, y: 90.0}\n" {
		t.Errorf("get --to yaml = %q", out)
	}

	if _, err := h.run(t, "store", "delete", "points/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run(t, "store", "get", "points/a"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("get after delete: %v", err)
	}
}

func TestStorePutRejectsUnsafe(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "evil.json", []byte(`{"@type":"evil.Payload","@properties":{}}`))
	if _, err := h.run(t, "store", "put", "evil", in); !errors.Is(err, errors.ErrCodeDisallowedClass) {
		t.Fatalf("err = %v", err)
	}
	out, err := h.run(t, "store", "list")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("list = %q, want empty", out)
	}
}

func diagramFile(t *testing.T, h *harness) string {
	t.Helper()
	a := diagram.NewBox("a", geom.Point{}, geom.Size{W: 10, H: 10})
	b := diagram.NewBox("b", geom.Point{X: 40}, geom.Size{W: 10, H: 10})
	d := diagram.New("d").Add(a, b)
	d.Connect(a, b)
	data, err := serial.Serialize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	return h.write(t, "d.json", data)
}

func TestInspect(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "inspect", diagramFile(t, h))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"diagram.Diagram", "diagram.Box", "diagram.Line", "identities", "safe"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectUnregistered(t *testing.T) {
	h := newHarness(t)
	in := h.write(t, "evil.json", []byte(`{"@type":"evil.Payload","@properties":{}}`))
	out, err := h.run(t, "inspect", in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "evil.Payload") || !strings.Contains(out, "trusted") {
		t.Errorf("inspect output:\n%s", out)
	}
}

func TestInspectGraph(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "inspect", diagramFile(t, h), "--graph", "dot")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "digraph G {") || !strings.Contains(out, "style=dashed") {
		t.Errorf("dot:\n%s", out)
	}

	if _, err := h.run(t, "inspect", diagramFile(t, h), "--graph", "gif"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("gif: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	h := newHarness(t)
	data, err := os.ReadFile(diagramFile(t, h))
	if err != nil {
		t.Fatal(err)
	}
	tree, err := serial.Inspect(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	s := summarize(tree)
	if s.types["diagram.Box"] != 2 || s.types["diagram.Line"] != 1 || s.types["diagram.Diagram"] != 1 {
		t.Errorf("types = %v", s.types)
	}
	if s.records() < 4 {
		t.Errorf("records = %d", s.records())
	}
	if len(s.refs) < 2 {
		t.Errorf("refs = %v", s.refs)
	}
}

func TestFormatsCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "formats", "--schemas")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"json", "jsonc", "yaml", "cbor", "geom.Point", "diagram.Line",
		"go diagram.Line, extends diagram.Shape, excludes position", "source"} {
		if !strings.Contains(out, want) {
			t.Errorf("formats output missing %q", want)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != h.config {
		t.Errorf("path = %q", out)
	}

	out, err = h.run(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `format = "json"`) || !strings.Contains(out, filepath.ToSlash(filepath.Join(h.dir, "store"))) {
		t.Errorf("show:\n%s", out)
	}
}

func TestBadConfig(t *testing.T) {
	h := newHarness(t)
	h.write(t, "config.toml", []byte("[serial]\nbogus = 1\n"))
	if _, err := h.run(t, "formats"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int]string{
		12:      "12 B",
		2048:    "2.0 KiB",
		3 << 20: "3.0 MiB",
	}
	for n, want := range tests {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}
