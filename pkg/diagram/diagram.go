package diagram

import (
	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/geom"
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/schema"
	"github.com/matzehuels/shapeserial/pkg/serial"
)

// Node is implemented by every shape a line can connect.
type Node interface {
	Identity() *identity.ID
	Bounds() geom.Rect
}

// Shape holds what every shape has. The zero value has no identity; use
// [NewShape] or give it an ID before connecting lines to it.
type Shape struct {
	ID       *identity.ID
	Position geom.Point
	Fill     geom.Color
	Label    string
}

// NewShape returns a shape with a fresh identity.
func NewShape(label string, at geom.Point) *Shape {
	return &Shape{ID: identity.New(), Position: at, Label: label}
}

// Identity implements identity.Owner.
func (s *Shape) Identity() *identity.ID { return s.ID }

// Bounds returns a zero-size rectangle at the shape's position.
func (s *Shape) Bounds() geom.Rect { return geom.Rect{X: s.Position.X, Y: s.Position.Y} }

// Box is a rectangle with optionally rounded corners.
type Box struct {
	Shape
	Size   geom.Size
	Radius float64
}

// NewBox returns a box with a fresh identity.
func NewBox(label string, at geom.Point, size geom.Size) *Box {
	return &Box{Shape: *NewShape(label, at), Size: size}
}

// Bounds implements Node.
func (b *Box) Bounds() geom.Rect { return geom.RectAt(b.Position, b.Size) }

// Text is a free-standing text block. It has no fill.
type Text struct {
	Shape
	Text string
}

// NewText returns a text block with a fresh identity.
func NewText(text string, at geom.Point) *Text {
	return &Text{Shape: *NewShape("", at), Text: text}
}

// Handle is a drag point on a line. Handles are derived from the line's
// endpoints and never serialized.
type Handle struct {
	At geom.Point
}

// SerializeDisabled implements serial.Disabler.
func (*Handle) SerializeDisabled() bool { return true }

// Line connects two nodes. Its position is derived from its endpoints, so it
// is not part of the line's schema.
type Line struct {
	Shape
	Source *identity.ID
	Target *identity.ID

	Handles []*Handle

	src, dst Node
}

// Connect returns a line from src to dst.
func Connect(src, dst Node) *Line {
	l := &Line{Shape: Shape{ID: identity.New()}, Source: src.Identity(), Target: dst.Identity()}
	l.attach(src, dst)
	return l
}

// Endpoints returns the connected nodes. They are nil on a line restored
// without its endpoints.
func (l *Line) Endpoints() (src, dst Node) { return l.src, l.dst }

func (l *Line) attach(src, dst Node) {
	l.src, l.dst = src, dst
	a, b := src.Bounds().Center(), dst.Bounds().Center()
	l.Position = a
	l.Handles = []*Handle{{At: a}, {At: b}}
}

// FinalizeFromSerialized implements serial.Finalizer. Both endpoints must
// have been restored by the same load.
func (l *Line) FinalizeFromSerialized(s *serial.Session) error {
	src, err := endpoint(s, "source", l.Source)
	if err != nil {
		return err
	}
	dst, err := endpoint(s, "target", l.Target)
	if err != nil {
		return err
	}
	l.attach(src, dst)
	return nil
}

func endpoint(s *serial.Session, role string, id *identity.ID) (Node, error) {
	if id == nil {
		return nil, errors.New(errors.ErrCodeMalformedReference, "line %s: missing", role)
	}
	obj, ok := s.Owner(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedReference, "line %s: no shape owns %s", role, id)
	}
	if t, ok := s.Registry().TypeOf(obj); ok && !t.IsA(ShapeType) {
		return nil, errors.New(errors.ErrCodeMalformedReference, "line %s: %s is not a shape", role, t)
	}
	n, ok := obj.(Node)
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedReference, "line %s: %T is not a node", role, obj)
	}
	return n, nil
}

// Diagram is the document root.
type Diagram struct {
	Name   string
	Shapes []Node
	Lines  []*Line
}

// New returns an empty diagram.
func New(name string) *Diagram {
	return &Diagram{Name: name}
}

// Add appends shapes.
func (d *Diagram) Add(shapes ...Node) *Diagram {
	d.Shapes = append(d.Shapes, shapes...)
	return d
}

// Connect adds a line between two shapes of the diagram.
func (d *Diagram) Connect(src, dst Node) *Line {
	l := Connect(src, dst)
	d.Lines = append(d.Lines, l)
	return l
}

// Shape returns the shape owning id.
func (d *Diagram) Shape(id *identity.ID) (Node, bool) {
	for _, s := range d.Shapes {
		if s.Identity() == id {
			return s, true
		}
	}
	return nil, false
}

// Registered schemas.
var (
	ShapeType = schema.MustDefine[Shape]("diagram.Shape",
		schema.DeclareFields("id", "position", "fill", "label"))

	BoxType = schema.MustDefine[Box]("diagram.Box",
		schema.Extends(ShapeType, func(b *Box) *Shape { return &b.Shape }),
		schema.AddFields("size", "radius"))

	TextType = schema.MustDefine[Text]("diagram.Text",
		schema.Extends(ShapeType, func(t *Text) *Shape { return &t.Shape }),
		schema.Exclude("fill"),
		schema.AddFields("text"))

	LineType = schema.MustDefine[Line]("diagram.Line",
		schema.Extends(ShapeType, func(l *Line) *Shape { return &l.Shape }),
		schema.Exclude("position"),
		schema.AddFields("source", "target", "handles"))

	DiagramType = schema.MustDefine[Diagram]("diagram.Diagram",
		schema.DeclareFields("name", "shapes", "lines"))
)
