// Package geom provides the value types shapes are built from and registers
// their serialization adapters.
//
// The types carry no behavior beyond what a diagram needs to place shapes;
// their purpose here is the wire form. Importing the package registers:
//
//	geom.Point  {x, y}
//	geom.Size   {w, h}
//	geom.Rect   {x, y, w, h}
//	geom.Color  {r, g, b, a}
//
// in [schema.Default].
package geom

import (
	"fmt"

	"github.com/matzehuels/shapeserial/pkg/schema"
)

// Point is a position in diagram coordinates.
type Point struct {
	X, Y float64
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) String() string { return fmt.Sprintf("(%g,%g)", p.X, p.Y) }

// Size is a width and height.
type Size struct {
	W, H float64
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// RectAt returns the rectangle of size sz anchored at p.
func RectAt(p Point, sz Size) Rect {
	return Rect{X: p.X, Y: p.Y, W: sz.W, H: sz.H}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point { return r.Origin().Add(Point{X: r.W / 2, Y: r.H / 2}) }

// Color is an 8-bit RGBA color. The zero value is transparent black.
type Color struct {
	R, G, B, A uint8
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 0xff} }

// Hex formats the color as #rrggbbaa.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

var (
	// PointType is the registered schema of Point.
	PointType = schema.MustDefine[Point]("geom.Point", schema.DeclareFields("x", "y"))
	// SizeType is the registered schema of Size.
	SizeType = schema.MustDefine[Size]("geom.Size", schema.DeclareFields("w", "h"))
	// RectType is the registered schema of Rect.
	RectType = schema.MustDefine[Rect]("geom.Rect", schema.DeclareFields("x", "y", "w", "h"))
	// ColorType is the registered schema of Color. Channels are declared
	// with explicit accessors; out-of-range values fail on load.
	ColorType = schema.MustDefine[Color]("geom.Color", schema.Declare(
		schema.Prop("r", func(c *Color) uint8 { return c.R }, func(c *Color, v uint8) { c.R = v }),
		schema.Prop("g", func(c *Color) uint8 { return c.G }, func(c *Color, v uint8) { c.G = v }),
		schema.Prop("b", func(c *Color) uint8 { return c.B }, func(c *Color, v uint8) { c.B = v }),
		schema.Prop("a", func(c *Color) uint8 { return c.A }, func(c *Color, v uint8) { c.A = v }),
	))
)
