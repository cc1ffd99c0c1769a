// Package geometry provides the pure math for moving between screen space
// and grid cells under a pan and zoom transform.
package geometry

import "math"

// Point represents a position in screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of the two points.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the difference of the two points.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Len returns the euclidean length of the point as a vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Rect is an axis aligned rectangle in screen space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside the rectangle. The right
// and bottom edges belong to the neighbouring rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Coords identifies a cell by its x, y position in the grid.
type Coords struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// =============================================================================

// Geometry is the transform between a canvas of Width x Height pixels and a
// Size x Size grid. It is a value, every method is a pure function of it.
type Geometry struct {
	Width  float64
	Height float64
	Size   int
	Zoom   float64
	Pan    Point
}

// CellSize returns the length of a cell side in screen pixels.
func (g Geometry) CellSize() float64 {
	if g.Size <= 0 {
		return 0
	}
	return math.Min(g.Width, g.Height) / float64(g.Size) * g.Zoom
}

// Origin returns the screen position of the top left corner of cell 0,0. The
// grid is centered on the canvas before the pan is applied.
func (g Geometry) Origin() Point {
	span := float64(g.Size) * g.CellSize()

	return Point{
		X: (g.Width-span)/2 + g.Pan.X,
		Y: (g.Height-span)/2 + g.Pan.Y,
	}
}

// ScreenToCell maps a screen point to the cell underneath it. Boundary pixels
// belong to the lower cell since floor is used. False is returned when the
// point lies outside the grid.
func (g Geometry) ScreenToCell(p Point) (Coords, bool) {
	size := g.CellSize()
	if size <= 0 {
		return Coords{}, false
	}

	origin := g.Origin()
	x := int(math.Floor((p.X - origin.X) / size))
	y := int(math.Floor((p.Y - origin.Y) / size))

	if x < 0 || x >= g.Size || y < 0 || y >= g.Size {
		return Coords{}, false
	}

	return Coords{X: x, Y: y}, true
}

// CellToScreenRect returns the screen rectangle covered by the cell.
func (g Geometry) CellToScreenRect(x int, y int) Rect {
	size := g.CellSize()
	origin := g.Origin()

	return Rect{
		X:      origin.X + float64(x)*size,
		Y:      origin.Y + float64(y)*size,
		Width:  size,
		Height: size,
	}
}

// Bounds returns the screen rectangle covered by the whole grid.
func (g Geometry) Bounds() Rect {
	origin := g.Origin()
	span := float64(g.Size) * g.CellSize()

	return Rect{X: origin.X, Y: origin.Y, Width: span, Height: span}
}
