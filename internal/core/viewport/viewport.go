// Package viewport maps between screen space and world space for the flow
// canvas. It holds the pan/zoom state of one editing session and is never
// persisted.
package viewport

import "math"

const (
	// MinScale and MaxScale bound every zoom operation.
	MinScale = 0.3
	MaxScale = 2.0

	// WheelZoomIn and WheelZoomOut are the per-notch wheel factors.
	WheelZoomIn  = 1.1
	WheelZoomOut = 0.9

	// ButtonZoomStep is applied by the zoom in/out buttons.
	ButtonZoomStep = 1.2
)

// Point is a 2D coordinate, in either screen or world space depending on use.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Size is a viewport extent in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the screen-space midpoint of the viewport.
func (s Size) Center() Point { return Point{X: s.Width / 2, Y: s.Height / 2} }

// Transform is the pan/zoom state: screen = world*Scale + Translate.
// The zero value is not usable; call New.
type Transform struct {
	scale     float64
	translate Point
}

// New returns an identity transform.
func New() *Transform {
	return &Transform{scale: 1}
}

// Scale returns the current zoom factor.
func (t *Transform) Scale() float64 { return t.scale }

// Translate returns the current screen offset.
func (t *Transform) Translate() Point { return t.translate }

// Set replaces the state. The scale is clamped.
func (t *Transform) Set(scale float64, translate Point) {
	t.scale = clamp(scale)
	t.translate = translate
}

// WorldToScreen maps a world point to screen space.
func (t *Transform) WorldToScreen(p Point) Point {
	return Point{X: p.X*t.scale + t.translate.X, Y: p.Y*t.scale + t.translate.Y}
}

// ScreenToWorld maps a screen point to world space.
func (t *Transform) ScreenToWorld(p Point) Point {
	return Point{X: (p.X - t.translate.X) / t.scale, Y: (p.Y - t.translate.Y) / t.scale}
}

// ZoomAt multiplies the scale by factor, keeping the world point under
// cursor fixed on screen.
func (t *Transform) ZoomAt(cursor Point, factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	anchor := t.ScreenToWorld(cursor)
	t.scale = clamp(t.scale * factor)
	t.translate = Point{
		X: cursor.X - anchor.X*t.scale,
		Y: cursor.Y - anchor.Y*t.scale,
	}
}

// Wheel applies one wheel notch at cursor. Negative deltaY zooms in.
func (t *Transform) Wheel(cursor Point, deltaY float64) {
	if deltaY < 0 {
		t.ZoomAt(cursor, WheelZoomIn)
		return
	}
	t.ZoomAt(cursor, WheelZoomOut)
}

// ZoomIn zooms by ButtonZoomStep around the viewport center.
func (t *Transform) ZoomIn(size Size) { t.ZoomAt(size.Center(), ButtonZoomStep) }

// ZoomOut zooms by 1/ButtonZoomStep around the viewport center.
func (t *Transform) ZoomOut(size Size) { t.ZoomAt(size.Center(), 1/ButtonZoomStep) }

// PanBy shifts the translate by a screen-space delta.
func (t *Transform) PanBy(dx, dy float64) {
	t.translate.X += dx
	t.translate.Y += dy
}

// CenterOn sets translate so that world maps to the viewport center.
func (t *Transform) CenterOn(world Point, size Size) {
	c := size.Center()
	t.translate = Point{X: c.X - world.X*t.scale, Y: c.Y - world.Y*t.scale}
}

// Reset restores scale 1 and zero translate.
func (t *Transform) Reset() {
	t.scale = 1
	t.translate = Point{}
}

func clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}
