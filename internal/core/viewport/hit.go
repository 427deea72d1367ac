package viewport

// Circle is a circular hit area.
type Circle struct {
	Center Point
	Radius float64
}

// Contains reports whether p lies inside or on the circle.
func (c Circle) Contains(p Point) bool {
	dx := p.X - c.Center.X
	dy := p.Y - c.Center.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// Rect is an axis-aligned rectangle given by its center and extent.
type Rect struct {
	Center        Point
	Width, Height float64
}

// Contains reports whether p lies inside or on the rectangle.
func (r Rect) Contains(p Point) bool {
	hw, hh := r.Width/2, r.Height/2
	return p.X >= r.Center.X-hw && p.X <= r.Center.X+hw &&
		p.Y >= r.Center.Y-hh && p.Y <= r.Center.Y+hh
}

// SegmentDistance returns the distance from p to the segment a-b.
func SegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Dist(a)
	}
	u := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	switch {
	case u < 0:
		u = 0
	case u > 1:
		u = 1
	}
	return p.Dist(Point{X: a.X + u*dx, Y: a.Y + u*dy})
}
