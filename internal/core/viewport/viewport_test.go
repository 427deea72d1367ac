package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestTransform_InverseLaw(t *testing.T) {
	tests := []struct {
		name      string
		scale     float64
		translate Point
		point     Point
	}{
		{"identity", 1, Point{}, Pt(10, -4)},
		{"zoomed in", 2, Pt(120, -35), Pt(400, 300)},
		{"zoomed out", 0.3, Pt(-900.5, 12.25), Pt(-17.125, 3e4)},
		{"fractional", 0.77, Pt(3.3, 4.4), Pt(0.001, 0.002)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vt := New()
			vt.Set(tt.scale, tt.translate)
			got := vt.ScreenToWorld(vt.WorldToScreen(tt.point))
			assert.InDelta(t, tt.point.X, got.X, 1e-6)
			assert.InDelta(t, tt.point.Y, got.Y, 1e-6)
		})
	}
}

func TestTransform_WorldToScreen(t *testing.T) {
	vt := New()
	vt.Set(2, Pt(10, 20))

	assert.Equal(t, Pt(210, 420), vt.WorldToScreen(Pt(100, 200)))
	assert.Equal(t, Pt(100, 200), vt.ScreenToWorld(Pt(210, 420)))
}

func TestTransform_ZoomClamp(t *testing.T) {
	vt := New()
	for i := 0; i < 100; i++ {
		vt.ZoomAt(Pt(50, 50), 1.5)
		assert.LessOrEqual(t, vt.Scale(), MaxScale)
	}
	assert.Equal(t, MaxScale, vt.Scale())

	for i := 0; i < 100; i++ {
		vt.Wheel(Pt(50, 50), 1)
		assert.GreaterOrEqual(t, vt.Scale(), MinScale)
	}
	assert.Equal(t, MinScale, vt.Scale())
}

func TestTransform_ZoomAtKeepsCursorFixed(t *testing.T) {
	vt := New()
	vt.Set(1, Pt(30, 40))
	cursor := Pt(250, 175)
	before := vt.ScreenToWorld(cursor)

	vt.ZoomAt(cursor, 1.1)

	after := vt.ScreenToWorld(cursor)
	assert.InDelta(t, before.X, after.X, eps)
	assert.InDelta(t, before.Y, after.Y, eps)
	assert.InDelta(t, 1.1, vt.Scale(), eps)
}

func TestTransform_ZoomAtIgnoresBadFactor(t *testing.T) {
	vt := New()
	vt.ZoomAt(Pt(1, 1), 0)
	vt.ZoomAt(Pt(1, 1), math.NaN())
	assert.Equal(t, 1.0, vt.Scale())
}

func TestTransform_ButtonsZoomAroundCenter(t *testing.T) {
	vt := New()
	size := Size{Width: 800, Height: 600}
	center := vt.ScreenToWorld(size.Center())

	vt.ZoomIn(size)
	assert.InDelta(t, 1.2, vt.Scale(), eps)
	got := vt.ScreenToWorld(size.Center())
	assert.InDelta(t, center.X, got.X, eps)
	assert.InDelta(t, center.Y, got.Y, eps)

	vt.ZoomOut(size)
	assert.InDelta(t, 1.0, vt.Scale(), eps)
}

func TestTransform_PanAndCenter(t *testing.T) {
	vt := New()
	vt.PanBy(5, -7)
	vt.PanBy(1, 1)
	assert.Equal(t, Pt(6, -6), vt.Translate())

	vt.Set(0.5, Point{})
	size := Size{Width: 1000, Height: 500}
	vt.CenterOn(Pt(400, 300), size)
	assert.Equal(t, size.Center(), vt.WorldToScreen(Pt(400, 300)))

	vt.Reset()
	assert.Equal(t, 1.0, vt.Scale())
	assert.Equal(t, Point{}, vt.Translate())
}

func TestHitShapes(t *testing.T) {
	c := Circle{Center: Pt(0, 0), Radius: 7}
	assert.True(t, c.Contains(Pt(7, 0)))
	assert.False(t, c.Contains(Pt(5, 5.1)))

	r := Rect{Center: Pt(10, 10), Width: 80, Height: 56}
	assert.True(t, r.Contains(Pt(50, 38)))
	assert.False(t, r.Contains(Pt(50.1, 10)))

	assert.InDelta(t, 3.0, SegmentDistance(Pt(5, 3), Pt(0, 0), Pt(10, 0)), eps)
	assert.InDelta(t, 5.0, SegmentDistance(Pt(-3, 4), Pt(0, 0), Pt(10, 0)), eps)
	assert.InDelta(t, 5.0, SegmentDistance(Pt(3, 4), Pt(0, 0), Pt(0, 0)), eps)
}
