package kit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScene_Cameras(t *testing.T) {
	s := NewScene("Lobby")
	assert.Nil(t, s.ActiveCamera())

	side := NewCamera("side", V(1, 0, 0))
	s.AddCamera(side)
	assert.Nil(t, s.ActiveCamera(), "adding does not activate")

	main := NewCamera("main", V(0, 5, -10))
	s.SetActiveCamera(main)
	s.SetActiveCamera(main)
	assert.Same(t, main, s.ActiveCamera())
	assert.Len(t, s.Cameras(), 2)

	s.SetActiveCamera(nil)
	assert.Nil(t, s.ActiveCamera())
}

func TestScene_Objects(t *testing.T) {
	s := NewScene("Hall")
	s.Add(Mesh("floor", "ground", V(0, 0, 0)), Model("door", "models/door.glb", V(0, 0, 5)))

	assert.Len(t, s.Objects(), 2)
	door := s.Find("door")
	if assert.NotNil(t, door) {
		assert.Equal(t, "model", door.Kind)
		assert.Equal(t, "models/door.glb", door.Asset)
	}
	assert.Nil(t, s.Find("window"))
}

func TestScene_PickAndDispose(t *testing.T) {
	s := NewScene("Hall")
	picked := 0
	s.OnPick("door", func() { picked++ })
	s.OnPick("bell", func() {})

	assert.Equal(t, []string{"bell", "door"}, s.Pickables())
	assert.True(t, s.Pick("door"))
	assert.False(t, s.Pick("window"))
	assert.Equal(t, 1, picked)

	var order []int
	s.OnDispose(func() { order = append(order, 1) })
	s.OnDispose(func() { order = append(order, 2) })
	s.Dispose()
	s.Dispose()

	assert.True(t, s.Disposed())
	assert.Equal(t, []int{2, 1}, order)
	assert.False(t, s.Pick("door"), "disposed scenes ignore picks")
	assert.Equal(t, 1, picked)
}
