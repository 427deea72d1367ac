package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := MapValue("sceneflow_transitions_total", "overlay")
	Transition("overlay")
	assert.Equal(t, before+1, MapValue("sceneflow_transitions_total", "overlay"))

	SetOverlayDepth(3)
	assert.Equal(t, int64(3), Snapshot("sceneflow_overlay_depth"))

	scenes := Snapshot("sceneflow_bundled_scenes_total")
	RecordBundle(2, 5)
	assert.Equal(t, scenes+2, Snapshot("sceneflow_bundled_scenes_total"))

	assert.Zero(t, Snapshot("does_not_exist"))
	assert.Zero(t, MapValue("sceneflow_transitions_total", "missing"))
}
