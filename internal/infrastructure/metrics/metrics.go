package metrics

import (
	"expvar"
)

// Runtime metrics keyed by transition mode or outcome.
var (
	transitionsTotal = expvar.NewMap("sceneflow_transitions_total")
	triggersTotal    = expvar.NewMap("sceneflow_triggers_total")
	sceneExecsTotal  = expvar.NewMap("sceneflow_scene_executions_total")
)

// Persistence and editor metrics.
var (
	flowOpsTotal      = expvar.NewMap("sceneflow_flow_operations_total")
	gesturesTotal     = expvar.NewMap("sceneflow_gestures_total")
	bundledScenes     = new(expvar.Int)
	bundledFiles      = new(expvar.Int)
	overlayDepth      = new(expvar.Int)
	fallbacksTotal    = new(expvar.Int)
	staleFetchesTotal = new(expvar.Int)
)

func init() {
	expvar.Publish("sceneflow_bundled_scenes_total", bundledScenes)
	expvar.Publish("sceneflow_bundled_files_total", bundledFiles)
	expvar.Publish("sceneflow_overlay_depth", overlayDepth)
	expvar.Publish("sceneflow_fallbacks_total", fallbacksTotal)
	expvar.Publish("sceneflow_stale_fetches_total", staleFetchesTotal)
}

// Runtime helpers
func Transition(mode string) { transitionsTotal.Add(mode, 1) }
func TriggerResolved(outcome string) { triggersTotal.Add(outcome, 1) }
func SceneExecuted(outcome string) { sceneExecsTotal.Add(outcome, 1) }
func SetOverlayDepth(n int) { overlayDepth.Set(int64(n)) }
func IncFallbacks() { fallbacksTotal.Add(1) }
func IncStaleFetches() { staleFetchesTotal.Add(1) }

// Persistence/editor helpers
func FlowOperation(op string) { flowOpsTotal.Add(op, 1) }
func Gesture(kind string) { gesturesTotal.Add(kind, 1) }
func RecordBundle(scenes, files int) {
	bundledScenes.Add(int64(scenes))
	bundledFiles.Add(int64(files))
}

// Snapshot returns the current value of a published integer, or 0.
func Snapshot(name string) int64 {
	if v, ok := expvar.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// MapValue returns one key of a published map, or 0.
func MapValue(name, key string) int64 {
	m, ok := expvar.Get(name).(*expvar.Map)
	if !ok {
		return 0
	}
	if v, ok := m.Get(key).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}
