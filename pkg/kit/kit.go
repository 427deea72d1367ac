// Package kit is the surface scene code runs against. Scene sources are Go
// snippets evaluated in a sandbox; they build a *Scene either from a
// CreateScene function or by assigning a Scene variable, and request flow
// transitions with NavigateToScene and TriggerFlow.
//
//	// FLOW_TRIGGER: id=openDoor
//	func CreateScene() *kit.Scene {
//		s := kit.NewScene("Lobby")
//		s.SetActiveCamera(kit.NewCamera("main", kit.V(0, 5, -10)))
//		s.OnPick("door", func() { kit.TriggerFlow("openDoor") })
//		return s
//	}
package kit

import (
	"sort"
	"sync"
)

// Transition modes accepted by NavigateToScene.
const (
	ModeReplace = "replace"
	ModeOverlay = "overlay"
)

// Flow is the runtime side of a running scene. The sandbox exposes its
// methods to scene code as kit.NavigateToScene and kit.TriggerFlow, bound to
// the scene being built.
type Flow interface {
	NavigateToScene(name, mode string)
	TriggerFlow(triggerID string)
}

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X, Y, Z float64
}

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Camera views a scene.
type Camera struct {
	Name     string
	Position Vec3
	Target   Vec3
}

// NewCamera returns a camera at pos looking at the origin.
func NewCamera(name string, pos Vec3) *Camera {
	return &Camera{Name: name, Position: pos}
}

// Object is anything placed in a scene: a mesh, a light, an imported model.
type Object struct {
	Name     string
	Kind     string
	Position Vec3
	// Asset is a path relative to the staging area, empty for primitives.
	Asset string
}

// Scene is what a scene source produces. It is safe for use from the
// sandbox and the host at the same time.
type Scene struct {
	Name string

	mu        sync.Mutex
	cameras   []*Camera
	active    *Camera
	objects   []*Object
	picks     map[string]func()
	onDispose []func()
	disposed  bool
}

// NewScene returns an empty scene.
func NewScene(name string) *Scene {
	return &Scene{Name: name, picks: make(map[string]func())}
}

// AddCamera registers a camera without activating it.
func (s *Scene) AddCamera(c *Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, c)
}

// SetActiveCamera registers c if needed and makes it the active camera.
func (s *Scene) SetActiveCamera(c *Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		s.active = nil
		return
	}
	found := false
	for _, existing := range s.cameras {
		if existing == c {
			found = true
			break
		}
	}
	if !found {
		s.cameras = append(s.cameras, c)
	}
	s.active = c
}

// ActiveCamera returns the active camera or nil.
func (s *Scene) ActiveCamera() *Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cameras returns every registered camera.
func (s *Scene) Cameras() []*Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Camera(nil), s.cameras...)
}

// Add places objects in the scene.
func (s *Scene) Add(objs ...*Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, objs...)
}

// Objects returns the placed objects in insertion order.
func (s *Scene) Objects() []*Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Object(nil), s.objects...)
}

// Find returns the first object with the given name.
func (s *Scene) Find(name string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// OnPick registers fn to run when the object named target is picked.
func (s *Scene) OnPick(target string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks[target] = fn
}

// Pick simulates picking target and reports whether a handler ran.
// Handlers do not run on a disposed scene.
func (s *Scene) Pick(target string) bool {
	s.mu.Lock()
	fn, ok := s.picks[target]
	disposed := s.disposed
	s.mu.Unlock()
	if !ok || disposed {
		return false
	}
	fn()
	return true
}

// Pickables lists the targets with a pick handler, sorted.
func (s *Scene) Pickables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.picks))
	for k := range s.picks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OnDispose registers cleanup run once when the scene is disposed.
func (s *Scene) OnDispose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDispose = append(s.onDispose, fn)
}

// Dispose releases the scene. Calling it again is a no-op.
func (s *Scene) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	hooks := s.onDispose
	s.onDispose = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// Disposed reports whether Dispose has run.
func (s *Scene) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Mesh returns a primitive object.
func Mesh(name, shape string, pos Vec3) *Object {
	return &Object{Name: name, Kind: shape, Position: pos}
}

// Model returns an object loaded from a staged asset file.
func Model(name, assetPath string, pos Vec3) *Object {
	return &Object{Name: name, Kind: "model", Position: pos, Asset: assetPath}
}
