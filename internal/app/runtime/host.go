package runtime

import (
	"log/slog"
	"sync"

	"github.com/sceneflow/sceneflow/pkg/kit"
)

// Host is the scene-execution collaborator: whatever actually renders the
// active scene and shows error overlays.
type Host interface {
	// Present makes scene the one rendered.
	Present(scene *kit.Scene)
	// ShowError surfaces a non-fatal problem while running scene.
	ShowError(scene string, err error)
}

// HostEvent is one call recorded by HeadlessHost.
type HostEvent struct {
	Scene  string
	Camera string
	Err    error
}

// HeadlessHost renders nothing and records every call. The CLI and tests
// use it.
type HeadlessHost struct {
	mu        sync.Mutex
	presented []HostEvent
	errors    []HostEvent
	logger    *slog.Logger
}

// NewHeadlessHost returns a host that also logs to logger when non-nil.
func NewHeadlessHost(logger *slog.Logger) *HeadlessHost {
	return &HeadlessHost{logger: logger}
}

func (h *HeadlessHost) Present(scene *kit.Scene) {
	ev := HostEvent{Scene: scene.Name}
	if cam := scene.ActiveCamera(); cam != nil {
		ev.Camera = cam.Name
	}
	h.mu.Lock()
	h.presented = append(h.presented, ev)
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Info("scene presented", "scene", ev.Scene, "camera", ev.Camera)
	}
}

func (h *HeadlessHost) ShowError(scene string, err error) {
	h.mu.Lock()
	h.errors = append(h.errors, HostEvent{Scene: scene, Err: err})
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Error("scene error", "scene", scene, "error", err)
	}
}

// Presented returns the presented scene names in order.
func (h *HeadlessHost) Presented() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.presented))
	for i, ev := range h.presented {
		names[i] = ev.Scene
	}
	return names
}

// PresentedEvents returns every Present call.
func (h *HeadlessHost) PresentedEvents() []HostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HostEvent(nil), h.presented...)
}

// Errors returns every ShowError call.
func (h *HeadlessHost) Errors() []HostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HostEvent(nil), h.errors...)
}
