package asset

import (
	"time"

	"github.com/google/uuid"
)

// ActiveFlowKey is the settings key naming the flow played on startup.
const ActiveFlowKey = "activeFlowName"

// BundleRequest asks the store to snapshot a flow with its scenes.
type BundleRequest struct {
	FlowName   string   `json:"flowName" validate:"required"`
	SceneNames []string `json:"sceneNames"`
	FlowData   any      `json:"flowData"`
}

// Validate ensures the request is usable
func (r *BundleRequest) Validate() error {
	if err := ValidateName(r.FlowName); err != nil {
		return err
	}
	for _, name := range r.SceneNames {
		if err := ValidateName(name); err != nil {
			return err
		}
	}
	return nil
}

// BundleResult reports what a bundle captured.
type BundleResult struct {
	BundledScenes []string `json:"bundledScenes"`
	TotalFiles    int      `json:"totalFiles"`
}

// RestoreResult reports what a restore put back.
type RestoreResult struct {
	FoundAssets    bool     `json:"foundAssets"`
	RestoredFiles  int      `json:"restoredFiles"`
	RestoredScenes []string `json:"restoredScenes"`
}

// Bundle is the durable snapshot of a flow: scene sources plus the binary
// files that were staged when it was taken.
type Bundle struct {
	ID        uuid.UUID         `json:"id" msgpack:"id"`
	FlowName  string            `json:"flow_name" msgpack:"flow_name"`
	Scenes    map[string]string `json:"scenes" msgpack:"scenes"`
	Files     []File            `json:"files" msgpack:"files"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
}

// NewBundle returns an empty bundle with a fresh id.
func NewBundle(flowName string) *Bundle {
	return &Bundle{
		ID:        uuid.New(),
		FlowName:  flowName,
		Scenes:    make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}
