package asset

import (
	"context"
	"time"
)

// Store persists authored assets (DIP - Dependency Inversion)
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Core domain depends on interface, not implementations
type Store interface {
	// Save creates or replaces an asset
	Save(ctx context.Context, kind Kind, name, content string) error

	// Load retrieves an asset by kind and name
	Load(ctx context.Context, kind Kind, name string) (*Asset, error)

	// List returns assets of one kind matching the filter
	List(ctx context.Context, kind Kind, filter Filter) ([]Info, error)

	// Delete removes an asset and its thumbnail
	Delete(ctx context.Context, kind Kind, name string) error
}

// ThumbnailStore keeps one preview image per asset.
type ThumbnailStore interface {
	SaveThumbnail(ctx context.Context, kind Kind, name string, image []byte) error
	LoadThumbnail(ctx context.Context, kind Kind, name string) ([]byte, error)
}

// Staging is the scratch "external assets" area a running flow reads
// binary assets from.
type Staging interface {
	StageFile(ctx context.Context, file File) error
	StagedFiles(ctx context.Context) ([]File, error)
	ClearStaging(ctx context.Context) error
}

// BundleRepository stores one bundle per flow.
type BundleRepository interface {
	SaveBundle(ctx context.Context, bundle *Bundle) error
	LoadBundle(ctx context.Context, flowName string) (*Bundle, error)
	DeleteBundle(ctx context.Context, flowName string) error
}

// Bundler makes a flow self-contained and restores it for play.
type Bundler interface {
	BundleFlow(ctx context.Context, req BundleRequest) (*BundleResult, error)
	RestoreFlowAssets(ctx context.Context, flowName string) (*RestoreResult, error)
}

// Settings holds small process-wide string values.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Repository is what a storage adapter provides; the bundle service turns
// it into a Backend.
type Repository interface {
	Store
	ThumbnailStore
	Staging
	BundleRepository
	Settings
	Close() error
}

// Backend is everything the flow subsystem needs from the asset store.
type Backend interface {
	Store
	ThumbnailStore
	Bundler
	Settings
	ClearStaging(ctx context.Context) error
	Close() error
}

// Filter for asset listings
type Filter struct {
	Prefix string     `json:"prefix,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	return nil
}

// Apply pages an already sorted listing.
func (f *Filter) Apply(infos []Info) []Info {
	if f.Offset >= len(infos) {
		return []Info{}
	}
	infos = infos[f.Offset:]
	if f.Limit > 0 && f.Limit < len(infos) {
		infos = infos[:f.Limit]
	}
	return infos
}
