// Package memory provides a thread-safe in-memory asset repository.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

type key struct {
	kind asset.Kind
	name string
}

// Store implements asset.Repository in memory. Bundles are kept as
// serialized blobs so a bundle never aliases live scene data.
// PRINCIPLES:
// - KISS: maps behind one RWMutex
// - DIP: Implements asset.Repository
type Store struct {
	mu         sync.RWMutex
	assets     map[key]*asset.Asset
	thumbnails map[key][]byte
	staged     map[string][]byte
	bundles    map[string][]byte
	settings   map[string]string

	serializer *serialization.Serializer
	now        func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithSerializer overrides the bundle serializer.
func WithSerializer(s *serialization.Serializer) Option {
	return func(st *Store) { st.serializer = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		assets:     make(map[key]*asset.Asset),
		thumbnails: make(map[key][]byte),
		staged:     make(map[string][]byte),
		bundles:    make(map[string][]byte),
		settings:   make(map[string]string),
		serializer: serialization.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save creates or replaces an asset, keeping its creation time.
func (s *Store) Save(_ context.Context, kind asset.Kind, name, content string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	k := key{kind, name}
	if existing, ok := s.assets[k]; ok {
		existing.Content = content
		existing.UpdatedAt = now
		return nil
	}
	s.assets[k] = &asset.Asset{Kind: kind, Name: name, Content: content, CreatedAt: now, UpdatedAt: now}
	return nil
}

// Load returns a copy of the stored asset.
func (s *Store) Load(_ context.Context, kind asset.Kind, name string) (*asset.Asset, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[key{kind, name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	cp := *a
	return &cp, nil
}

// List returns assets of one kind sorted by name.
func (s *Store) List(_ context.Context, kind asset.Kind, filter asset.Filter) ([]asset.Info, error) {
	if !kind.Valid() {
		return nil, asset.ErrInvalidKind
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]asset.Info, 0)
	for k, a := range s.assets {
		if k.kind != kind || !strings.HasPrefix(k.name, filter.Prefix) {
			continue
		}
		if filter.Since != nil && a.UpdatedAt.Before(*filter.Since) {
			continue
		}
		_, thumb := s.thumbnails[k]
		infos = append(infos, asset.Info{
			Name: a.Name, Kind: kind, HasThumbnail: thumb,
			CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		})
	}
	slices.SortFunc(infos, func(a, b asset.Info) int { return strings.Compare(a.Name, b.Name) })
	return filter.Apply(infos), nil
}

// Delete removes an asset and its thumbnail.
func (s *Store) Delete(_ context.Context, kind asset.Kind, name string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{kind, name}
	if _, ok := s.assets[k]; !ok {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	delete(s.assets, k)
	delete(s.thumbnails, k)
	return nil
}

// SaveThumbnail stores a preview for an existing asset.
func (s *Store) SaveThumbnail(_ context.Context, kind asset.Kind, name string, image []byte) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{kind, name}
	if _, ok := s.assets[k]; !ok {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	s.thumbnails[k] = slices.Clone(image)
	return nil
}

// LoadThumbnail returns the stored preview.
func (s *Store) LoadThumbnail(_ context.Context, kind asset.Kind, name string) ([]byte, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.thumbnails[key{kind, name}]
	if !ok {
		return nil, fmt.Errorf("%w: thumbnail %s/%s", asset.ErrNotFound, kind, name)
	}
	return slices.Clone(img), nil
}

// StageFile puts a file into the staging area.
func (s *Store) StageFile(_ context.Context, file asset.File) error {
	if file.Path == "" {
		return asset.ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[file.Path] = slices.Clone(file.Data)
	return nil
}

// StagedFiles lists staged files sorted by path.
func (s *Store) StagedFiles(_ context.Context) ([]asset.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]asset.File, 0, len(s.staged))
	for p, data := range s.staged {
		files = append(files, asset.File{Path: p, Data: slices.Clone(data)})
	}
	slices.SortFunc(files, func(a, b asset.File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// ClearStaging empties the staging area.
func (s *Store) ClearStaging(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.staged)
	return nil
}

// SaveBundle replaces the bundle of a flow.
func (s *Store) SaveBundle(_ context.Context, b *asset.Bundle) error {
	if b == nil {
		return asset.ErrInvalidName
	}
	if err := asset.ValidateName(b.FlowName); err != nil {
		return err
	}
	blob, err := s.serializer.Serialize(b)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.FlowName] = blob
	return nil
}

// LoadBundle returns a decoded copy of a flow's bundle.
func (s *Store) LoadBundle(_ context.Context, flowName string) (*asset.Bundle, error) {
	s.mu.RLock()
	blob, ok := s.bundles[flowName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", asset.ErrBundleNotFound, flowName)
	}
	var b asset.Bundle
	if err := s.serializer.Deserialize(blob, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return &b, nil
}

// DeleteBundle drops a flow's bundle. Missing bundles are not an error.
func (s *Store) DeleteBundle(_ context.Context, flowName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, flowName)
	return nil
}

func (s *Store) GetSetting(_ context.Context, k string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[k]
	if !ok {
		return "", fmt.Errorf("%w: %s", asset.ErrSettingNotFound, k)
	}
	return v, nil
}

func (s *Store) SetSetting(_ context.Context, k, v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[k] = v
	return nil
}

func (s *Store) DeleteSetting(_ context.Context, k string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, k)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ asset.Repository = (*Store)(nil)
