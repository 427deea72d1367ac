// Package fsstore keeps assets in a directory tree with the same layout as
// the original asset server:
//
//	scenes/<name>/<name>.json        asset document
//	scenes/<name>/<name>_thumbnail.png  preview
//	scenes/<name>/assets/...         binary files used by the scene
//	flows/<flow>/assets/...          flow bundle
//	external-import/...              staging area
//
// Any hackpadfs file system can back it; New uses an in-memory one and
// OpenDir an OS directory.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

const (
	stagingDir    = "external-import"
	settingsFile  = "settings.json"
	thumbnailSuffix = "_thumbnail.png"
	bundleDir     = "assets"
	manifestFile  = "manifest.bin"
	externalDir   = "external_assets"

	dirPerm  hackpadfs.FileMode = 0o755
	filePerm hackpadfs.FileMode = 0o644
)

var kindDirs = map[asset.Kind]string{
	asset.KindMap:       "maps",
	asset.KindCharacter: "characters",
	asset.KindObject:    "objects",
	asset.KindScene:     "scenes",
	asset.KindFlow:      "flows",
	asset.KindCode:      "code-library",
}

// document is the JSON stored per asset.
type document struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// manifest records bundle identity next to the bundled files.
type manifest struct {
	ID        string    `msgpack:"id"`
	FlowName  string    `msgpack:"flow_name"`
	Scenes    []string  `msgpack:"scenes"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// Store implements asset.Backend on a hackpadfs file system.
type Store struct {
	mu         sync.RWMutex
	fs         hackpadfs.FS
	root       string
	serializer *serialization.Serializer
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithSerializer overrides the bundle manifest serializer.
func WithSerializer(ser *serialization.Serializer) Option {
	return func(s *Store) {
		if ser != nil {
			s.serializer = ser
		}
	}
}

// New returns a store on a fresh in-memory file system.
func New(opts ...Option) (*Store, error) {
	memFS, err := mem.NewFS()
	if err != nil {
		return nil, fmt.Errorf("create memory fs: %w", err)
	}
	return NewOn(memFS, "", opts...), nil
}

// OpenDir returns a store rooted at an OS directory, creating it if needed.
func OpenDir(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	s := NewOn(osfs.NewFS(), root, opts...)
	if err := hackpadfs.MkdirAll(s.fs, s.path(), dirPerm); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return s, nil
}

// NewOn uses fsys with all paths below root ("" for the fs root).
func NewOn(fsys hackpadfs.FS, root string, opts ...Option) *Store {
	s := &Store{
		fs:         fsys,
		root:       root,
		serializer: serialization.Default(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SceneDir returns the OS-relative path of the scenes directory, for
// watching with a trigger.Watcher when the store is OS backed.
func (s *Store) SceneDir() string {
	return "/" + s.path(kindDirs[asset.KindScene])
}

func (s *Store) path(elem ...string) string {
	p := path.Join(append([]string{s.root}, elem...)...)
	if p == "" {
		return "."
	}
	return p
}

func (s *Store) assetDir(kind asset.Kind, name string) string {
	return s.path(kindDirs[kind], name)
}

func (s *Store) assetFile(kind asset.Kind, name string) string {
	return path.Join(s.assetDir(kind, name), name+".json")
}

// Save writes <kind>/<name>/<name>.json, keeping created_at.
func (s *Store) Save(_ context.Context, kind asset.Kind, name, content string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	doc := document{Name: name, Type: string(kind), Code: content, CreatedAt: now, UpdatedAt: now}
	if prev, err := s.readDoc(kind, name); err == nil {
		doc.CreatedAt = prev.CreatedAt
	}
	if err := hackpadfs.MkdirAll(s.fs, s.assetDir(kind, name), dirPerm); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	if err := hackpadfs.WriteFullFile(s.fs, s.assetFile(kind, name), data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

func (s *Store) readDoc(kind asset.Kind, name string) (*document, error) {
	data, err := hackpadfs.ReadFile(s.fs, s.assetFile(kind, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", asset.ErrLoadFailed, kind, name, err)
	}
	return &doc, nil
}

// Load reads one asset document.
func (s *Store) Load(_ context.Context, kind asset.Kind, name string) (*asset.Asset, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.readDoc(kind, name)
	if err != nil {
		return nil, err
	}
	return &asset.Asset{Kind: kind, Name: name, Content: doc.Code, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

// List scans the kind directory. Folders without a document are skipped.
func (s *Store) List(_ context.Context, kind asset.Kind, filter asset.Filter) ([]asset.Info, error) {
	if !kind.Valid() {
		return nil, asset.ErrInvalidKind
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := hackpadfs.ReadDir(s.fs, s.path(kindDirs[kind]))
	if errors.Is(err, fs.ErrNotExist) {
		return []asset.Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}

	infos := make([]asset.Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), filter.Prefix) {
			continue
		}
		doc, err := s.readDoc(kind, e.Name())
		if err != nil {
			continue
		}
		if filter.Since != nil && doc.UpdatedAt.Before(*filter.Since) {
			continue
		}
		infos = append(infos, asset.Info{
			Name:         e.Name(),
			Kind:         kind,
			HasThumbnail: s.exists(s.thumbnailPath(kind, e.Name())),
			CreatedAt:    doc.CreatedAt,
			UpdatedAt:    doc.UpdatedAt,
		})
	}
	slices.SortFunc(infos, func(a, b asset.Info) int { return strings.Compare(a.Name, b.Name) })
	return filter.Apply(infos), nil
}

func (s *Store) thumbnailPath(kind asset.Kind, name string) string {
	return path.Join(s.assetDir(kind, name), name+thumbnailSuffix)
}

func (s *Store) exists(p string) bool {
	_, err := hackpadfs.Stat(s.fs, p)
	return err == nil
}

// Delete removes the asset folder, thumbnail and any bundle inside it.
func (s *Store) Delete(_ context.Context, kind asset.Kind, name string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(s.assetFile(kind, name)) {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if err := hackpadfs.RemoveAll(s.fs, s.assetDir(kind, name)); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

// SaveThumbnail writes <name>_thumbnail.png next to an existing asset.
func (s *Store) SaveThumbnail(_ context.Context, kind asset.Kind, name string, image []byte) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(s.assetFile(kind, name)) {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if err := hackpadfs.WriteFullFile(s.fs, s.thumbnailPath(kind, name), image, filePerm); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// LoadThumbnail reads the preview image.
func (s *Store) LoadThumbnail(_ context.Context, kind asset.Kind, name string) ([]byte, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := hackpadfs.ReadFile(s.fs, s.thumbnailPath(kind, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: thumbnail %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return data, nil
}

// AttachSceneFile stores a binary file under scenes/<scene>/assets so it
// travels with the scene when a flow is bundled.
func (s *Store) AttachSceneFile(_ context.Context, scene string, file asset.File) error {
	if err := asset.ValidateName(scene); err != nil {
		return err
	}
	if err := checkFilePath(file.Path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(path.Join(s.assetDir(asset.KindScene, scene), bundleDir, file.Path), file.Data)
}

func checkFilePath(p string) error {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "..") || strings.Contains(p, `\`) {
		return fmt.Errorf("%w: %q", asset.ErrInvalidName, p)
	}
	return nil
}

func (s *Store) writeFile(p string, data []byte) error {
	if err := hackpadfs.MkdirAll(s.fs, path.Dir(p), dirPerm); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	if err := hackpadfs.WriteFullFile(s.fs, p, data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// StageFile writes a file into external-import.
func (s *Store) StageFile(_ context.Context, file asset.File) error {
	if err := checkFilePath(file.Path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(s.path(stagingDir, file.Path), file.Data)
}

// StagedFiles lists external-import recursively, sorted by path.
func (s *Store) StagedFiles(_ context.Context) ([]asset.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readTree(s.path(stagingDir))
}

// readTree returns every regular file below dir with paths relative to dir.
func (s *Store) readTree(dir string) ([]asset.File, error) {
	files := make([]asset.File, 0)
	var walk func(rel string) error
	walk = func(rel string) error {
		entries, err := hackpadfs.ReadDir(s.fs, path.Join(dir, rel))
		if err != nil {
			return err
		}
		for _, e := range entries {
			child := path.Join(rel, e.Name())
			if e.IsDir() {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			data, err := hackpadfs.ReadFile(s.fs, path.Join(dir, child))
			if err != nil {
				return err
			}
			files = append(files, asset.File{Path: child, Data: data})
		}
		return nil
	}
	if err := walk(""); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	slices.SortFunc(files, func(a, b asset.File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// ClearStaging removes external-import entirely.
func (s *Store) ClearStaging(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := hackpadfs.RemoveAll(s.fs, s.path(stagingDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

// Close is a no-op; the file system outlives the store.
func (s *Store) Close() error { return nil }
