package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hack-pad/hackpadfs"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/infrastructure/metrics"
)

func (s *Store) flowAssetsDir(flow string) string {
	return path.Join(s.assetDir(asset.KindFlow, flow), bundleDir)
}

// BundleFlow copies each scene document to flows/<flow>/assets/scene_<n>.json,
// its attached files to scene_<n>_assets/ and the staging area to
// external_assets/. The flow must already be saved.
func (s *Store) BundleFlow(_ context.Context, req asset.BundleRequest) (*asset.BundleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(s.assetFile(asset.KindFlow, req.FlowName)) {
		return nil, fmt.Errorf("bundle %s: %w", req.FlowName, asset.ErrNotFound)
	}
	dest := s.flowAssetsDir(req.FlowName)
	if err := hackpadfs.RemoveAll(s.fs, dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}

	result := &asset.BundleResult{BundledScenes: []string{}}
	for _, name := range req.SceneNames {
		data, err := hackpadfs.ReadFile(s.fs, s.assetFile(asset.KindScene, name))
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("bundle skipped missing scene", "flow", req.FlowName, "scene", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bundle scene %s: %w", name, err)
		}
		if err := s.writeFile(path.Join(dest, "scene_"+name+".json"), data); err != nil {
			return nil, err
		}
		result.BundledScenes = append(result.BundledScenes, name)

		n, err := s.copyTree(path.Join(s.assetDir(asset.KindScene, name), bundleDir), path.Join(dest, "scene_"+name+"_assets"))
		if err != nil {
			return nil, err
		}
		result.TotalFiles += n
	}

	n, err := s.copyTree(s.path(stagingDir), path.Join(dest, externalDir))
	if err != nil {
		return nil, err
	}
	result.TotalFiles += n

	m := manifest{ID: uuid.NewString(), FlowName: req.FlowName, Scenes: result.BundledScenes, CreatedAt: s.now().UTC()}
	blob, err := s.serializer.Serialize(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	if err := s.writeFile(path.Join(dest, manifestFile), blob); err != nil {
		return nil, err
	}
	metrics.RecordBundle(len(result.BundledScenes), result.TotalFiles)
	return result, nil
}

// RestoreFlowAssets puts bundled scenes back under scenes/ and copies the
// bundled binary files into external-import.
func (s *Store) RestoreFlowAssets(_ context.Context, flowName string) (*asset.RestoreResult, error) {
	if err := asset.ValidateName(flowName); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.flowAssetsDir(flowName)
	entries, err := hackpadfs.ReadDir(s.fs, src)
	if errors.Is(err, fs.ErrNotExist) {
		return &asset.RestoreResult{RestoredScenes: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}

	result := &asset.RestoreResult{FoundAssets: true, RestoredScenes: []string{}}
	staging := s.path(stagingDir)
	for _, e := range entries {
		item := e.Name()
		from := path.Join(src, item)
		switch {
		case !e.IsDir() && strings.HasPrefix(item, "scene_") && strings.HasSuffix(item, ".json"):
			name := strings.TrimSuffix(strings.TrimPrefix(item, "scene_"), ".json")
			data, err := hackpadfs.ReadFile(s.fs, from)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
			}
			if err := s.writeFile(s.assetFile(asset.KindScene, name), data); err != nil {
				return nil, err
			}
			result.RestoredScenes = append(result.RestoredScenes, name)
		case e.IsDir() && strings.HasPrefix(item, "scene_") && strings.HasSuffix(item, "_assets"),
			e.IsDir() && item == externalDir:
			n, err := s.copyTree(from, staging)
			if err != nil {
				return nil, err
			}
			result.RestoredFiles += n
		}
	}
	return result, nil
}

// copyTree copies every file below from into to and returns the count.
// A missing source copies nothing.
func (s *Store) copyTree(from, to string) (int, error) {
	files, err := s.readTree(from)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := s.writeFile(path.Join(to, f.Path), f.Data); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// BundleID returns the id recorded in a flow's bundle manifest.
func (s *Store) BundleID(flowName string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, err := hackpadfs.ReadFile(s.fs, path.Join(s.flowAssetsDir(flowName), manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return uuid.Nil, fmt.Errorf("%w: %s", asset.ErrBundleNotFound, flowName)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	var m manifest
	if err := s.serializer.Deserialize(blob, &m); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return uuid.Parse(m.ID)
}
